package openai

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	goopenai "github.com/sashabaranov/go-openai"
)

// CreateSpeech returns the encoded audio bytes for req.
func (c *Client) CreateSpeech(ctx context.Context, req goopenai.CreateSpeechRequest) ([]byte, error) {
	if strings.TrimSpace(req.Input) == "" {
		return nil, Validationf("speech input is empty")
	}
	if utf8.RuneCountInString(req.Input) > 4096 {
		return nil, Validationf("speech input longer than 4096 characters")
	}
	if req.Model == "" {
		req.Model = goopenai.TTSModel1
	}
	if req.Voice == "" {
		req.Voice = goopenai.VoiceAlloy
	}
	if req.Speed != 0 && (req.Speed < 0.25 || req.Speed > 4.0) {
		return nil, Validationf("speed %.2f outside [0.25, 4.0]", req.Speed)
	}
	var audio []byte
	err := c.Do(ctx, RequestSpec{
		Method: http.MethodPost,
		Path:   "audio/speech",
		Body:   req,
	}, &audio)
	return audio, err
}

type TranscriptionRequest struct {
	FilePath string
	Model    string
	Language string
	Prompt   string
}

func (c *Client) CreateTranscription(ctx context.Context, req TranscriptionRequest) (Transcription, error) {
	var out Transcription
	if err := ValidateLocalFile(req.FilePath, AudioExtensions); err != nil {
		return out, err
	}
	model := req.Model
	if model == "" {
		model = goopenai.Whisper1
	}
	fields := map[string]string{
		"model":           model,
		"response_format": string(goopenai.AudioResponseFormatJSON),
	}
	if req.Language != "" {
		fields["language"] = req.Language
	}
	if req.Prompt != "" {
		fields["prompt"] = req.Prompt
	}
	err := c.Do(ctx, RequestSpec{
		Method: http.MethodPost,
		Path:   "audio/transcriptions",
		Multipart: &Multipart{
			Fields:   fields,
			FilePath: req.FilePath,
		},
	}, &out)
	return out, err
}
