package insights

import (
	"context"
	"fmt"
	"os"

	"github.com/dwgeddes/PoShOpenAI/openai"
	goopenai "github.com/sashabaranov/go-openai"
)

type ImageRecord struct {
	Prompt        string   `json:"prompt"`
	RevisedPrompt string   `json:"revised_prompt,omitempty"`
	URLs          []string `json:"urls,omitempty"`
	B64JSON       []string `json:"b64_json,omitempty"`
	Model         string   `json:"model"`
	Size          string   `json:"size"`
	Quality       string   `json:"quality,omitempty"`
	EstimatedCost float64  `json:"estimated_cost"`
}

func (c *Client) GenerateImage(ctx context.Context, req goopenai.ImageRequest) (ImageRecord, error) {
	if req.Model == "" {
		req.Model = goopenai.CreateImageModelDallE3
	}
	if req.N == 0 {
		req.N = 1
	}
	if req.Size == "" {
		req.Size = goopenai.CreateImageSize1024x1024
	}
	rec := ImageRecord{Prompt: req.Prompt, Model: req.Model, Size: req.Size, Quality: req.Quality}
	resp, err := c.api.CreateImage(ctx, req)
	if err != nil {
		return rec, err
	}
	for _, d := range resp.Data {
		if d.URL != "" {
			rec.URLs = append(rec.URLs, d.URL)
		}
		if d.B64JSON != "" {
			rec.B64JSON = append(rec.B64JSON, d.B64JSON)
		}
		if rec.RevisedPrompt == "" {
			rec.RevisedPrompt = d.RevisedPrompt
		}
	}
	rec.EstimatedCost, _ = c.prices.ImageCost(req.Model, req.Quality, len(resp.Data))
	c.record(ctx, UsageEntry{Operation: "image", Model: req.Model, EstimatedCost: rec.EstimatedCost, Success: true})
	return rec, nil
}

type SpeechRecord struct {
	Input         string  `json:"input"`
	Model         string  `json:"model"`
	Voice         string  `json:"voice"`
	Characters    int     `json:"characters"`
	Bytes         int     `json:"bytes"`
	OutputPath    string  `json:"output_path,omitempty"`
	EstimatedCost float64 `json:"estimated_cost"`
	Audio         []byte  `json:"-"`
}

// Speak synthesizes req.Input. When outputPath is set the audio is also
// written there.
func (c *Client) Speak(ctx context.Context, req goopenai.CreateSpeechRequest, outputPath string) (SpeechRecord, error) {
	if req.Model == "" {
		req.Model = goopenai.TTSModel1
	}
	if req.Voice == "" {
		req.Voice = goopenai.VoiceAlloy
	}
	rec := SpeechRecord{
		Input:      req.Input,
		Model:      string(req.Model),
		Voice:      string(req.Voice),
		Characters: len([]rune(req.Input)),
	}
	audio, err := c.api.CreateSpeech(ctx, req)
	if err != nil {
		return rec, err
	}
	rec.Audio = audio
	rec.Bytes = len(audio)
	rec.EstimatedCost, _ = c.prices.SpeechCost(rec.Model, rec.Characters)
	if outputPath != "" {
		if err := os.WriteFile(outputPath, audio, 0o644); err != nil {
			return rec, openai.Unexpected(fmt.Sprintf("write %s", outputPath), err)
		}
		rec.OutputPath = outputPath
	}
	c.record(ctx, UsageEntry{Operation: "speech", Model: rec.Model, EstimatedCost: rec.EstimatedCost, Success: true})
	return rec, nil
}

type TranscriptionRecord struct {
	FilePath string  `json:"file_path"`
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Words    int     `json:"words"`
}

func (c *Client) Transcribe(ctx context.Context, req openai.TranscriptionRequest) (TranscriptionRecord, error) {
	rec := TranscriptionRecord{FilePath: req.FilePath}
	t, err := c.api.CreateTranscription(ctx, req)
	if err != nil {
		return rec, err
	}
	rec.Text = t.Text
	rec.Language = t.Language
	rec.Duration = t.Duration
	rec.Words = countWords(t.Text)
	model := req.Model
	if model == "" {
		model = goopenai.Whisper1
	}
	c.record(ctx, UsageEntry{Operation: "transcription", Model: model, Success: true})
	return rec, nil
}

func countWords(s string) int {
	n, in := 0, false
	for _, r := range s {
		space := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !space && !in {
			n++
		}
		in = !space
	}
	return n
}
