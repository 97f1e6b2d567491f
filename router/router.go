package router

import (
	"context"
	"regexp"
	"strings"

	"github.com/dwgeddes/PoShOpenAI/insights"
	"github.com/dwgeddes/PoShOpenAI/openai"
	"github.com/dwgeddes/PoShOpenAI/orchestrator"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Request is one prompt to route. AudioPath is the transcription input and
// OutputPath receives synthesized speech. A non-empty Type skips
// classification.
type Request struct {
	Text       string
	ImagePaths []string
	AudioPath  string
	OutputPath string
	Type       RequestType
	Model      string
	ThreadID   string
}

type Response struct {
	Type     RequestType `json:"type"`
	Detected RequestType `json:"detected"`
	Result   any         `json:"result"`
}

type Router struct {
	client      *insights.Client
	assistants  *orchestrator.Orchestrator
	assistantID string
	logger      *zap.Logger
}

type Option func(*Router)

// WithAssistant sends vision requests through the assistant orchestrator
// instead of an inline-image chat completion.
func WithAssistant(o *orchestrator.Orchestrator, assistantID string) Option {
	return func(r *Router) {
		r.assistants = o
		r.assistantID = assistantID
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Router) { r.logger = l }
}

func New(client *insights.Client, opts ...Option) *Router {
	r := &Router{client: client, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var speechLead = regexp.MustCompile(`(?i)^\s*(please\s+)?(say|speak|read aloud|pronounce)\b\s*:?\s*`)

// Invoke classifies req and calls the matching client.
func (r *Router) Invoke(ctx context.Context, req Request) (*Response, error) {
	detected := Classify(req.Text, len(req.ImagePaths) > 0)
	typ := detected
	if req.Type != "" {
		if _, ok := ParseRequestType(string(req.Type)); !ok {
			return nil, openai.Validationf("unknown request type %q", req.Type)
		}
		typ = req.Type
	}
	r.logger.Debug("routing prompt", zap.String("detected", string(detected)), zap.String("type", string(typ)))

	resp := &Response{Type: typ, Detected: detected}
	var err error
	switch typ {
	case TypeVision:
		resp.Result, err = r.vision(ctx, req)
	case TypeImageGeneration:
		resp.Result, err = r.client.GenerateImage(ctx, goopenai.ImageRequest{Prompt: req.Text})
	case TypeSpeech:
		text := speechLead.ReplaceAllString(req.Text, "")
		if strings.TrimSpace(text) == "" {
			text = req.Text
		}
		resp.Result, err = r.client.Speak(ctx, goopenai.CreateSpeechRequest{Input: text}, req.OutputPath)
	case TypeTranscription:
		if req.AudioPath == "" {
			return nil, openai.Validationf("transcription needs an audio file")
		}
		resp.Result, err = r.client.Transcribe(ctx, openai.TranscriptionRequest{FilePath: req.AudioPath, Prompt: req.Text})
	case TypeEmbedding:
		recs, _ := r.client.EmbedBatch(ctx, []string{req.Text}, goopenai.EmbeddingModel(req.Model))
		resp.Result, err = recs[0], recs[0].Err
	case TypeModeration:
		recs, _ := r.client.ModerateBatch(ctx, []string{req.Text}, req.Model)
		resp.Result, err = recs[0], recs[0].Err
	default:
		resp.Result, err = r.client.Chat(ctx, req.Text, insights.ChatOptions{Model: req.Model})
	}
	return resp, err
}

func (r *Router) vision(ctx context.Context, req Request) (any, error) {
	if r.assistants != nil && r.assistantID != "" {
		out, err := r.assistants.Run(ctx, orchestrator.Interaction{
			AssistantID: r.assistantID,
			Text:        req.Text,
			ImagePaths:  req.ImagePaths,
			ThreadID:    req.ThreadID,
			Model:       req.Model,
		})
		if out == nil {
			return nil, err
		}
		return out, err
	}
	text := req.Text
	if strings.TrimSpace(text) == "" {
		text = "Describe this image."
	}
	return r.client.Chat(ctx, text, insights.ChatOptions{Model: req.Model, ImagePaths: req.ImagePaths})
}
