package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dwgeddes/PoShOpenAI/insights"
	"github.com/dwgeddes/PoShOpenAI/openai"
	"github.com/dwgeddes/PoShOpenAI/orchestrator"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text      string
		hasImages bool
		want      RequestType
	}{
		{"", true, TypeVision},
		{"draw a cat", true, TypeVision},
		{"draw a cat", false, TypeImageGeneration},
		{"Generate an image of a lighthouse at dusk", false, TypeImageGeneration},
		{"make me a logo for my bakery", false, TypeImageGeneration},
		{"say hello", false, TypeSpeech},
		{"read aloud the first paragraph", false, TypeSpeech},
		{"transcribe this meeting", false, TypeTranscription},
		{"compute embeddings for these notes", false, TypeEmbedding},
		{"check this for violations", false, TypeModeration},
		{"is this inappropriate?", false, TypeModeration},
		{"generic question", false, TypeChat},
		{"make a plan for the week", false, TypeChat},
		{"", false, TypeChat},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.text, tt.hasImages), "%q images=%v", tt.text, tt.hasImages)
	}
}

func TestClassifyIsPure(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		text := rapid.String().Draw(rt, "text")
		images := rapid.Bool().Draw(rt, "images")

		got := Classify(text, images)
		if again := Classify(text, images); again != got {
			rt.Fatalf("%q classified as %s then %s", text, got, again)
		}
		if images && got != TypeVision {
			rt.Fatalf("image input classified as %s", got)
		}
		if _, ok := ParseRequestType(string(got)); !ok {
			rt.Fatalf("classification %q outside the known types", got)
		}
	})
}

func TestParseRequestType(t *testing.T) {
	typ, ok := ParseRequestType(" Moderation ")
	assert.True(t, ok)
	assert.Equal(t, TypeModeration, typ)

	_, ok = ParseRequestType("fax")
	assert.False(t, ok)
}

func newTestAPI(t *testing.T, h http.HandlerFunc) *openai.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig()
	cfg.BaseURL = srv.URL + "/v1"
	api, err := openai.NewClient(cfg)
	require.NoError(t, err)
	api.SetCredential("sk-test", "")
	return api
}

func newTestRouter(t *testing.T, h http.HandlerFunc, opts ...Option) *Router {
	t.Helper()
	return New(insights.New(newTestAPI(t, h), insights.WithChunkPause(0)), opts...)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestInvokeModeration(t *testing.T) {
	r := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/v1/moderations", req.URL.Path)
		io.WriteString(w, `{"id":"modr-1","model":"omni-moderation-latest","results":[{"flagged":true,"categories":{"harassment":true},"category_scores":{"harassment":0.93}}]}`)
	})

	resp, err := r.Invoke(context.Background(), Request{Text: "check this for violations"})
	require.NoError(t, err)
	assert.Equal(t, TypeModeration, resp.Type)
	rec, ok := resp.Result.(insights.ModerationRecord)
	require.True(t, ok)
	assert.Equal(t, insights.RiskCritical, rec.RiskLevel)
	assert.True(t, rec.RequiresReview)
}

func TestInvokeTypeOverride(t *testing.T) {
	r := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/v1/chat/completions", req.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "hi"}, "finish_reason": "stop"}},
		})
	})

	resp, err := r.Invoke(context.Background(), Request{Text: "say hello", Type: TypeChat})
	require.NoError(t, err)
	assert.Equal(t, TypeChat, resp.Type)
	assert.Equal(t, TypeSpeech, resp.Detected)
	assert.Equal(t, "hi", resp.Result.(insights.ChatRecord).Response)
}

func TestInvokeValidation(t *testing.T) {
	r := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		t.Error("no request expected")
	})

	_, err := r.Invoke(context.Background(), Request{Text: "transcribe this meeting"})
	assert.True(t, openai.IsKind(err, openai.KindValidationFailed))

	_, err = r.Invoke(context.Background(), Request{Text: "hi", Type: "fax"})
	assert.True(t, openai.IsKind(err, openai.KindValidationFailed))
}

func TestSpeechLeadIsStripped(t *testing.T) {
	assert.Equal(t, "hello there", speechLead.ReplaceAllString("Please say: hello there", ""))
	assert.Equal(t, "the poem", speechLead.ReplaceAllString("read aloud the poem", ""))
}

func TestInvokeImageGeneration(t *testing.T) {
	r := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/v1/images/generations", req.URL.Path)
		var body goopenai.ImageRequest
		if !assert.NoError(t, json.NewDecoder(req.Body).Decode(&body)) {
			return
		}
		assert.Equal(t, "draw a cat", body.Prompt)
		io.WriteString(w, `{"created":1700000000,"data":[{"url":"https://img.example/cat.png"}]}`)
	})

	resp, err := r.Invoke(context.Background(), Request{Text: "draw a cat"})
	require.NoError(t, err)
	assert.Equal(t, TypeImageGeneration, resp.Type)
	img, ok := resp.Result.(insights.ImageRecord)
	require.True(t, ok)
	assert.Equal(t, []string{"https://img.example/cat.png"}, img.URLs)
}

func TestInvokeSpeech(t *testing.T) {
	r := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/v1/audio/speech", req.URL.Path)
		var body goopenai.CreateSpeechRequest
		if !assert.NoError(t, json.NewDecoder(req.Body).Decode(&body)) {
			return
		}
		assert.Equal(t, "hello there", body.Input)
		io.WriteString(w, "mp3")
	})
	out := filepath.Join(t.TempDir(), "hello.mp3")

	resp, err := r.Invoke(context.Background(), Request{Text: "Please say: hello there", OutputPath: out})
	require.NoError(t, err)
	assert.Equal(t, TypeSpeech, resp.Type)
	rec, ok := resp.Result.(insights.SpeechRecord)
	require.True(t, ok)
	assert.Equal(t, "hello there", rec.Input)
	assert.Equal(t, out, rec.OutputPath)
	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "mp3", string(written))
}

func TestInvokeEmbedding(t *testing.T) {
	r := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/v1/embeddings", req.URL.Path)
		io.WriteString(w, `{"object":"list","model":"text-embedding-3-small","data":[{"object":"embedding","index":0,"embedding":[0.5,0.25,0.125]}],"usage":{"prompt_tokens":5,"total_tokens":5}}`)
	})

	resp, err := r.Invoke(context.Background(), Request{Text: "compute embeddings for these notes"})
	require.NoError(t, err)
	assert.Equal(t, TypeEmbedding, resp.Type)
	rec, ok := resp.Result.(insights.EmbeddingRecord)
	require.True(t, ok)
	assert.True(t, rec.Success)
	assert.Equal(t, 3, rec.Dimensions)
	assert.Equal(t, "compute embeddings for these notes", rec.Input)
}

func TestInvokeVisionChat(t *testing.T) {
	img := writeFile(t, "chart.png", "png-bytes")
	r := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/v1/chat/completions", req.URL.Path)
		data, _ := io.ReadAll(req.Body)
		assert.Contains(t, string(data), "data:image/png;base64,")
		assert.Contains(t, string(data), "Describe this image.")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "a bar chart"}, "finish_reason": "stop"}},
		})
	})

	resp, err := r.Invoke(context.Background(), Request{ImagePaths: []string{img}})
	require.NoError(t, err)
	assert.Equal(t, TypeVision, resp.Type)
	assert.Equal(t, "a bar chart", resp.Result.(insights.ChatRecord).Response)
}

func TestInvokeVisionAssistant(t *testing.T) {
	img := writeFile(t, "chart.png", "png-bytes")
	var deleted []string
	api := newTestAPI(t, func(w http.ResponseWriter, req *http.Request) {
		switch req.Method + " " + req.URL.Path {
		case "POST /v1/threads":
			io.WriteString(w, `{"id":"thread_1","object":"thread"}`)
		case "POST /v1/files":
			io.WriteString(w, `{"id":"file-1","purpose":"vision"}`)
		case "POST /v1/threads/thread_1/messages":
			io.WriteString(w, `{"id":"msg_1","thread_id":"thread_1","role":"user"}`)
		case "POST /v1/threads/thread_1/runs":
			io.WriteString(w, `{"id":"run_1","thread_id":"thread_1","status":"completed","model":"gpt-4o","created_at":1700000000}`)
		case "GET /v1/threads/thread_1/messages":
			io.WriteString(w, `{"object":"list","data":[{"id":"msg_2","role":"assistant","content":[{"type":"text","text":{"value":"a bar chart"}}]}]}`)
		case "DELETE /v1/files/file-1", "DELETE /v1/threads/thread_1":
			deleted = append(deleted, strings.TrimPrefix(req.URL.Path, "/v1/"))
			io.WriteString(w, `{"deleted":true}`)
		default:
			t.Errorf("unexpected %s %s", req.Method, req.URL.Path)
		}
	})
	r := New(insights.New(api), WithAssistant(orchestrator.New(api), "asst_1"))

	resp, err := r.Invoke(context.Background(), Request{Text: "what does this show?", ImagePaths: []string{img}})
	require.NoError(t, err)
	assert.Equal(t, TypeVision, resp.Type)
	out, ok := resp.Result.(*orchestrator.Outcome)
	require.True(t, ok)
	assert.True(t, out.Success)
	assert.Equal(t, "a bar chart", out.Text)
	assert.Equal(t, []string{"file-1"}, out.Attached)
	assert.Equal(t, []string{"files/file-1", "threads/thread_1"}, deleted)
}

func TestInvokeVisionAssistantValidationLeavesNoResult(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, req *http.Request) {
		t.Error("no request expected")
	})
	r := New(insights.New(api), WithAssistant(orchestrator.New(api), "asst_1"))

	resp, err := r.Invoke(context.Background(), Request{Text: "look", ImagePaths: []string{filepath.Join(t.TempDir(), "missing.png")}})
	assert.True(t, openai.IsKind(err, openai.KindValidationFailed))
	require.NotNil(t, resp)
	assert.True(t, resp.Result == nil, "result holds %#v", resp.Result)
}
