package insights

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dwgeddes/PoShOpenAI/openai"
	"github.com/stretchr/testify/require"
)

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

type memoryRecorder struct {
	mu      sync.Mutex
	entries []UsageEntry
}

func (m *memoryRecorder) RecordUsage(_ context.Context, e UsageEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryRecorder) all() []UsageEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]UsageEntry(nil), m.entries...)
}
