package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"finch/internal/auth"
	"finch/internal/config"
	"finch/internal/gateway/middleware"
	"finch/internal/gateway/websocket"
	"finch/internal/prompt"
	"finch/internal/provider"
	"finch/internal/runner"
	"finch/internal/storage"
)

// fakeProvider answers Chat with a fixed title and streams one text reply.
type fakeProvider struct {
	mu      sync.Mutex
	streams int
	reply   string
	// block, when set, holds every stream until ctx ends.
	block bool
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Chat(context.Context, provider.ChatRequest) (*provider.ChatResponse, error) {
	return &provider.ChatResponse{Content: "Market update"}, nil
}

func (p *fakeProvider) Stream(ctx context.Context, _ provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	p.mu.Lock()
	p.streams++
	p.mu.Unlock()

	ch := make(chan provider.ChatEvent)
	go func() {
		defer close(ch)
		if p.block {
			<-ctx.Done()
			return
		}
		for _, ev := range []provider.ChatEvent{
			{Type: provider.EventTypeContent, Delta: p.reply},
			{Type: provider.EventTypeDone, FinishReason: provider.FinishReasonStop},
		} {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (p *fakeProvider) streamCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streams
}

type apiFixture struct {
	db     *storage.DB
	iss    *auth.Issuer
	cfg    *config.Config
	prov   *fakeProvider
	orch   *runner.Orchestrator
	router *mux.Router
}

func newAPIFixture(t *testing.T, opts ...func(*RouterDeps)) *apiFixture {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "finch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	iss, err := auth.NewIssuer("test-secret", "finch", time.Hour)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Secrets.OpenAIKey = "sk-test"

	prov := &fakeProvider{reply: "NVDA closed higher."}
	orch := runner.NewOrchestrator(db, prompt.NewAssembler(db, nil), nil,
		runner.Config{FirstContentTimeout: 2 * time.Second}, prompt.DefaultPromptConfig())

	f := &apiFixture{db: db, iss: iss, cfg: cfg, prov: prov, orch: orch, router: mux.NewRouter()}
	deps := RouterDeps{
		DB:           db,
		Config:       cfg,
		Orchestrator: orch,
		Providers: func(provider.Model, string) (provider.Provider, error) {
			return prov, nil
		},
		Hub:     websocket.NewHub(nil),
		Auth:    middleware.NewAuthenticator(iss, db),
		Version: "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}
	NewRouter(deps).RegisterRoutes(f.router)
	return f
}

func (f *apiFixture) token(t *testing.T, email string) string {
	t.Helper()
	tok, err := f.iss.Mint(email)
	require.NoError(t, err)
	return tok
}

func (f *apiFixture) user(t *testing.T, email string) *storage.User {
	t.Helper()
	u, err := f.db.EnsureUser(context.Background(), email)
	require.NoError(t, err)
	return u
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}
