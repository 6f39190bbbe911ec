package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "finch/api/v1"
	"finch/internal/auth"
	"finch/internal/config"
	"finch/internal/delta"
	"finch/internal/provider"
	"finch/internal/storage"
	"finch/internal/tools"
)

type echoProvider struct{}

func (echoProvider) Name() string { return "echo" }

func (echoProvider) Chat(context.Context, provider.ChatRequest) (*provider.ChatResponse, error) {
	return &provider.ChatResponse{Content: "Rates outlook"}, nil
}

func (echoProvider) Stream(_ context.Context, _ provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	ch := make(chan provider.ChatEvent, 2)
	ch <- provider.ChatEvent{Type: provider.EventTypeContent, Delta: "Rates look stable."}
	ch <- provider.ChatEvent{Type: provider.EventTypeDone, FinishReason: provider.FinishReasonStop}
	close(ch)
	return ch, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Storage: config.StorageConfig{Path: filepath.Join(t.TempDir(), "finch.db")},
		Turn:    config.TurnConfig{MaxSteps: 10, FirstContentTimeout: 2 * time.Second},
		Auth:    config.AuthConfig{Issuer: "finch", TokenTTL: time.Hour},
	}
	cfg.Secrets.JWTSecret = "test-secret"
	cfg.Secrets.OpenAIKey = "sk-test"
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s, err := New(context.Background(), Options{
		Config:  cfg,
		Version: "test",
		Providers: func(provider.Model, string) (provider.Provider, error) {
			return echoProvider{}, nil
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func TestNewRequiresJWTSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Secrets.JWTSecret = ""
	_, err := New(context.Background(), Options{Config: cfg})
	assert.ErrorIs(t, err, auth.ErrNoSecret)

	_, err = New(context.Background(), Options{})
	assert.Error(t, err)
}

func TestServerServesChat(t *testing.T) {
	cfg := testConfig(t)
	s := newTestServer(t, cfg)

	iss, err := auth.NewIssuer(cfg.Secrets.JWTSecret, cfg.Auth.Issuer, time.Hour)
	require.NoError(t, err)
	tok, err := iss.Mint("analyst@example.com")
	require.NoError(t, err)

	body, err := json.Marshal(v1.ChatRequest{
		ID:       "chat-1",
		Messages: []v1.ChatMessage{{Role: provider.RoleUser, Content: "Where are rates heading?"}},
		ModelID:  provider.DefaultModelID,
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	s.Gateway().Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var text string
	require.NoError(t, delta.ReadSSE(context.Background(), w.Body, func(d delta.Delta) error {
		if td, ok := d.(delta.TextDelta); ok {
			text += string(td)
		}
		return nil
	}))
	assert.Equal(t, "Rates look stable.", text)

	chat, err := s.db.GetChat(context.Background(), "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "Rates outlook", chat.Title)
}

func TestServerImportsSkillFiles(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dcf.yaml"),
		[]byte("name: DCF Model\ndescription: Discounted cash flow\nprompt: Build a five-year DCF.\n"), 0o644))
	cfg.Skills = config.SkillsConfig{Dir: dir, Owner: "owner@example.com"}

	s := newTestServer(t, cfg)
	owner, err := s.db.GetUserByEmail(context.Background(), "owner@example.com")
	require.NoError(t, err)
	list, err := s.db.ListSkills(context.Background(), owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "DCF Model", list[0].Name)
	assert.Equal(t, storage.SkillSourceFile, list[0].Source)
}

func TestServerStartStop(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(context.Background(), Options{Config: cfg, Version: "test"})
	require.NoError(t, err)

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
}

func TestOwnedContent(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	ctx := context.Background()
	owner, err := s.db.EnsureUser(ctx, "owner@example.com")
	require.NoError(t, err)
	require.NoError(t, s.db.SaveProject(ctx, &storage.Project{ID: "p1", UserID: owner.ID, Name: "Banks", Content: "JPM, BAC"}))
	skill := &storage.Skill{UserID: owner.ID, Name: "Credit Review", Prompt: "Assess credit quality."}
	require.NoError(t, s.db.SaveSkill(ctx, skill))

	oc := ownedContent{db: s.db}
	mine := tools.WithUserID(ctx, owner.ID)
	content, err := oc.ProjectContent(mine, "p1")
	require.NoError(t, err)
	assert.Equal(t, "JPM, BAC", content)
	got, err := oc.SkillByID(mine, skill.ID)
	require.NoError(t, err)
	assert.Equal(t, "Credit Review", got.Name)

	theirs := tools.WithUserID(ctx, "someone-else")
	_, err = oc.ProjectContent(theirs, "p1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = oc.SkillByID(ctx, skill.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProviderFactory(t *testing.T) {
	f := ProviderFactory(config.ModelConfig{DeepSeekBaseURL: "https://api.deepseek.com/v1"})
	for _, id := range []string{"gpt-4o", "deepseek-chat", "gemini-2.5-pro"} {
		m, ok := provider.Lookup(id)
		require.True(t, ok)
		p, err := f(m, "key")
		require.NoError(t, err, id)
		assert.Equal(t, m.Provider, p.Name())
	}

	_, err := f(provider.Model{ID: "x", Provider: "anthropic"}, "key")
	assert.ErrorIs(t, err, provider.ErrModelNotFound)
}
