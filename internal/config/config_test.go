package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8787 {
		t.Errorf("server.port = %d, want 8787", cfg.Server.Port)
	}
	if cfg.Server.Addr() != "127.0.0.1:8787" {
		t.Errorf("server addr = %q", cfg.Server.Addr())
	}
	if cfg.Model.Default != "gpt-4o" {
		t.Errorf("model.default = %q, want gpt-4o", cfg.Model.Default)
	}
	if cfg.Turn.MaxSteps != 10 {
		t.Errorf("turn.max_steps = %d, want 10", cfg.Turn.MaxSteps)
	}
	if cfg.Turn.FirstContentTimeout != 5*time.Second {
		t.Errorf("turn.first_content_timeout = %v, want 5s", cfg.Turn.FirstContentTimeout)
	}
	if cfg.Turn.SettleDelay != time.Second {
		t.Errorf("turn.settle_delay = %v, want 1s", cfg.Turn.SettleDelay)
	}
	if cfg.Tools.Tavily.MaxResultsCap != 10 {
		t.Errorf("tools.tavily.max_results_cap = %d, want 10", cfg.Tools.Tavily.MaxResultsCap)
	}
}

func TestLoad_FromFile(t *testing.T) {
	Reset()
	defer Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9000
  host: "0.0.0.0"
log:
  level: debug
turn:
  first_content_timeout: 2s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Turn.FirstContentTimeout != 2*time.Second {
		t.Errorf("turn.first_content_timeout = %v, want 2s", cfg.Turn.FirstContentTimeout)
	}
	// untouched keys keep defaults
	if cfg.Turn.MaxSteps != 10 {
		t.Errorf("turn.max_steps = %d, want 10", cfg.Turn.MaxSteps)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8787 {
		t.Errorf("server.port = %d", cfg.Server.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	Reset()
	defer Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	Reset()
	defer Reset()

	t.Setenv("FINCH_SERVER_PORT", "9100")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TAVILY_API_KEY", "tvly-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("server.port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Secrets.OpenAIKey != "sk-test" {
		t.Errorf("openai key = %q", cfg.Secrets.OpenAIKey)
	}
	if cfg.Secrets.ProviderKey("openai") != "sk-test" {
		t.Errorf("ProviderKey(openai) = %q", cfg.Secrets.ProviderKey("openai"))
	}
	if cfg.Secrets.TavilyKey != "tvly-test" {
		t.Errorf("tavily key = %q", cfg.Secrets.TavilyKey)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		Server: ServerConfig{Port: 80},
		Turn:   TurnConfig{MaxSteps: 1, FirstContentTimeout: time.Second},
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"zero steps", func(c *Config) { c.Turn.MaxSteps = 0 }, true},
		{"zero timeout", func(c *Config) { c.Turn.FirstContentTimeout = 0 }, true},
		{"negative settle", func(c *Config) { c.Turn.SettleDelay = -time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveTo_OmitsSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 8787},
		Secrets: Secrets{OpenAIKey: "sk-secret"},
	}

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sk-secret") {
		t.Error("secrets must not be written to disk")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("perm = %v, want 0600", info.Mode().Perm())
	}
}

func TestSet_Persists(t *testing.T) {
	Reset()
	defer Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if _, err := Load(path); err != nil {
		t.Fatal(err)
	}
	if err := Set("model.default", "deepseek-chat"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if GetConfig().Model.Default != "deepseek-chat" {
		t.Errorf("model.default = %q", GetConfig().Model.Default)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "deepseek-chat") {
		t.Errorf("saved config missing new value:\n%s", data)
	}
}

func TestIsPlaceholderKey(t *testing.T) {
	tests := map[string]bool{
		"":                                true,
		"   ":                             true,
		"****":                            true,
		"changeme":                        true,
		"your-openai-api-key":             true,
		"your-financial-datasets-api-key": true,
		" sk-real ":                       false,
		"sk-proj-abc":                     false,
	}
	for in, want := range tests {
		if got := IsPlaceholderKey(in); got != want {
			t.Errorf("IsPlaceholderKey(%q) = %v, want %v", in, got, want)
		}
	}
}
