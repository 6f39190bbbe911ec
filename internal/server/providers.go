package server

import (
	"fmt"

	"finch/internal/config"
	"finch/internal/provider"
	"finch/internal/provider/gemini"
	"finch/internal/provider/openai"
)

// ProviderFactory routes catalog models to their API client. OpenAI and
// DeepSeek share the OpenAI-compatible client.
func ProviderFactory(cfg config.ModelConfig) provider.Factory {
	compatible := openai.Factory(map[string]string{
		provider.OpenAI:   cfg.OpenAIBaseURL,
		provider.DeepSeek: cfg.DeepSeekBaseURL,
	})
	google := gemini.Factory("")
	return func(m provider.Model, apiKey string) (provider.Provider, error) {
		switch m.Provider {
		case provider.OpenAI, provider.DeepSeek:
			return compatible(m, apiKey)
		case provider.Google:
			return google(m, apiKey)
		default:
			return nil, fmt.Errorf("%w: no client for provider %q", provider.ErrModelNotFound, m.Provider)
		}
	}
}
