package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Secrets holds provider credentials. They are read from the environment
// only, under the names the hosted providers document.
type Secrets struct {
	OpenAIKey            string `mapstructure:"openai_api_key"`
	GoogleKey            string `mapstructure:"google_api_key"`
	DeepSeekKey          string `mapstructure:"deepseek_api_key"`
	TavilyKey            string `mapstructure:"tavily_api_key"`
	FinancialDatasetsKey string `mapstructure:"financial_datasets_api_key"`
	JWTSecret            string `mapstructure:"jwt_secret"`
}

var secretEnv = map[string]string{
	"secrets.openai_api_key":             "OPENAI_API_KEY",
	"secrets.google_api_key":             "GOOGLE_API_KEY",
	"secrets.deepseek_api_key":           "DEEPSEEK_API_KEY",
	"secrets.tavily_api_key":             "TAVILY_API_KEY",
	"secrets.financial_datasets_api_key": "FINANCIAL_DATASETS_API_KEY",
	"secrets.jwt_secret":                 "FINCH_JWT_SECRET",
}

func bindSecrets() error {
	for key, env := range secretEnv {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// ProviderKey returns the configured key for a model provider name
// (openai, google, deepseek).
func (s Secrets) ProviderKey(provider string) string {
	switch provider {
	case "openai":
		return s.OpenAIKey
	case "google":
		return s.GoogleKey
	case "deepseek":
		return s.DeepSeekKey
	default:
		return ""
	}
}

var placeholderKeys = map[string]struct{}{
	"****":                            {},
	"changeme":                        {},
	"your-openai-api-key":             {},
	"your-financial-datasets-api-key": {},
}

// IsPlaceholderKey reports whether v is empty or one of the sample values
// shipped in example env files.
func IsPlaceholderKey(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	_, ok := placeholderKeys[v]
	return ok
}
