package config

import (
	"time"

	"github.com/spf13/viper"
)

// SetDefaults 设置所有配置项的默认值
func SetDefaults() {
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8787)
	viper.SetDefault("server.cors_origins", []string{"*"})
	viper.SetDefault("server.rate_limit.enabled", true)
	viper.SetDefault("server.rate_limit.requests_per_minute", 120)
	viper.SetDefault("server.rate_limit.burst", 20)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.file", "")

	viper.SetDefault("storage.path", "")

	viper.SetDefault("model.default", "gpt-4o")
	viper.SetDefault("model.openai_base_url", "")
	viper.SetDefault("model.deepseek_base_url", "https://api.deepseek.com/v1")

	// 单轮编排：步数上限、首包超时、结束前的 settle 等待
	viper.SetDefault("turn.max_steps", 10)
	viper.SetDefault("turn.first_content_timeout", 5*time.Second)
	viper.SetDefault("turn.settle_delay", 1*time.Second)
	viper.SetDefault("turn.max_parallel_tools", 4)

	viper.SetDefault("tools.http_timeout", 30*time.Second)
	viper.SetDefault("tools.tavily.endpoint", "https://api.tavily.com/search")
	viper.SetDefault("tools.tavily.default_max_results", 5)
	viper.SetDefault("tools.tavily.max_results_cap", 10)
	viper.SetDefault("tools.financial_datasets.endpoint", "https://api.financialdatasets.ai")

	viper.SetDefault("auth.issuer", "finch")
	viper.SetDefault("auth.token_ttl", 24*time.Hour)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.endpoint", "localhost:4318")
	viper.SetDefault("telemetry.insecure", true)
	viper.SetDefault("telemetry.service_name", "finch")

	viper.SetDefault("skills.dir", "")
	viper.SetDefault("skills.watch", true)
	viper.SetDefault("skills.owner", "")
}
