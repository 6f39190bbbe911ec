package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config 是应用配置的根结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Model     ModelConfig     `mapstructure:"model" yaml:"model"`
	Turn      TurnConfig      `mapstructure:"turn" yaml:"turn"`
	Tools     ToolsConfig     `mapstructure:"tools" yaml:"tools"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Skills    SkillsConfig    `mapstructure:"skills" yaml:"skills"`

	// Secrets are bound to the conventional provider env vars and never written back to disk.
	Secrets Secrets `mapstructure:"secrets" yaml:"-"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Host        string          `mapstructure:"host" yaml:"host"`
	Port        int             `mapstructure:"port" yaml:"port"`
	CORSOrigins []string        `mapstructure:"cors_origins" yaml:"cors_origins"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int  `mapstructure:"burst" yaml:"burst"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ModelConfig 模型选择配置
type ModelConfig struct {
	Default         string `mapstructure:"default" yaml:"default"`
	OpenAIBaseURL   string `mapstructure:"openai_base_url" yaml:"openai_base_url"`
	DeepSeekBaseURL string `mapstructure:"deepseek_base_url" yaml:"deepseek_base_url"`
}

// TurnConfig 单轮对话的编排参数
type TurnConfig struct {
	MaxSteps            int           `mapstructure:"max_steps" yaml:"max_steps"`
	FirstContentTimeout time.Duration `mapstructure:"first_content_timeout" yaml:"first_content_timeout"`
	SettleDelay         time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	MaxParallelTools    int           `mapstructure:"max_parallel_tools" yaml:"max_parallel_tools"`
}

// ToolsConfig 外部工具配置
type ToolsConfig struct {
	HTTPTimeout       time.Duration           `mapstructure:"http_timeout" yaml:"http_timeout"`
	Tavily            TavilyConfig            `mapstructure:"tavily" yaml:"tavily"`
	FinancialDatasets FinancialDatasetsConfig `mapstructure:"financial_datasets" yaml:"financial_datasets"`
}

// TavilyConfig web search 配置
type TavilyConfig struct {
	Endpoint          string `mapstructure:"endpoint" yaml:"endpoint"`
	DefaultMaxResults int    `mapstructure:"default_max_results" yaml:"default_max_results"`
	MaxResultsCap     int    `mapstructure:"max_results_cap" yaml:"max_results_cap"`
}

// FinancialDatasetsConfig 金融数据工具配置
type FinancialDatasetsConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// AuthConfig JWT 鉴权配置
type AuthConfig struct {
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	TokenTTL time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
}

// TelemetryConfig OpenTelemetry 配置
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure    bool   `mapstructure:"insecure" yaml:"insecure"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

// SkillsConfig skill 目录导入配置
type SkillsConfig struct {
	Dir   string `mapstructure:"dir" yaml:"dir"`
	Watch bool   `mapstructure:"watch" yaml:"watch"`
	Owner string `mapstructure:"owner" yaml:"owner"`
}

var (
	globalConfig *Config
	configPath   string
	mu           sync.RWMutex
)

// Load 加载配置文件
// 优先级: ENV > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	SetDefaults()

	viper.SetEnvPrefix("FINCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := bindSecrets(); err != nil {
		return nil, err
	}

	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		configPath = expanded

		viper.SetConfigFile(expanded)
		if err := viper.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", expanded, err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Turn.MaxSteps <= 0 {
		return fmt.Errorf("turn.max_steps must be positive, got %d", c.Turn.MaxSteps)
	}
	if c.Turn.FirstContentTimeout <= 0 {
		return errors.New("turn.first_content_timeout must be positive")
	}
	if c.Turn.SettleDelay < 0 {
		return errors.New("turn.settle_delay must not be negative")
	}
	return nil
}

// GetConfig 获取当前配置
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return globalConfig
}

// Path returns the config file path passed to Load.
func Path() string {
	mu.RLock()
	defer mu.RUnlock()
	return configPath
}

// Set 设置配置值并持久化
func Set(key string, value any) error {
	mu.Lock()
	defer mu.Unlock()

	viper.Set(key, value)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	globalConfig = &cfg

	if configPath == "" {
		return nil
	}
	return SaveTo(&cfg, configPath)
}

// Save 保存当前配置到 Load 使用的路径
func Save() error {
	mu.RLock()
	cfg, path := globalConfig, configPath
	mu.RUnlock()

	if path == "" {
		return errors.New("config path not set")
	}
	if cfg == nil {
		return errors.New("config not loaded")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes cfg as yaml to path. The write is atomic and the file is
// created with 0600 since it may later hold credentials.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := atomic.WriteFile(path, strings.NewReader(string(data))); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Chmod(path, 0600)
}

// Reset 重置配置（主要用于测试）
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	configPath = ""
	viper.Reset()
}
