package cli

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"finch/internal/auth"
	"finch/internal/config"
	"finch/internal/storage"
	"finch/pkg/logger"
)

// CLIContext CLI 上下文
type CLIContext struct {
	Config     *config.Config
	ConfigPath string
	Logger     *zerolog.Logger

	storageOnce sync.Once
	storage     *storage.DB
	storageErr  error
}

// NewCLIContext 创建 CLI 上下文
func NewCLIContext(cfg *config.Config, configPath string, log *zerolog.Logger) *CLIContext {
	return &CLIContext{Config: cfg, ConfigPath: configPath, Logger: log}
}

// GetStorage 获取存储连接（懒加载）
func (c *CLIContext) GetStorage() (*storage.DB, error) {
	c.storageOnce.Do(func() {
		path := c.Config.Storage.Path
		if path == "" {
			if path, c.storageErr = config.DefaultDataPath(); c.storageErr != nil {
				return
			}
		}
		c.storage, c.storageErr = storage.Open(path)
	})
	return c.storage, c.storageErr
}

// Issuer returns the token issuer configured for the server.
func (c *CLIContext) Issuer() (*auth.Issuer, error) {
	iss, err := auth.NewIssuer(c.Config.Secrets.JWTSecret, c.Config.Auth.Issuer, c.Config.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("%w (set FINCH_JWT_SECRET)", err)
	}
	return iss, nil
}

// BaseURL is the server address clients connect to.
func (c *CLIContext) BaseURL() string {
	host := c.Config.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Config.Server.Port)
}

// Close 关闭资源
func (c *CLIContext) Close() error {
	if c.storage != nil {
		return c.storage.Close()
	}
	return nil
}

// Log 获取 Logger
func (c *CLIContext) Log() *zerolog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.Get()
}
