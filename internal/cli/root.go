// Package cli implements the finch command line: the server, a terminal
// chat client, token minting and first-run setup.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"finch/internal/config"
	"finch/pkg/logger"
)

// GlobalFlags 全局标志
type GlobalFlags struct {
	ConfigPath string
	LogLevel   string
	Verbose    bool
	Quiet      bool
}

var globalFlags GlobalFlags

// contextKey CLI 上下文键
type contextKey struct{}

// NewRootCmd 创建根命令
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "finch",
		Short: "Finch - streaming backend for a financial chat assistant",
		Long: `Finch plans research tasks, calls market data and web search tools,
and streams the model's answer to clients as a sequence of deltas.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// 跳过 version 和 help 命令的初始化
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}

			configPath := globalFlags.ConfigPath
			if configPath == "" {
				var err error
				configPath, err = config.DefaultConfigPath()
				if err != nil {
					return err
				}
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logLevel := cfg.Log.Level
			switch {
			case globalFlags.LogLevel != "":
				logLevel = globalFlags.LogLevel
			case globalFlags.Verbose:
				logLevel = "debug"
			case globalFlags.Quiet:
				logLevel = "error"
			}
			if err := logger.Init(logger.Config{
				Level:  logLevel,
				Format: cfg.Log.Format,
				File:   cfg.Log.File,
			}); err != nil {
				return err
			}

			cliCtx := NewCLIContext(cfg, configPath, logger.Get())
			cmd.SetContext(context.WithValue(cmd.Context(), contextKey{}, cliCtx))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if cliCtx := GetCLIContext(cmd); cliCtx != nil {
				return cliCtx.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "quiet mode")

	rootCmd.AddCommand(NewVersionCmd())
	rootCmd.AddCommand(NewInitCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewChatCmd())
	rootCmd.AddCommand(NewTokenCmd())

	return rootCmd
}

// GetCLIContext 从命令上下文获取 CLI 上下文
func GetCLIContext(cmd *cobra.Command) *CLIContext {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	cliCtx, ok := ctx.Value(contextKey{}).(*CLIContext)
	if !ok {
		return nil
	}
	return cliCtx
}
