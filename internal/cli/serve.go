package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"finch/internal/server"
)

// shutdownGrace bounds how long running turns may take to finish on exit.
const shutdownGrace = 30 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the finch API server",
		Long: `Start the finch API server.

The server exposes the chat streaming API, chat history, projects and
skills under /api/v1, and a websocket at /ws for following running turns.
Requests are authenticated with tokens signed by FINCH_JWT_SECRET.`,
		Example: `  # Start with the default configuration
  finch serve

  # Listen on another port
  finch serve --port 9000`,
		RunE: runServe,
	}

	cmd.Flags().IntP("port", "p", 0, "port to listen on (overrides config)")
	cmd.Flags().String("host", "", "host to bind to (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	cfg := cliCtx.Config
	log := cliCtx.Log()

	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}

	srv, err := server.New(cmd.Context(), server.Options{Config: cfg, Version: Version})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var serveErr error
	select {
	case <-sigCh:
		log.Info().Msg("Shutting down server...")
	case serveErr = <-srv.ErrorChan():
		log.Error().Err(serveErr).Msg("Server error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		if serveErr == nil {
			serveErr = err
		}
	}
	return serveErr
}
