// Package server assembles finch: storage, authentication, telemetry, the
// turn orchestrator, skill file import and the HTTP gateway.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	v1 "finch/api/v1"
	"finch/internal/auth"
	"finch/internal/config"
	"finch/internal/gateway"
	"finch/internal/gateway/middleware"
	"finch/internal/prompt"
	"finch/internal/provider"
	"finch/internal/runner"
	"finch/internal/skills"
	"finch/internal/storage"
	"finch/internal/telemetry"
	"finch/pkg/logger"
)

// Options configures a Server.
type Options struct {
	Config  *config.Config
	Version string
	// Providers overrides the model clients, mainly for tests.
	Providers provider.Factory
}

// Server is a running finch instance.
type Server struct {
	cfg       *config.Config
	db        *storage.DB
	gateway   *gateway.Server
	watcher   *skills.Watcher
	telemetry telemetry.ShutdownFunc
	cancel    context.CancelFunc
	errChan   chan error
	startedAt time.Time

	mu      sync.Mutex
	running bool
}

// New opens storage and wires every component. Nothing listens until
// Start.
func New(ctx context.Context, opts Options) (_ *Server, err error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("server: config is required")
	}

	issuer, err := auth.NewIssuer(cfg.Secrets.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, opts.Version)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	dbPath := cfg.Storage.Path
	if dbPath == "" {
		if dbPath, err = config.DefaultDataPath(); err != nil {
			return nil, err
		}
	}
	db, err := storage.Open(dbPath)
	if err != nil {
		_ = shutdownTelemetry(ctx)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
			_ = shutdownTelemetry(ctx)
		}
	}()

	providers := opts.Providers
	if providers == nil {
		providers = ProviderFactory(cfg.Model)
	}

	content := ownedContent{db: db}
	orch := runner.NewOrchestrator(db, prompt.NewAssembler(content, content), runner.NewCancelRegistry(),
		runner.ConfigFrom(cfg), prompt.DefaultPromptConfig())

	s := &Server{
		cfg:       cfg,
		db:        db,
		telemetry: shutdownTelemetry,
		errChan:   make(chan error, 1),
	}
	s.gateway = gateway.NewServer(cfg, v1.RouterDeps{
		DB:           db,
		Config:       cfg,
		Orchestrator: orch,
		Providers:    providers,
		Auth:         middleware.NewAuthenticator(issuer, db),
		Version:      opts.Version,
	})

	if s.watcher, err = s.importSkills(ctx); err != nil {
		_ = s.gateway.Shutdown(ctx)
		return nil, err
	}
	return s, nil
}

// importSkills loads the skills directory for the configured owner and,
// when enabled, returns a watcher for later changes. No owner disables
// skill files.
func (s *Server) importSkills(ctx context.Context) (*skills.Watcher, error) {
	sc := s.cfg.Skills
	if sc.Owner == "" {
		logger.Debug().Msg("No skills owner configured; skill files disabled")
		return nil, nil
	}
	dir := sc.Dir
	if dir == "" {
		var err error
		if dir, err = config.DefaultSkillsDir(); err != nil {
			return nil, err
		}
	}

	importer, err := skills.NewImporter(s.db, sc.Owner)
	if err != nil {
		return nil, err
	}
	n, err := importer.ImportDir(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("import skills: %w", err)
	}
	logger.Info().Int("count", n).Str("dir", dir).Msg("Imported skill files")

	if !sc.Watch {
		return nil, nil
	}
	return skills.NewWatcher(importer, dir)
}

// Start serves in the background. Serve errors are delivered on
// ErrorChan.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			logger.Warn().Err(err).Msg("Skill watcher not started")
		}
	}
	s.cancel = cancel
	s.running = true
	s.startedAt = time.Now()

	go func() {
		if err := s.gateway.Start(); err != nil {
			s.errChan <- err
		}
	}()
	logger.Info().Str("addr", s.cfg.Server.Addr()).Msg("finch server started")
	return nil
}

// ErrorChan returns the error channel for monitoring server errors.
func (s *Server) ErrorChan() <-chan error {
	return s.errChan
}

// Stop shuts the gateway down, waiting up to ctx for running turns, then
// releases storage and flushes telemetry.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	running := s.running
	s.running = false
	s.mu.Unlock()

	var errs []error
	if running {
		s.cancel()
		if err := s.gateway.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	if err := s.telemetry(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}
	logger.Info().Msg("finch server stopped")
	return errors.Join(errs...)
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Gateway returns the HTTP gateway.
func (s *Server) Gateway() *gateway.Server {
	return s.gateway
}
