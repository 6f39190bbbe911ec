// Package gateway provides the HTTP gateway server.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	v1 "finch/api/v1"
	"finch/internal/config"
	"finch/internal/gateway/middleware"
	"finch/internal/gateway/websocket"
	"finch/internal/storage"
	"finch/pkg/logger"
)

// Server represents the HTTP gateway server.
type Server struct {
	httpServer  *http.Server
	router      *mux.Router
	hub         *websocket.Hub
	rateLimiter *middleware.RateLimiter
	config      *config.Config

	hubCtx    context.Context
	hubCancel context.CancelFunc
	hubOnce   sync.Once
	hubDone   chan struct{}
	hubUp     atomic.Bool
}

// NewServer creates the gateway and registers the API routes. deps.Hub and
// deps.Limiter are created from cfg when nil.
func NewServer(cfg *config.Config, deps v1.RouterDeps) *Server {
	router := mux.NewRouter()

	if deps.Limiter == nil {
		deps.Limiter = middleware.NewRateLimiter(cfg.Server.RateLimit)
	}
	if deps.Hub == nil {
		deps.Hub = websocket.NewHub(chatOwner(deps.DB))
	}
	if deps.CheckOrigin == nil {
		deps.CheckOrigin = originChecker(cfg.Server.CORSOrigins)
	}
	if deps.Config == nil {
		deps.Config = cfg
	}
	v1.NewRouter(deps).RegisterRoutes(router)

	// Recovery -> Logging -> CORS. Auth and rate limiting are per route.
	handler := middleware.Recovery(
		middleware.Logging(
			middleware.CORS(cfg.Server.CORSOrigins)(router),
		),
	)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      0, // SSE turns outlive any fixed write deadline
			IdleTimeout:       120 * time.Second,
		},
		router:      router,
		hub:         deps.Hub,
		rateLimiter: deps.Limiter,
		config:      cfg,
		hubCtx:      hubCtx,
		hubCancel:   hubCancel,
		hubDone:     make(chan struct{}),
	}
}

// chatOwner lets a user follow only the chats they own.
func chatOwner(db *storage.DB) websocket.Authorizer {
	if db == nil {
		return nil
	}
	return func(ctx context.Context, userID, chatID string) error {
		_, err := db.GetOwnedChat(ctx, chatID, userID)
		return err
	}
}

// originChecker accepts same-origin upgrades and the configured CORS
// origins. Like CORS, an empty list accepts any origin.
func originChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed["*"] || allowed[origin] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(l)
}

// Serve serves on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.hubOnce.Do(func() {
		s.hubUp.Store(true)
		go func() {
			defer close(s.hubDone)
			s.hub.Run(s.hubCtx)
		}()
	})

	logger.Info().Str("addr", l.Addr().String()).Msg("Starting gateway server")

	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server. Running SSE turns are given
// until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info().Msg("Shutting down gateway server")

	err := s.httpServer.Shutdown(ctx)

	s.hubCancel()
	if s.hubUp.Load() {
		<-s.hubDone
	}
	s.rateLimiter.Close()

	if err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Router returns the underlying router for testing.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *websocket.Hub {
	return s.hub
}
