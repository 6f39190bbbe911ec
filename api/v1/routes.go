package v1

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"finch/internal/config"
	"finch/internal/gateway/handlers"
	"finch/internal/gateway/middleware"
	"finch/internal/gateway/websocket"
	"finch/internal/provider"
	"finch/internal/runner"
	"finch/internal/storage"
	"finch/internal/tools"
	"finch/internal/tools/builtin"
)

// ToolsFunc builds the tool registry of one turn. financialKey is the
// per-request Financial Datasets key, possibly empty.
type ToolsFunc func(financialKey string) (*tools.Registry, error)

// RouterDeps holds dependencies for the v1 API router.
type RouterDeps struct {
	DB           *storage.DB
	Config       *config.Config
	Orchestrator *runner.Orchestrator
	Providers    provider.Factory
	// Tools defaults to the builtin tools configured from Config.
	Tools   ToolsFunc
	Hub     *websocket.Hub
	Auth    *middleware.Authenticator
	Limiter *middleware.RateLimiter
	Version string
	Started time.Time
	// CheckOrigin is used for websocket upgrades. Nil accepts same-origin
	// requests only.
	CheckOrigin func(r *http.Request) bool
}

// Router wraps v1 API dependencies.
type Router struct {
	db           *storage.DB
	config       *config.Config
	orchestrator *runner.Orchestrator
	providers    provider.Factory
	tools        ToolsFunc
	hub          *websocket.Hub
	auth         *middleware.Authenticator
	limiter      *middleware.RateLimiter
	version      string
	started      time.Time
	checkOrigin  func(r *http.Request) bool
}

// NewRouter creates a new v1 API router.
func NewRouter(deps RouterDeps) *Router {
	r := &Router{
		db:           deps.DB,
		config:       deps.Config,
		orchestrator: deps.Orchestrator,
		providers:    deps.Providers,
		tools:        deps.Tools,
		hub:          deps.Hub,
		auth:         deps.Auth,
		limiter:      deps.Limiter,
		version:      deps.Version,
		started:      deps.Started,
		checkOrigin:  deps.CheckOrigin,
	}
	if r.started.IsZero() {
		r.started = time.Now()
	}
	if r.tools == nil {
		cfg := r.config
		r.tools = func(financialKey string) (*tools.Registry, error) {
			return builtin.NewRegistry(builtin.OptionsFromConfig(cfg, financialKey))
		}
	}
	return r
}

// RegisterRoutes registers all v1 API routes.
func (r *Router) RegisterRoutes(router *mux.Router) {
	v1 := router.PathPrefix("/api/v1").Subrouter()

	// Public
	v1.HandleFunc("/health", handlers.HealthHandler(r.version, r.started, r.healthChecks())).Methods(http.MethodGet)
	v1.HandleFunc("/models", r.HandleModels).Methods(http.MethodGet)

	// Config
	v1.Handle("/config/keys", r.protected(r.HandleKeys)).Methods(http.MethodGet)

	// Chat
	v1.Handle("/chat", r.protected(r.HandleChat)).Methods(http.MethodPost)
	v1.Handle("/chat/{id}/stop", r.protected(r.HandleStopChat)).Methods(http.MethodPost)
	v1.Handle("/chat/{id}", r.protected(r.HandleDeleteChat)).Methods(http.MethodDelete)
	v1.Handle("/history", r.protected(r.HandleHistory)).Methods(http.MethodGet)
	v1.Handle("/messages", r.protected(r.HandleMessages)).Methods(http.MethodGet)

	// Projects
	v1.Handle("/projects", r.protected(r.HandleListProjects)).Methods(http.MethodGet)
	v1.Handle("/projects", r.protected(r.HandleSaveProject)).Methods(http.MethodPost)
	v1.Handle("/projects/{id}", r.protected(r.HandleGetProject)).Methods(http.MethodGet)
	v1.Handle("/projects/{id}", r.protected(r.HandleDeleteProject)).Methods(http.MethodDelete)

	// Skills
	v1.Handle("/skills", r.protected(r.HandleListSkills)).Methods(http.MethodGet)
	v1.Handle("/skills", r.protected(r.HandleSaveSkill)).Methods(http.MethodPost)
	v1.Handle("/skills/{id}", r.protected(r.HandleDeleteSkill)).Methods(http.MethodDelete)

	// WebSocket
	if r.hub != nil {
		router.Handle("/ws", r.protected(websocket.Handler(r.hub, r.checkOrigin))).Methods(http.MethodGet)
	}
}

// protected requires an authenticated user and applies the per-user rate
// limit.
func (r *Router) protected(h http.HandlerFunc) http.Handler {
	var next http.Handler = h
	if r.limiter != nil {
		next = r.limiter.Middleware(next)
	}
	if r.auth != nil {
		next = r.auth.Middleware(next)
	}
	return next
}

func (r *Router) healthChecks() map[string]handlers.Check {
	if r.db == nil {
		return nil
	}
	return map[string]handlers.Check{"database": r.db.PingContext}
}
