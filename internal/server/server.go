// Package server provides the HTTP server setup and wiring.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pendergraft/ethbinder/internal/badge"
	"github.com/pendergraft/ethbinder/internal/binding/domain"
	"github.com/pendergraft/ethbinder/internal/binding/transport"
	"github.com/pendergraft/ethbinder/internal/config"
	"github.com/pendergraft/ethbinder/internal/github"
	"github.com/pendergraft/ethbinder/internal/middleware/logging"
	"github.com/pendergraft/ethbinder/internal/middleware/realip"
	"github.com/pendergraft/ethbinder/internal/middleware/security"
	"github.com/pendergraft/ethbinder/internal/observability/metrics"
)

// Server is the HTTP server
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	router *chi.Mux

	github    domain.GitHub
	verifier  transport.Service
	responder *badge.Responder
}

// New creates a new server. gh is usually NewGitHubClient(cfg).
func New(cfg *config.Config, gh domain.GitHub, logger *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    chi.NewRouter(),
		github:    gh,
		responder: NewResponder(cfg),
	}

	svc := domain.NewService(gh, ServiceOptions(cfg))
	s.verifier = domain.LoggingMiddleware(logger)(svc)

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// NewGitHubClient builds the GitHub API client described by cfg.
func NewGitHubClient(cfg *config.Config) *github.Client {
	return github.New(cfg.GitHub.APIURL,
		github.WithToken(cfg.GitHub.Token),
		github.WithUserAgent(cfg.GitHub.UserAgent),
		github.WithTimeout(time.Duration(cfg.GitHub.TimeoutSeconds)*time.Second),
	)
}

// ServiceOptions maps configuration onto the verification pipeline.
func ServiceOptions(cfg *config.Config) domain.Options {
	return domain.Options{
		DefaultRepo:        cfg.Binding.DefaultRepo,
		RefererHosts:       cfg.Binding.RefererHosts,
		MaxRepoPages:       cfg.GitHub.MaxRepoPages,
		IssueState:         cfg.GitHub.IssueState,
		RequireHandleMatch: cfg.Binding.RequireHandleMatch,
		RequireIssueAuthor: cfg.Binding.RequireIssueAuthor,
	}
}

// NewResponder maps configuration onto the badge look.
func NewResponder(cfg *config.Config) *badge.Responder {
	return badge.NewResponder(badge.Options{
		Label:        cfg.Badge.Label,
		LabelColor:   cfg.Badge.LabelColor,
		SuccessColor: cfg.Badge.SuccessColor,
		FailureColor: cfg.Badge.FailureColor,
		NamedLogo:    cfg.Badge.NamedLogo,
		Style:        cfg.Badge.Style,
		CacheSeconds: cfg.Badge.CacheSeconds,
		AlwaysOK:     cfg.Badge.AlwaysOK,
	})
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	// Real IP first so every later middleware sees the client address.
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))

	s.router.Use(security.FilterMiddleware(s.cfg.Security.FilterEnabled))
	s.router.Use(security.LimitMiddleware(s.cfg.Security.MaxBodySizeKB))

	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)

	// Badges are embedded cross-origin by README renderers and the extension.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)

	if s.cfg.Metrics.Enabled {
		s.router.Method(http.MethodGet, s.cfg.Metrics.Path, metrics.Handler())
	}

	transport.NewHandler(s.verifier, s.responder).RegisterRoutes(s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady stays 200 without a token: badges then report the missing
// token themselves.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"github_token": s.github.HasToken(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
