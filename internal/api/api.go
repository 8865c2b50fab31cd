package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/daimoniac/cvealert/build/swagger" // Import generated docs
	"github.com/daimoniac/cvealert/internal/config"
	"github.com/daimoniac/cvealert/internal/observability"
	"github.com/daimoniac/cvealert/internal/statestore"
	"github.com/daimoniac/cvealert/internal/watcher"
)

// @title cvealert API
// @version 1.0
// @description Read-only REST API over the CVEs and advisories already notified by cvealert.
// @description
// @description ## Features
// @description - List notified CVE identifiers per vendor
// @description - List notified advisories
// @description - Inspect the last polling cycle
// @description - Request an early polling cycle

// @contact.name cvealert
// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter your API key (with or without "Bearer " prefix)

// Poller is the part of the watcher the API drives
type Poller interface {
	Trigger() bool
	LastReport() *watcher.CycleReport
}

// APIServer provides HTTP API for querying notified items and triggering a poll
type APIServer struct {
	config  *config.APIConfig
	vendors []string
	seen    *statestore.Seen
	poller  Poller
	health  *observability.HealthChecker
	router  *http.ServeMux
	server  *http.Server
	logger  *slog.Logger
}

// NewAPIServer creates a new API server instance. seen is read concurrently
// with the watcher writing to it.
func NewAPIServer(cfg *config.APIConfig, vendors []string, seen *statestore.Seen, poller Poller, health *observability.HealthChecker, logger *slog.Logger) *APIServer {
	if logger == nil {
		logger = slog.Default()
	}
	api := &APIServer{
		config:  cfg,
		vendors: vendors,
		seen:    seen,
		poller:  poller,
		health:  health,
		router:  http.NewServeMux(),
		logger:  logger,
	}

	api.setupRoutes()

	api.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return api
}

// Handler returns the router, for tests and embedding
func (s *APIServer) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	// Query endpoints (GET)
	s.router.HandleFunc("/api/v1/cves", s.corsMiddleware(s.authMiddleware(s.handleListCVEs, false)))
	s.router.HandleFunc("/api/v1/cves/", s.corsMiddleware(s.authMiddleware(s.handleGetVendorCVEs, false)))
	s.router.HandleFunc("/api/v1/advisories", s.corsMiddleware(s.authMiddleware(s.handleListAdvisories, false)))
	s.router.HandleFunc("/api/v1/status", s.corsMiddleware(s.authMiddleware(s.handleStatus, false)))

	// Action endpoints (POST)
	s.router.HandleFunc("/api/v1/poll", s.corsMiddleware(s.authMiddleware(s.handleTriggerPoll, true)))

	s.router.HandleFunc("/health", s.corsMiddleware(s.handleHealth))

	// Swagger documentation
	s.router.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Redirect root to swagger
	s.router.HandleFunc("/", s.handleRootRedirect)
}

// corsMiddleware adds CORS headers to allow cross-origin requests
func (s *APIServer) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// authMiddleware provides optional API key authentication.
// requireWrite marks operations that are blocked in read-only mode.
func (s *APIServer) authMiddleware(next http.HandlerFunc, requireWrite bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if requireWrite && s.config.ReadOnly {
			s.respondError(w, http.StatusForbidden, "API is in read-only mode")
			return
		}

		if s.config.APIKey != "" {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				s.respondError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			// Accept both "Bearer <token>" and "<token>"
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token != s.config.APIKey {
				s.respondError(w, http.StatusUnauthorized, "Invalid API key")
				return
			}
		}

		next(w, r)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *APIServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("API server is disabled")
		return nil
	}

	s.logger.Info("starting API server",
		"port", s.config.Port,
		"read_only", s.config.ReadOnly)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server error",
				"error", err.Error())
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down API server")
	return s.server.Shutdown(shutdownCtx)
}

// Shutdown gracefully shuts down the API server
func (s *APIServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// respondJSON sends a JSON response
func (s *APIServer) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("error encoding JSON response",
			"error", err.Error())
	}
}

// respondError sends an error response
func (s *APIServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}

// handleRootRedirect redirects / to /swagger/
func (s *APIServer) handleRootRedirect(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.respondError(w, http.StatusNotFound, "not found")
		return
	}
	http.Redirect(w, r, "/swagger/", http.StatusMovedPermanently)
}
