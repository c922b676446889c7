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

	"github.com/daimoniac/swaudit/internal/config"
	"github.com/daimoniac/swaudit/internal/normalize"
	"github.com/daimoniac/swaudit/internal/observability"
	"github.com/daimoniac/swaudit/internal/report"
	"github.com/daimoniac/swaudit/internal/session"
	"github.com/daimoniac/swaudit/internal/statestore"

	_ "github.com/daimoniac/swaudit/build/swagger" // Import generated docs
)

// @title swaudit API
// @version 1.0
// @description REST API for auditing installed software inventories against a CVE corpus.
// @description
// @description ## Features
// @description - Upload an inventory into a short-lived audit session
// @description - Run an audit and fetch the report as JSON or PDF
// @description - Inspect the match cache
// @description - Health checks

// @contact.name swaudit
// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter your API key (with or without "Bearer " prefix)

const (
	// maxUploadBytes bounds the size of an uploaded inventory.
	maxUploadBytes = 16 << 20

	// audits of large inventories run inside the request
	auditWriteTimeout = 10 * time.Minute
)

// Auditor runs an audit for a session
type Auditor interface {
	Run(ctx context.Context, key, userID string, page int) (*report.Report, error)
}

// APIServer provides HTTP API for audit sessions and the match cache
type APIServer struct {
	config        *config.APIConfig
	sessions      session.Store
	auditor       Auditor
	cache         statestore.MatchCache
	normalizer    *normalize.Normalizer
	exporter      *report.PDFExporter
	healthChecker *observability.HealthChecker
	router        *http.ServeMux
	server        *http.Server
	logger        *slog.Logger
}

// NewAPIServer creates a new API server instance. healthChecker may be nil.
func NewAPIServer(cfg *config.APIConfig, sessions session.Store, auditor Auditor, cache statestore.MatchCache, normalizer *normalize.Normalizer, healthChecker *observability.HealthChecker, logger *slog.Logger) *APIServer {
	if normalizer == nil {
		normalizer = normalize.New()
	}
	api := &APIServer{
		config:        cfg,
		sessions:      sessions,
		auditor:       auditor,
		cache:         cache,
		normalizer:    normalizer,
		exporter:      report.NewPDFExporter(),
		healthChecker: healthChecker,
		router:        http.NewServeMux(),
		logger:        logger,
	}

	api.setupRoutes()

	api.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: auditWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return api
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	// Sessions
	s.router.HandleFunc("/api/v1/sessions", s.corsMiddleware(s.authMiddleware(s.handleCreateSession, true)))
	s.router.HandleFunc("/api/v1/sessions/", s.corsMiddleware(s.authMiddleware(s.handleSessionRoutes, false)))

	// Match cache
	s.router.HandleFunc("/api/v1/cache", s.corsMiddleware(s.authMiddleware(s.handleListCache, false)))
	s.router.HandleFunc("/api/v1/cache/", s.corsMiddleware(s.authMiddleware(s.handleGetCacheEntry, false)))

	// Health
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
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS request
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// authMiddleware provides optional API key authentication
// requireWrite indicates if this is a write operation that should be blocked in read-only mode
func (s *APIServer) authMiddleware(next http.HandlerFunc, requireWrite bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if requireWrite && s.config.ReadOnly && r.Method != http.MethodGet {
			s.respondError(w, http.StatusForbidden, "API is in read-only mode")
			return
		}

		if s.config.APIKey != "" {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				s.respondError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			// Extract token - accept both "Bearer <token>" and just "<token>"
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token != s.config.APIKey {
				s.respondError(w, http.StatusUnauthorized, "Invalid API key")
				return
			}
		}

		next(w, r)
	}
}

// Start starts the API server and blocks until ctx is done
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

// parseQueryParam extracts a query parameter from the request
func parseQueryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// parseQueryParamInt extracts an integer query parameter
func parseQueryParamInt(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
		return intValue
	}
	return defaultValue
}

// handleRootRedirect redirects / to /swagger/
func (s *APIServer) handleRootRedirect(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.respondError(w, http.StatusNotFound, "not found")
		return
	}
	http.Redirect(w, r, "/swagger/", http.StatusMovedPermanently)
}
