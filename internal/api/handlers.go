package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/daimoniac/swaudit/internal/errors"
	"github.com/daimoniac/swaudit/internal/inventory"
	"github.com/daimoniac/swaudit/internal/session"
	"github.com/daimoniac/swaudit/internal/statestore"
)

const (
	sessionsPrefix = "/api/v1/sessions/"
	cachePrefix    = "/api/v1/cache/"
	userHeader     = "X-User-ID"
)

// statusForError maps domain errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrInvalidInput), stderrors.Is(err, errors.ErrNoInventory):
		return http.StatusBadRequest
	case stderrors.Is(err, errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case stderrors.Is(err, errors.ErrSessionForbidden):
		return http.StatusForbidden
	case stderrors.Is(err, errors.ErrSessionNotFound), stderrors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, errors.ErrSessionExpired):
		return http.StatusGone
	case stderrors.Is(err, errors.ErrTimeout), stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// requestUser returns the caller's user id from the X-User-ID header or the
// user_id query parameter.
func requestUser(r *http.Request) string {
	if u := strings.TrimSpace(r.Header.Get(userHeader)); u != "" {
		return u
	}
	return strings.TrimSpace(parseQueryParam(r, "user_id"))
}

// handleCreateSession stores an uploaded inventory under a new session key
// @Summary Create audit session
// @Description Upload a software inventory and receive a short-lived session key
// @Tags Sessions
// @Accept json
// @Produce json
// @Param request body CreateSessionRequest true "User and inventory"
// @Success 201 {object} SessionResponse
// @Failure 400 {object} ErrorResponse "Invalid request or empty inventory"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "API is in read-only mode"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /sessions [post]
func (s *APIServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if err := inventory.Validate(req.Inventory); err != nil {
		s.respondError(w, statusForError(err), err.Error())
		return
	}

	sess, err := s.sessions.Create(r.Context(), req.UserID, inventory.Normalize(req.Inventory))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to create session: %v", err))
		return
	}

	s.logger.Info("audit session created",
		"session", sess.Key,
		"user_id", sess.UserID,
		"records", len(sess.Inventory))

	s.respondJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// handleSessionRoutes dispatches /api/v1/sessions/{key}[/audit]
func (s *APIServer) handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, sessionsPrefix)
	key, action, _ := strings.Cut(rest, "/")
	if key == "" {
		s.respondError(w, http.StatusBadRequest, "Session key is required")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.handleGetSession(w, r, key)
	case action == "" && r.Method == http.MethodDelete:
		if s.config.ReadOnly {
			s.respondError(w, http.StatusForbidden, "API is in read-only mode")
			return
		}
		s.handleDeleteSession(w, r, key)
	case action == "audit" && r.Method == http.MethodPost:
		s.handleRunAudit(w, r, key)
	case action == "" || action == "audit":
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	default:
		s.respondError(w, http.StatusNotFound, "not found")
	}
}

// handleGetSession returns session metadata
// @Summary Get audit session
// @Description Retrieve metadata of a live audit session owned by the caller
// @Tags Sessions
// @Produce json
// @Param key path string true "Session key"
// @Param X-User-ID header string true "Owner of the session"
// @Success 200 {object} SessionResponse
// @Failure 403 {object} ErrorResponse "Session belongs to another user"
// @Failure 404 {object} ErrorResponse "Session not found"
// @Failure 410 {object} ErrorResponse "Session expired"
// @Security BearerAuth
// @Router /sessions/{key} [get]
func (s *APIServer) handleGetSession(w http.ResponseWriter, r *http.Request, key string) {
	sess, err := s.authorize(r, key)
	if err != nil {
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, toSessionResponse(sess))
}

// handleDeleteSession discards a session before it expires
// @Summary Delete audit session
// @Tags Sessions
// @Param key path string true "Session key"
// @Param X-User-ID header string true "Owner of the session"
// @Success 204
// @Failure 403 {object} ErrorResponse "Session belongs to another user or read-only mode"
// @Failure 404 {object} ErrorResponse "Session not found"
// @Security BearerAuth
// @Router /sessions/{key} [delete]
func (s *APIServer) handleDeleteSession(w http.ResponseWriter, r *http.Request, key string) {
	if _, err := s.authorize(r, key); err != nil {
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	if err := s.sessions.Delete(r.Context(), key); err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete session: %v", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRunAudit matches the session inventory and returns the report
// @Summary Run audit
// @Description Match the session inventory against the CVE corpus and return the report
// @Tags Audit
// @Produce json
// @Produce application/pdf
// @Param key path string true "Session key"
// @Param X-User-ID header string true "Owner of the session"
// @Param page query int false "Product table page" default(1)
// @Param format query string false "Set to pdf for a PDF report"
// @Success 200 {object} report.Report
// @Failure 400 {object} ErrorResponse "Empty inventory"
// @Failure 403 {object} ErrorResponse "Session belongs to another user"
// @Failure 404 {object} ErrorResponse "Session not found"
// @Failure 410 {object} ErrorResponse "Session expired"
// @Failure 500 {object} ErrorResponse "Audit failed"
// @Security BearerAuth
// @Router /sessions/{key}/audit [post]
func (s *APIServer) handleRunAudit(w http.ResponseWriter, r *http.Request, key string) {
	user := requestUser(r)
	if user == "" {
		s.respondError(w, http.StatusUnauthorized, "user id is required")
		return
	}

	rep, err := s.auditor.Run(r.Context(), key, user, parseQueryParamInt(r, "page", 1))
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("audit failed",
				"session", key,
				"error", err)
		}
		s.respondError(w, status, err.Error())
		return
	}

	if strings.EqualFold(parseQueryParam(r, "format"), "pdf") {
		data, err := s.exporter.Export(rep)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to render PDF: %v", err))
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="swaudit-%s.pdf"`, rep.RunID))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			s.logger.Error("error writing PDF response", "error", err.Error())
		}
		return
	}

	s.respondJSON(w, http.StatusOK, rep)
}

// handleListCache lists the most recently updated match cache entries
// @Summary List match cache
// @Tags Cache
// @Produce json
// @Param limit query int false "Maximum number of results" default(100)
// @Success 200 {array} CacheEntryResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /cache [get]
func (s *APIServer) handleListCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := parseQueryParamInt(r, "limit", 100)
	if limit < 1 {
		limit = 100
	}

	entries, err := s.cache.ListMatches(r.Context(), limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list cache: %v", err))
		return
	}

	resp := make([]CacheEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toCacheEntryResponse(e))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleGetCacheEntry looks up the cached match for a software name
// @Summary Get match cache entry
// @Description Names are normalized before the lookup
// @Tags Cache
// @Produce json
// @Param name path string true "Software name"
// @Success 200 {object} CacheEntryResponse
// @Failure 400 {object} ErrorResponse "Name is required"
// @Failure 404 {object} ErrorResponse "Not cached"
// @Security BearerAuth
// @Router /cache/{name} [get]
func (s *APIServer) handleGetCacheEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	norm, ok := s.normalizer.Normalize(strings.TrimPrefix(r.URL.Path, cachePrefix), "")
	if !ok {
		s.respondError(w, http.StatusBadRequest, "Name is required")
		return
	}

	entry, err := s.cache.GetMatch(r.Context(), norm.Name)
	if err != nil {
		if stderrors.Is(err, statestore.ErrCacheMiss) {
			s.respondError(w, http.StatusNotFound, "Name not cached")
			return
		}
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read cache: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, toCacheEntryResponse(entry))
}

// handleHealth returns component health
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} observability.HealthStatus
// @Failure 503 {object} observability.HealthStatus
// @Router /health [get]
func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.healthChecker == nil {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}
	s.healthChecker.HealthHandler()(w, r)
}

func (s *APIServer) authorize(r *http.Request, key string) (*session.Session, error) {
	user := requestUser(r)
	if user == "" {
		return nil, errors.ErrUnauthorized
	}
	return session.Authorize(r.Context(), s.sessions, key, user)
}
