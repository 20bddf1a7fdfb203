package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/pir/internal/models"
	"github.com/joescharf/pir/internal/store"
)

// DefaultAllowedOrigin is the origin of the web client in development.
const DefaultAllowedOrigin = "http://localhost:5173"

// HealthCheck is returned by the root and /health endpoints.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Server provides the REST API handlers.
type Server struct {
	store         store.Store
	allowedOrigin string
}

// NewServer creates a new API server. An empty allowedOrigin uses
// DefaultAllowedOrigin.
func NewServer(s store.Store, allowedOrigin string) *Server {
	if allowedOrigin == "" {
		allowedOrigin = DefaultAllowedOrigin
	}
	return &Server{store: s, allowedOrigin: allowedOrigin}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.root)
	mux.HandleFunc("GET /health", s.health)

	mux.HandleFunc("GET /api/issues", s.listIssues)
	mux.HandleFunc("POST /api/issues", s.createIssue)
	mux.HandleFunc("GET /api/issues/{id}", s.getIssue)
	mux.HandleFunc("PUT /api/issues/{id}", s.updateIssue)
	mux.HandleFunc("DELETE /api/issues/{id}", s.deleteIssue)

	return requestIDMiddleware(corsMiddleware(s.allowedOrigin, mux))
}

func corsMiddleware(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		if origin != "*" {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		// Any header the browser asks for is allowed.
		allowHeaders := "Content-Type"
		if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
			allowHeaders = req
		}
		w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
		w.Header().Add("Vary", "Access-Control-Request-Headers")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestIDMiddleware tags each request with a ULID and logs it on completion.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ulid.Make().String()
		w.Header().Set("X-Request-Id", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		slog.Info("request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// pathID parses the {id} path value, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid issue id: %q", r.PathValue("id")))
		return 0, false
	}
	return id, true
}

// decodeIssue reads an issue body, defaulting and validating its status.
func decodeIssue(w http.ResponseWriter, r *http.Request) (*models.Issue, bool) {
	var issue models.Issue
	if err := json.NewDecoder(r.Body).Decode(&issue); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return nil, false
	}
	if issue.Status == "" {
		issue.Status = models.DefaultStatus
	}
	if !issue.Status.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status: %q", issue.Status))
		return nil, false
	}
	return &issue, true
}

// --- Health ---

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthCheck{Status: "ok", Message: "Project Issue Report API is running"})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthCheck{Status: "healthy", Message: "API is operational"})
}

// --- Issues ---

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := s.store.ListIssues(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	issue, ok := decodeIssue(w, r)
	if !ok {
		return
	}
	issue.ID = nil
	if err := s.store.CreateIssue(r.Context(), issue); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	issue, err := s.store.GetIssue(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) updateIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	issue, ok := decodeIssue(w, r)
	if !ok {
		return
	}
	// The path id wins over any id in the body.
	issue.ID = &id
	if err := s.store.UpdateIssue(r.Context(), issue); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteIssue(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Issue deleted successfully"})
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
