package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/luminaforge/headshotd/internal/joberr"
	"github.com/luminaforge/headshotd/internal/journal"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// listJobsResponse wraps the paginated list response.
type listJobsResponse struct {
	Jobs   []*journal.Job `json:"jobs"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// handleRunJob accepts one dispatch payload, runs the job to completion,
// and returns the worker's uniform response map. The body carries the
// free-form harness shape {"input": {"prompt": ..., "user_id": ...}};
// everything past decoding is the worker's concern, including turning
// bad input into a typed failure response.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp := s.worker.Execute(r.Context(), payload)
	s.writeJSON(w, responseStatus(resp), resp)
}

// responseStatus maps the worker response onto an HTTP status code. The
// body is the contract; the code is a courtesy for HTTP-aware callers.
func responseStatus(resp map[string]any) int {
	kind, ok := resp["error_type"].(string)
	if !ok {
		return http.StatusOK
	}
	switch joberr.Kind(kind) {
	case joberr.KindMissingField, joberr.KindInvalidType,
		joberr.KindPromptTooShort, joberr.KindPromptTooLong, joberr.KindPromptEmptyAfterStrip,
		joberr.KindUserIDEmpty, joberr.KindUserIDTooLong, joberr.KindUserIDInvalidFormat,
		joberr.KindPathTraversal, joberr.KindValidation:
		return http.StatusBadRequest
	case joberr.KindInitialization:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	j, err := s.journal.GetJob(r.Context(), id)
	if errors.Is(err, journal.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("get job", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	s.writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	jobs, total, err := s.journal.ListJobs(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list jobs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	if jobs == nil {
		jobs = []*journal.Job{}
	}

	s.writeJSON(w, http.StatusOK, listJobsResponse{
		Jobs:   jobs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
