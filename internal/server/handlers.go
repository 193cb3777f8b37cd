package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/3leaps/jobmon/pkg/jobmon"
)

// jobView is the JSON rendering of one job's observable state.
type jobView struct {
	Key        string     `json:"key"`
	Message    string     `json:"message"`
	Running    bool       `json:"running"`
	Succeeded  *bool      `json:"succeeded,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	ElapsedMS  int64      `json:"elapsed_ms"`
}

func viewOf(key string, job *jobmon.Job) jobView {
	v := jobView{
		Key:       key,
		Message:   job.Status().Message(),
		StartedAt: job.StartedAt(),
		ElapsedMS: job.Elapsed().Milliseconds(),
	}
	success, done := job.Outcome()
	v.Running = !done
	if done {
		v.Succeeded = &success
		if at, ok := job.FinishedAt(); ok {
			v.FinishedAt = &at
		}
	}
	return v
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		s.writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many job starts")
		return
	}

	kind := chi.URLParam(r, "kind")
	factory, ok := s.defs.Get(kind)
	if !ok {
		s.writeError(w, http.StatusNotFound, "UNKNOWN_KIND", "no job kind named "+kind)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "read payload: "+err.Error())
		return
	}

	work, err := factory(payload)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		key = uuid.New().String()
	}

	job, err := s.registry.Start(key, work)
	if errors.Is(err, jobmon.ErrJobExists) {
		s.writeError(w, http.StatusConflict, "ALREADY_EXISTS", "a job with key "+key+" is still running")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}

	s.logger.Info("job started",
		zap.String("kind", kind),
		zap.String("key", key))
	s.writeJSON(w, http.StatusAccepted, viewOf(key, job))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	job, ok := s.registry.Get(key)
	if !ok {
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", "no job with key "+key)
		return
	}
	s.writeJSON(w, http.StatusOK, viewOf(key, job))
}

func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	job, ok := s.registry.Get(key)
	if !ok {
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", "no job with key "+key)
		return
	}

	err := job.Wait(r.Context())
	if err != nil && !errors.Is(err, jobmon.ErrJobFailed) {
		// The client went away or the request timed out before the job
		// finished; the job itself keeps running.
		s.writeError(w, http.StatusServiceUnavailable, "WAIT_ABORTED", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, viewOf(key, job))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("match")
	if pattern != "" {
		if !doublestar.ValidatePattern(pattern) {
			s.writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "bad match pattern "+pattern)
			return
		}
	}

	views := make([]jobView, 0)
	for _, key := range s.registry.Keys() {
		if pattern != "" {
			matched, err := doublestar.Match(pattern, key)
			if err != nil || !matched {
				continue
			}
		}
		if job, ok := s.registry.Get(key); ok {
			views = append(views, viewOf(key, job))
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  views,
		"count": len(views),
	})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	maxAge := time.Duration(0)
	if raw := r.URL.Query().Get("max_age"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "bad max_age "+raw)
			return
		}
		maxAge = parsed
	}

	removed := s.registry.Cleanup(maxAge)
	s.logger.Info("cleanup",
		zap.Duration("max_age", maxAge),
		zap.Int("removed", removed))
	s.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.registry.Stats()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": s.version,
		"jobs": map[string]int{
			"running":   stats.Running,
			"succeeded": stats.Succeeded,
			"failed":    stats.Failed,
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("write response", zap.Error(err))
	}
}

// writeError emits the error envelope used across the API:
// {"error":{"code":...,"message":...}}.
func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
