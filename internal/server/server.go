// Package server exposes a keyed job registry over HTTP.
//
// Endpoints:
//
//	POST   /jobs/start/{kind}   start a job from a registered definition
//	GET    /jobs                list tracked jobs (optional ?match= glob)
//	DELETE /jobs                remove finished jobs older than ?max_age=
//	GET    /jobs/{key}          current status of one job
//	POST   /jobs/{key}/wait     block until the job finishes
//	GET    /healthz             liveness plus registry census
package server

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/jobmon/pkg/jobmon"
)

// Config controls the HTTP surface.
type Config struct {
	// StartRatePerSecond caps how many jobs may be started per second
	// across all callers. Zero disables limiting.
	StartRatePerSecond float64

	// Version is reported by the health endpoint.
	Version string

	// Logger receives request-level lifecycle logs. Nil means no logging.
	Logger *zap.Logger
}

// Server wires a registry and a definition set to HTTP handlers.
type Server struct {
	registry *jobmon.Registry[string]
	defs     *Definitions
	logger   *zap.Logger
	limiter  *rate.Limiter
	version  string
}

// New creates a Server around the given registry and definitions.
func New(registry *jobmon.Registry[string], defs *Definitions, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.StartRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.StartRatePerSecond), int(cfg.StartRatePerSecond)+1)
	}
	return &Server{
		registry: registry,
		defs:     defs,
		logger:   logger,
		limiter:  limiter,
		version:  cfg.Version,
	}
}

// Router builds the chi router for the server's endpoints.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Delete("/", s.handleCleanup)
		r.Post("/start/{kind}", s.handleStart)
		r.Get("/{key}", s.handleGet)
		r.Post("/{key}/wait", s.handleWait)
	})
	return r
}
