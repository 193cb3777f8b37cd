package jobmon

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry is a keyed collection of jobs with exclusivity while running: at
// most one unfinished job per key at any time.
//
// Finished jobs stay tracked until they are overwritten by a later Start or
// removed by Cleanup, which is deliberate; observers usually want to read a
// job's outcome well after it finished. Handles held by callers remain
// valid after the registry stops tracking a job.
//
// All methods are safe for concurrent use from any number of goroutines.
type Registry[K cmp.Ordered] struct {
	spawner Spawner
	logger  *zap.Logger

	mu   sync.Mutex
	jobs map[K]*Job
}

type registryConfig struct {
	spawner Spawner
	logger  *zap.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryConfig)

// WithSpawner makes the registry start jobs on the given spawner instead of
// the default goroutine-per-job spawner.
func WithSpawner(s Spawner) RegistryOption {
	return func(cfg *registryConfig) { cfg.spawner = s }
}

// WithLogger enables lifecycle logging: job started, replaced, cleaned up.
// The default is a nop logger.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(cfg *registryConfig) { cfg.logger = l }
}

// NewRegistry creates an empty registry.
func NewRegistry[K cmp.Ordered](opts ...RegistryOption) *Registry[K] {
	cfg := registryConfig{spawner: Go(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry[K]{
		spawner: cfg.spawner,
		logger:  cfg.logger,
		jobs:    make(map[K]*Job),
	}
}

// Start starts a new job under key.
//
// If the key is vacant the job is started and stored. If the key holds a
// finished job, the new job replaces it; the old job's handles stay valid,
// the registry just stops tracking it. If the key holds a job that is still
// running, Start returns ErrJobExists and the work function is not invoked.
//
// The presence check and the insert happen in one mutual-exclusion region,
// so two racing Starts under the same key resolve to exactly one winner.
func (r *Registry[K]) Start(key K, work Work) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.jobs[key]
	if ok && !existing.IsFinished() {
		return nil, ErrJobExists
	}

	job := StartOn(r.spawner, work)
	r.jobs[key] = job
	if ok {
		r.logger.Debug("replaced finished job", zap.Any("key", key))
	} else {
		r.logger.Debug("started job", zap.Any("key", key))
	}
	return job, nil
}

// Get returns the job stored under key, whether running or finished.
func (r *Registry[K]) Get(key K) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[key]
	return job, ok
}

// Len returns the number of tracked jobs, running and finished.
func (r *Registry[K]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Keys returns all tracked keys in sorted order.
func (r *Registry[K]) Keys() []K {
	r.mu.Lock()
	keys := make([]K, 0, len(r.jobs))
	for key := range r.jobs {
		keys = append(keys, key)
	}
	r.mu.Unlock()

	slices.Sort(keys)
	return keys
}

// Cleanup removes every job that finished at least maxAge ago and returns
// how many were removed. A maxAge of zero removes all finished jobs. Jobs
// that are still running are never touched, no matter how long they have
// run.
func (r *Registry[K]) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, job := range r.jobs {
		if at, ok := job.FinishedAt(); ok && at.Before(cutoff) {
			delete(r.jobs, key)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Debug("cleaned up finished jobs",
			zap.Int("removed", removed),
			zap.Duration("max_age", maxAge))
	}
	return removed
}

// Stats is a point-in-time census of a registry's jobs.
type Stats struct {
	Running   int
	Succeeded int
	Failed    int
}

// Stats counts the registry's jobs by state.
func (r *Registry[K]) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s Stats
	for _, job := range r.jobs {
		success, done := job.Outcome()
		switch {
		case !done:
			s.Running++
		case success:
			s.Succeeded++
		default:
			s.Failed++
		}
	}
	return s
}
