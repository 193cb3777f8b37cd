package jobmon

import (
	"sync/atomic"
	"time"
)

// Status is one reported progress snapshot of a job: the message plus the
// time it was reported. A Status is immutable; every report creates a new
// one and older snapshots simply become unreachable once replaced.
type Status struct {
	message   string
	timestamp time.Time
}

func newStatus(message string) Status {
	return Status{message: message, timestamp: time.Now()}
}

// Message returns the reported message.
func (s Status) Message() string { return s.message }

// Timestamp returns the time the message was reported.
func (s Status) Timestamp() time.Time { return s.timestamp }

// Age returns how long ago the message was reported.
func (s Status) Age() time.Duration { return time.Since(s.timestamp) }

// statusCell is a single-slot register holding the latest Status.
//
// Reporting happens frequently from inside a running job while observers
// poll concurrently, so the cell swaps an atomic pointer instead of taking a
// lock: stores never block loads and loads never observe a torn snapshot. A
// load that happens after a store (in real time) sees that store's value or
// a later one. Concurrent stores are tolerated; one of them wins.
type statusCell struct {
	p atomic.Pointer[Status]
}

func (c *statusCell) store(s Status) {
	c.p.Store(&s)
}

func (c *statusCell) load() Status {
	return *c.p.Load()
}
