package jobmon

import (
	"fmt"
	"sync/atomic"
	"time"
)

// startingMessage is the status every job carries before its first report.
const startingMessage = "Starting job"

// Monitor is the progress-reporting facet of a job, handed to the work
// function. It also answers every observer query: current status, start and
// finish times, and outcome.
//
// A Monitor is a shared handle. Every copy of the pointer refers to the same
// underlying state, so the work function, the registry, and any observer all
// see the same job. The state outlives removal from a registry for as long
// as any handle survives.
//
// Report and the query methods never block and never suspend; they are safe
// to call from tight polling loops or from inside the running job itself.
type Monitor struct {
	status    statusCell
	startedAt time.Time
	finished  atomic.Pointer[completion]
}

// completion is the write-once record of a job having finished. Its
// presence is the sole source of truth for "is this job finished".
type completion struct {
	finishedAt time.Time
	success    bool
}

func newMonitor() *Monitor {
	m := &Monitor{startedAt: time.Now()}
	m.status.store(newStatus(startingMessage))
	return m
}

// Report publishes a new status message, stamped with the current time. The
// message is visible to any concurrent Status caller as soon as Report
// returns.
func (m *Monitor) Report(message string) {
	m.status.store(newStatus(message))
}

// Reportf publishes a formatted status message.
func (m *Monitor) Reportf(format string, args ...any) {
	m.Report(fmt.Sprintf(format, args...))
}

// Status returns the latest reported status.
func (m *Monitor) Status() Status {
	return m.status.load()
}

// StartedAt returns the time the job was started.
func (m *Monitor) StartedAt() time.Time {
	return m.startedAt
}

// Outcome reports whether the job succeeded. done is false while the job is
// still running, in which case success carries no meaning. Outcome and
// IsFinished are always consistent with each other.
func (m *Monitor) Outcome() (success, done bool) {
	if c := m.finished.Load(); c != nil {
		return c.success, true
	}
	return false, false
}

// IsFinished reports whether the job has finished.
func (m *Monitor) IsFinished() bool {
	return m.finished.Load() != nil
}

// Succeeded reports whether the job finished successfully. A job still in
// progress has not succeeded.
func (m *Monitor) Succeeded() bool {
	success, done := m.Outcome()
	return done && success
}

// FinishedAt returns the time the completion record was written, not the
// time any observer discovered it through polling or Wait. Elapsed-time
// accounting therefore stays correct even for jobs nobody waited on.
func (m *Monitor) FinishedAt() (time.Time, bool) {
	if c := m.finished.Load(); c != nil {
		return c.finishedAt, true
	}
	return time.Time{}, false
}

// Elapsed returns the wall-clock time the job has spent: start to finish
// for a finished job, start to now for a running one.
func (m *Monitor) Elapsed() time.Duration {
	if at, ok := m.FinishedAt(); ok {
		return at.Sub(m.startedAt)
	}
	return time.Since(m.startedAt)
}

// setFinished publishes the final status message, if the classified outcome
// carries one, then writes the completion record. The record is written at
// most once per job, ever; a second call means the spawn protocol is broken.
func (m *Monitor) setFinished(rs ReturnStatus) {
	if rs.Message != "" {
		m.Report(rs.Message)
	}
	c := &completion{finishedAt: time.Now(), success: rs.Success}
	if !m.finished.CompareAndSwap(nil, c) {
		panic("jobmon: job finished twice")
	}
}
