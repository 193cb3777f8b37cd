package jobmon

import (
	"context"
	"time"
)

// Work is a job's body. It receives the job's Monitor for progress
// reporting and may return any value Classify understands; the return value
// decides whether the job succeeded and whether a final status message is
// published.
//
// A work function runs exactly once, for however long it needs. A panic is
// caught at the spawn boundary and recorded as a failed outcome with a
// fixed diagnostic; it never propagates out of Wait or crashes the process.
type Work func(mon *Monitor) any

// Job is a handle to one unit of background work plus its progress and
// outcome state.
//
// A Job couples a Monitor with the substrate Handle that Wait consumes. All
// queries go through the Monitor, so status and outcome stay readable no
// matter what the substrate handle looks like. Handles are cheap to share:
// every copy of the pointer refers to the same job, two handles are the
// same job exactly when the pointers are equal, and dropping handles never
// stops the work.
type Job struct {
	mon    *Monitor
	handle Handle
}

// Start creates and starts a job on the default goroutine spawner.
func Start(work Work) *Job {
	return StartOn(Go(), work)
}

// StartOn creates and starts a job on the given spawner.
//
// The monitor is allocated in the running state with the initial status
// message, the work function is handed that monitor (never the Job itself,
// which could be used to Wait on itself), and the wrapped work is spawned.
// StartOn returns as soon as the spawner accepts the work; it never waits
// for the work to finish.
func StartOn(spawner Spawner, work Work) *Job {
	j := &Job{mon: newMonitor()}
	j.handle = spawner.Spawn(func() {
		j.mon.setFinished(runWork(work, j.mon))
	})
	return j
}

// runWork invokes the work function and classifies whatever comes out of
// it, converting a panic into the abnormal-termination outcome.
func runWork(work Work, mon *Monitor) (rs ReturnStatus) {
	defer func() {
		if r := recover(); r != nil {
			rs = ReturnStatus{Success: false, Message: panicMessage}
		}
	}()
	return Classify(work(mon))
}

// Wait blocks the calling goroutine until the job finishes, then reports
// the outcome: nil for success, ErrJobFailed for failure. Called on an
// already-finished job it returns immediately. If ctx ends first, Wait
// returns ctx.Err() and the job keeps running.
//
// Any number of goroutines may Wait on the same job concurrently. If the
// substrate's await fails for a reason other than the caller's context,
// the error is published as a diagnostic status message and the completion
// record alone decides the outcome.
func (j *Job) Wait(ctx context.Context) error {
	if err := j.handle.Await(ctx); err != nil {
		if ctx.Err() != nil {
			return err
		}
		j.mon.Reportf("awaiting job handle: %v", err)
	}
	if j.mon.Succeeded() {
		return nil
	}
	return ErrJobFailed
}

// Monitor returns the job's monitor: the wait-free facet that can be handed
// to observers or stored on its own.
func (j *Job) Monitor() *Monitor { return j.mon }

// Status returns the latest reported status.
func (j *Job) Status() Status { return j.mon.Status() }

// Outcome reports whether the job succeeded; done is false while running.
func (j *Job) Outcome() (success, done bool) { return j.mon.Outcome() }

// IsFinished reports whether the job has finished.
func (j *Job) IsFinished() bool { return j.mon.IsFinished() }

// Succeeded reports whether the job finished successfully.
func (j *Job) Succeeded() bool { return j.mon.Succeeded() }

// StartedAt returns the time the job was started.
func (j *Job) StartedAt() time.Time { return j.mon.StartedAt() }

// FinishedAt returns the time the job finished, if it has.
func (j *Job) FinishedAt() (time.Time, bool) { return j.mon.FinishedAt() }

// Elapsed returns the wall-clock time the job has spent.
func (j *Job) Elapsed() time.Duration { return j.mon.Elapsed() }
