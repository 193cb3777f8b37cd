package jobmon

import "context"

// Handle awaits the completion of one spawned unit of work.
//
// Await must be safe for any number of concurrent callers and must return
// promptly once the work has completed. It returns the caller's context
// error if the context ends first; any other error means the substrate
// abandoned the work, which the built-in spawners never do.
type Handle interface {
	Await(ctx context.Context) error
}

// Spawner starts a unit of work for concurrent execution and returns a
// Handle to await it. It is the seam between the job lifecycle logic and
// whatever concurrency substrate the host uses: the library ships a
// plain-goroutine spawner and a bounded worker Pool, and embedders can
// bring their own.
//
// Spawn must not wait for the work to run, let alone finish.
type Spawner interface {
	Spawn(fn func()) Handle
}

// Go returns the default Spawner, which runs each unit of work on its own
// goroutine.
func Go() Spawner { return goSpawner{} }

type goSpawner struct{}

func (goSpawner) Spawn(fn func()) Handle {
	h := newDoneHandle()
	go h.run(fn)
	return h
}

// doneHandle signals completion by closing a channel, which makes Await
// naturally multi-consumer: every waiter unblocks, whether it started
// waiting before or after the work finished.
type doneHandle struct {
	done chan struct{}
}

func newDoneHandle() *doneHandle {
	return &doneHandle{done: make(chan struct{})}
}

func (h *doneHandle) run(fn func()) {
	defer close(h.done)
	fn()
}

func (h *doneHandle) Await(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
