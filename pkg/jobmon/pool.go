package jobmon

import "sync"

// Pool is a fixed-size worker pool Spawner with a bounded submission queue.
//
// When every worker is busy and the queue is full, or after Close, Spawn
// falls back to a dedicated goroutine instead of blocking or dropping the
// work: a started job always runs, and Spawn always returns immediately.
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool starts a pool with the given number of workers and queue
// capacity. Workers below one are raised to one; a negative queue capacity
// means an unbuffered queue.
func NewPool(workers, queue int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	p := &Pool{tasks: make(chan func(), queue)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for fn := range p.tasks {
		fn()
	}
}

// Spawn implements Spawner.
func (p *Pool) Spawn(fn func()) Handle {
	h := newDoneHandle()
	run := func() { h.run(fn) }

	p.mu.Lock()
	if !p.closed {
		select {
		case p.tasks <- run:
			p.mu.Unlock()
			return h
		default:
		}
	}
	p.mu.Unlock()

	// Queue full or pool closed: overflow to a dedicated goroutine.
	go run()
	return h
}

// Close stops accepting queued work and waits for the workers to drain.
// Spawning on a closed pool is still safe; the work just runs outside the
// pool.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.tasks)
	p.wg.Wait()
}
