package pool

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("pool closed")

// Pool executes tasks in the order they were added, using a fixed number of
// goroutines. If a task is added while workers are waiting for work, one of
// them is woken up to process it immediately.
type Pool struct {
	mu     sync.Mutex
	queue  []*task
	wait   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

type task struct {
	name string
	ctx  context.Context
	fn   func(context.Context)
}

func New(workers int) *Pool {
	pool := &Pool{}

	for range max(workers, 1) {
		pool.wg.Add(1)
		go pool.work()
	}

	return pool
}

// Add queues fn to run on a worker with ctx.
func (p *Pool) Add(ctx context.Context, name string, fn func(context.Context)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	p.queue = append(p.queue, &task{name: name, ctx: ctx, fn: fn})
	p.wake()
	return nil
}

// Close stops accepting tasks and waits for the queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.wake()
	p.mu.Unlock()

	p.wg.Wait()
}

// work is the main loop for each worker goroutine.
func (p *Pool) work() {
	defer p.wg.Done()

	for {
		t := p.dequeue()
		if t == nil {
			return
		}
		t.fn(t.ctx)
	}
}

// wake must be called within a p.mu lock.
func (p *Pool) wake() {
	if p.wait != nil {
		close(p.wait)
		p.wait = nil
	}
}

// dequeue blocks until a task is available. It returns nil once the pool is
// closed and drained.
func (p *Pool) dequeue() *task {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 {
		if p.closed {
			return nil
		}

		if p.wait == nil {
			p.wait = make(chan struct{})
		}
		wait := p.wait

		p.mu.Unlock()
		<-wait
		p.mu.Lock()
	}

	var t *task
	t, p.queue = p.queue[0], p.queue[1:]
	return t
}
