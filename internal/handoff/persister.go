// Package handoff moves fetched pages to a single persistence goroutine
// through a depth-1 queue, so that writing page k overlaps fetching page k+1.
package handoff

import (
	"context"
	"errors"
	"sync"

	"tweetharvest/pkg/logger"
)

// ErrClosed is returned by Submit after Close
var ErrClosed = errors.New("handoff: persister is closed")

// Persister owns the output side of a pipelined run. Items are written in
// submission order by exactly one goroutine. The queue holds no buffer: a
// Submit returns once the persister has taken the item, so the producer
// holds at most one item while the previous one is being written.
//
// Submit and Close belong to the producer and must not be called concurrently.
type Persister[T any] struct {
	write func(T) error

	items  chan T
	failed chan struct{}
	done   chan struct{}

	mu       sync.Mutex
	closed   bool
	started  bool
	err      error
	accepted int

	logger logger.Logger
}

// NewPersister creates a persister that calls write for every submitted item
func NewPersister[T any](write func(T) error, log logger.Logger) *Persister[T] {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Persister[T]{
		write:  write,
		items:  make(chan T),
		failed: make(chan struct{}),
		done:   make(chan struct{}),
		logger: log,
	}
}

// Start launches the persistence goroutine
func (p *Persister[T]) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	p.logger.Debug("persister started")
	go p.run()
}

func (p *Persister[T]) run() {
	defer close(p.done)

	written := 0
	for item := range p.items {
		// After a failure the remaining hand-offs are drained, not written
		if p.err != nil {
			continue
		}
		if err := p.write(item); err != nil {
			p.err = err
			close(p.failed)
			p.logger.WithError(err).ErrorWithFields("persister write failed", map[string]interface{}{
				"written": written,
			})
			continue
		}
		written++
	}

	p.logger.DebugWithFields("persister stopped", map[string]interface{}{
		"written": written,
	})
}

// Submit hands item to the persister, blocking while the previous item is
// still being written. It returns the write error once the persister has
// failed, and ctx.Err() if ctx ends first.
func (p *Persister[T]) Submit(ctx context.Context, item T) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}

	select {
	case <-p.failed:
		return p.err
	default:
	}

	select {
	case p.items <- item:
		p.mu.Lock()
		p.accepted++
		p.mu.Unlock()
		return nil
	case <-p.failed:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Accepted returns how many items the persister has taken
func (p *Persister[T]) Accepted() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accepted
}

// Close stops accepting items, waits for the in-flight write to finish and
// returns the first write error, if any. Close is safe to call more than once.
func (p *Persister[T]) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.items)
	}
	started := p.started
	p.mu.Unlock()

	if !started {
		return nil
	}
	<-p.done
	return p.err
}
