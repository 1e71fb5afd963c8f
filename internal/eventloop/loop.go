// Package eventloop provides the single execution context that owns a conversation view.
//
// Work runs strictly one task at a time, in the order it was posted. Post appends to the tail
// of the queue, so a task posted from inside another task runs on the next idle cycle, after
// everything already waiting. Do runs a task and blocks the caller until it has finished.
package eventloop

import (
	"context"
	"errors"
	"log"
	"runtime/debug"
	"sync"
)

// ErrClosed is returned when work is offered to a loop that has been closed
var ErrClosed = errors.New("event loop closed")

// Loop is a FIFO task queue drained by one goroutine
type Loop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	closed  bool
	started bool
	done    chan struct{}
	logger  *log.Logger
}

// New creates a loop. Call Start (or Run on a goroutine of your own) before posting work.
func New(logger *log.Logger) *Loop {
	l := &Loop{
		done:   make(chan struct{}),
		logger: logger,
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Start runs the loop on a new goroutine
func (l *Loop) Start() {
	if l.claim() {
		go l.drain()
	}
}

// Run drains the queue on the calling goroutine until Close.
// It returns once every task queued before Close has run.
func (l *Loop) Run() {
	if l.claim() {
		l.drain()
	}
}

func (l *Loop) claim() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return false
	}
	l.started = true
	return true
}

func (l *Loop) drain() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.run(fn)
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil && l.logger != nil {
			l.logger.Printf("eventloop: task panicked: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}

// Post queues fn for the next idle cycle. It reports false when the loop is closed.
// Safe to call from any goroutine, including from inside a running task.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	return true
}

// Do runs fn on the loop and waits for it to finish. If ctx ends first Do returns ctx.Err(),
// but fn still runs when its turn comes. Do must not be called from inside a task.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// the loop exited; fn either ran or never will
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Pending returns the number of queued tasks
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Close stops accepting work, lets queued tasks finish and waits for the loop goroutine.
// Close is idempotent. Tasks posted by draining tasks are rejected.
func (l *Loop) Close() {
	l.mu.Lock()
	started := l.started
	if !l.closed {
		l.closed = true
		l.cond.Broadcast()
	}
	l.mu.Unlock()
	if started {
		<-l.done
	}
}
