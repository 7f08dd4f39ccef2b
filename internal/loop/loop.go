// Package loop runs callbacks one at a time on a single goroutine.
//
// The player and the workout state machine never lock their own state.
// Instead every mutation is posted onto a Loop, and timers deliver their
// callbacks through the same queue, so two callbacks never interleave.
package loop

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Loop is a cooperative, single-threaded scheduler.
type Loop interface {
	// Now returns the loop's notion of the current time.
	Now() time.Time
	// Post queues fn to run on the loop. It never blocks and is safe to
	// call from any goroutine, including the loop itself.
	Post(fn func())
	// AfterFunc runs fn on the loop once d has elapsed. A stopped timer
	// never runs, even if its deadline already passed and the callback is
	// sitting in the queue.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancellable pending callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped the timer, false if it already ran or was stopped.
	Stop() bool
}

// Do posts fn onto l and waits for it to finish. It must not be called from
// the loop goroutine.
func Do(ctx context.Context, l Loop, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stops t if it is non-nil. It is a convenience for the common
// "cancel whatever is pending" pattern.
func Stop(t Timer) {
	if t != nil {
		t.Stop()
	}
}

// EventLoop is the real-time Loop implementation.
type EventLoop struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	log     *slog.Logger
}

// New creates an EventLoop. Nothing runs until Run is called.
func New(log *slog.Logger) *EventLoop {
	return &EventLoop{
		wake: make(chan struct{}, 1),
		log:  log,
	}
}

// Now implements Loop.
func (l *EventLoop) Now() time.Time {
	return time.Now()
}

// Post implements Loop. The queue is unbounded so a callback posting more
// work onto its own loop cannot deadlock.
func (l *EventLoop) Post(fn func()) {
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AfterFunc implements Loop.
func (l *EventLoop) AfterFunc(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	lt.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if lt.stopped.Load() {
				return
			}
			lt.fired.Store(true)
			fn()
		})
	})
	return lt
}

// Run executes posted callbacks until ctx is cancelled.
func (l *EventLoop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			batch := l.pending
			l.pending = nil
			l.mu.Unlock()

			if len(batch) == 0 {
				break
			}
			for _, fn := range batch {
				l.run(fn)
			}
		}
	}
}

func (l *EventLoop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("loop callback panicked", "panic", r)
		}
	}()
	fn()
}

type loopTimer struct {
	t       *time.Timer
	stopped atomic.Bool
	fired   atomic.Bool
}

func (lt *loopTimer) Stop() bool {
	if lt.stopped.Swap(true) {
		return false
	}
	lt.t.Stop()
	return !lt.fired.Load()
}
