package loop

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Loop whose clock only moves when told to. Callbacks run on the
// goroutine calling Advance or Flush, which makes timing tests exact.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	timers  []*manualTimer
	pending []func()
	posted  chan struct{}
}

// NewManual creates a Manual loop starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{
		now:    start,
		posted: make(chan struct{}, 1),
	}
}

// Now implements Loop.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Post implements Loop.
func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	m.pending = append(m.pending, fn)
	m.mu.Unlock()

	select {
	case m.posted <- struct{}{}:
	default:
	}
}

// AfterFunc implements Loop.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	mt := &manualTimer{m: m, when: m.now.Add(d), seq: m.seq, fn: fn}
	m.timers = append(m.timers, mt)
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].when.Equal(m.timers[j].when) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].when.Before(m.timers[j].when)
	})
	return mt
}

// Flush runs posted callbacks until the queue is empty.
func (m *Manual) Flush() {
	for {
		m.mu.Lock()
		batch := m.pending
		m.pending = nil
		m.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			fn()
		}
	}
}

// Advance moves the clock forward by d, firing every timer that comes due in
// deadline order. The clock reads each timer's deadline while it runs.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.Flush()

		m.mu.Lock()
		if len(m.timers) == 0 || m.timers[0].when.After(target) {
			m.now = target
			m.mu.Unlock()
			break
		}
		next := m.timers[0]
		m.timers = m.timers[1:]
		next.done = true
		m.now = next.when
		m.mu.Unlock()

		next.fn()
	}

	m.Flush()
}

// WaitPosted blocks until a callback is queued, typically from another
// goroutine, or timeout elapses, then flushes. It reports whether anything
// ran.
func (m *Manual) WaitPosted(timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		m.mu.Lock()
		ready := len(m.pending) > 0
		m.mu.Unlock()

		if ready {
			m.Flush()
			return true
		}

		select {
		case <-m.posted:
		case <-deadline.C:
			return false
		}
	}
}

// Pending returns the number of armed timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

type manualTimer struct {
	m    *Manual
	when time.Time
	seq  uint64
	fn   func()
	done bool
}

func (mt *manualTimer) Stop() bool {
	m := mt.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if mt.done {
		return false
	}
	mt.done = true
	for i, t := range m.timers {
		if t == mt {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			break
		}
	}
	return true
}
