// Package progress delivers workout progress reports to the backend without
// ever holding up playback.
package progress

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/claude/fitcourse/internal/models"
)

// Sender delivers one report. *apiclient.Client implements it.
type Sender interface {
	SendProgress(ctx context.Context, report models.ProgressReport) error
}

// Stats counts dispatcher activity.
type Stats struct {
	Queued   int   `json:"queued"`
	Attempts int64 `json:"attempts"`
	Failures int64 `json:"failures"`
	Dropped  int64 `json:"dropped"`
}

// Dispatcher sends reports in FIFO order on a background goroutine. Failures
// are logged and swallowed.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	log     *slog.Logger

	mu      sync.Mutex
	queue   []models.ProgressReport
	busy    bool
	closed  bool
	wake    chan struct{}
	idle    chan struct{}
	stopped chan struct{}

	attempts atomic.Int64
	failures atomic.Int64
	dropped  atomic.Int64
}

// NewDispatcher starts a dispatcher. Each send is bounded by timeout.
func NewDispatcher(sender Sender, timeout time.Duration, log *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	d := &Dispatcher{
		sender:  sender,
		timeout: timeout,
		log:     log,
		wake:    make(chan struct{}, 1),
		idle:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	close(d.idle)
	go d.run()
	return d
}

// Send queues report and returns immediately.
func (d *Dispatcher) Send(report models.ProgressReport) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.dropped.Add(1)
		d.log.Warn("progress report dropped after close",
			"status", report.Status,
			"exercise_id", report.ExerciseID,
		)
		return
	}
	if len(d.queue) == 0 && !d.busy {
		d.idle = make(chan struct{})
	}
	d.queue = append(d.queue, report)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Flush waits until every queued report has been attempted.
func (d *Dispatcher) Flush(ctx context.Context) error {
	d.mu.Lock()
	idle := d.idle
	d.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting reports, drains the queue and waits for the
// goroutine to exit or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		select {
		case d.wake <- struct{}{}:
		default:
		}
	}
	d.mu.Unlock()

	select {
	case <-d.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	queued := len(d.queue)
	d.mu.Unlock()

	return Stats{
		Queued:   queued,
		Attempts: d.attempts.Load(),
		Failures: d.failures.Load(),
		Dropped:  d.dropped.Load(),
	}
}

func (d *Dispatcher) run() {
	defer close(d.stopped)

	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.busy = false
			closed := d.closed
			select {
			case <-d.idle:
			default:
				close(d.idle)
			}
			d.mu.Unlock()

			if closed {
				return
			}
			<-d.wake
			continue
		}
		report := d.queue[0]
		d.queue = d.queue[1:]
		d.busy = true
		d.mu.Unlock()

		d.deliver(report)
	}
}

func (d *Dispatcher) deliver(report models.ProgressReport) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	d.attempts.Add(1)
	if err := d.sender.SendProgress(ctx, report); err != nil {
		d.failures.Add(1)
		d.log.Error("failed to send progress report",
			"error", err,
			"workout_session_id", report.WorkoutSessionID,
			"exercise_id", report.ExerciseID,
			"status", report.Status,
		)
		return
	}
	d.log.Debug("progress report sent",
		"workout_session_id", report.WorkoutSessionID,
		"exercise_id", report.ExerciseID,
		"status", report.Status,
	)
}
