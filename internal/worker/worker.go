// Package worker runs one analyzer as a poll-sleep-poll loop.
//
// Each Worker owns the sample log of its analyzer: it appends every sample,
// publishes the newest one through an atomic accessor, and hands the full
// log to a persistence sink after every poll. Stop is cooperative; it is
// observed at the top of each iteration and during the interval sleep, but
// never interrupts a poll in flight.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/sample"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/timeseries"
)

// StatusNoSample labels polls that produced no sample (manifest unavailable).
const StatusNoSample = "no_sample"

// PollFunc performs one analyzer poll. A non-nil error means the poll
// produced no sample this round.
type PollFunc[T any] func(ctx context.Context) (sample.Sample[T], error)

// SinkFunc persists the complete sample log. It is called after every
// appended sample.
type SinkFunc[T any] func(log []sample.Sample[T]) error

// Observer receives poll outcomes, typically for metrics.
type Observer interface {
	ObservePoll(analyzer, status string, elapsed time.Duration)
	ObservePersistError(analyzer string)
}

// Callbacks contains optional hooks for worker events.
type Callbacks[T any] struct {
	// OnStateChange is called when the worker state changes.
	OnStateChange func(name string, oldState, newState State)

	// OnSample is called after a sample has been appended and persisted.
	OnSample func(name string, s sample.Sample[T])
}

// Config holds configuration for a Worker.
type Config[T any] struct {
	Name       string
	Interval   time.Duration
	StartDelay time.Duration
	Poll       PollFunc[T]
	Sink       SinkFunc[T]

	// MaxLogEntries caps the in-memory (and therefore persisted) sample log.
	// Zero keeps every sample.
	MaxLogEntries int

	Logger    *slog.Logger
	Clock     timeseries.Clock
	Observer  Observer
	Callbacks Callbacks[T]
}

// Worker drives a PollFunc on a fixed interval.
type Worker[T any] struct {
	cfg    Config[T]
	logger *slog.Logger
	clock  timeseries.Clock

	log    *timeseries.History[sample.Sample[T]]
	latest atomic.Pointer[sample.Sample[T]]
	polls  atomic.Int64

	state   State
	stateMu sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a Worker. Interval must be positive.
func New[T any](cfg Config[T]) *Worker[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeseries.SystemClock{}
	}
	return &Worker[T]{
		cfg:    cfg,
		logger: logger.With("analyzer", cfg.Name),
		clock:  clock,
		log:    timeseries.NewHistory[sample.Sample[T]](cfg.MaxLogEntries),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run executes the loop until Stop is called or ctx is cancelled.
// ctx is passed to every poll; cancelling it aborts in-flight I/O.
func (w *Worker[T]) Run(ctx context.Context) {
	defer close(w.done)
	defer w.setState(StateStopped)

	w.logger.Debug("worker_starting",
		"interval", w.cfg.Interval.String(),
		"start_delay", w.cfg.StartDelay.String(),
	)

	if w.cfg.StartDelay > 0 {
		w.setState(StateWaiting)
		if !w.sleep(ctx, w.cfg.StartDelay) {
			return
		}
	}

	for {
		select {
		case <-w.stop:
			w.logger.Debug("worker_stopped", "reason", "stop_requested")
			return
		case <-ctx.Done():
			w.logger.Debug("worker_stopped", "reason", "context_cancelled")
			return
		default:
		}

		w.setState(StatePolling)
		w.pollOnce(ctx)

		w.setState(StateSleeping)
		if !w.sleep(ctx, w.cfg.Interval) {
			return
		}
	}
}

// sleep waits for d. It returns false if the worker should exit instead.
func (w *Worker[T]) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-w.stop:
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (w *Worker[T]) pollOnce(ctx context.Context) {
	start := w.clock.Now()
	s, err := w.safePoll(ctx)
	elapsed := w.clock.Now().Sub(start)
	w.polls.Add(1)

	if err != nil {
		w.logger.Warn("poll_no_sample", "error", err, "elapsed", elapsed.String())
		w.observePoll(StatusNoSample, elapsed)
		return
	}

	w.log.Append(s)
	w.latest.Store(&s)
	w.observePoll(string(s.Status), elapsed)

	if w.cfg.Sink != nil {
		if err := w.cfg.Sink(w.log.Snapshot()); err != nil {
			w.logger.Error("persist_failed", "error", err)
			if w.cfg.Observer != nil {
				w.cfg.Observer.ObservePersistError(w.cfg.Name)
			}
		}
	}

	level := slog.LevelInfo
	if !s.Status.IsSuccess() {
		level = slog.LevelWarn
	}
	w.logger.Log(ctx, level, "poll_complete",
		"status", string(s.Status),
		"elapsed", elapsed.String(),
		"samples", w.log.Len(),
		"error", s.Error,
	)

	if w.cfg.Callbacks.OnSample != nil {
		w.cfg.Callbacks.OnSample(w.cfg.Name, s)
	}
}

// safePoll invokes the poll function, converting a panic into an error sample.
func (w *Worker[T]) safePoll(ctx context.Context) (s sample.Sample[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("poll_panic", "panic", fmt.Sprint(r))
			s = sample.FailureWithStatus[T](w.clock.Now(), sample.StatusError, fmt.Errorf("panic: %v", r))
			err = nil
		}
	}()
	return w.cfg.Poll(ctx)
}

func (w *Worker[T]) observePoll(status string, elapsed time.Duration) {
	if w.cfg.Observer != nil {
		w.cfg.Observer.ObservePoll(w.cfg.Name, status, elapsed)
	}
}

// Stop asks the loop to exit. It is safe to call more than once.
func (w *Worker[T]) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Done is closed when Run has returned.
func (w *Worker[T]) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until Run returns or timeout elapses. It reports whether the
// loop exited in time.
func (w *Worker[T]) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.done:
		return true
	case <-timer.C:
		return false
	}
}

// Latest returns the newest sample, if any.
func (w *Worker[T]) Latest() (sample.Sample[T], bool) {
	p := w.latest.Load()
	if p == nil {
		return sample.Sample[T]{}, false
	}
	return *p, true
}

// Samples returns a copy of the sample log in insertion order.
func (w *Worker[T]) Samples() []sample.Sample[T] {
	return w.log.Snapshot()
}

// Count returns the number of retained samples.
func (w *Worker[T]) Count() int {
	return w.log.Len()
}

// Polls returns the number of completed polls, including those without a sample.
func (w *Worker[T]) Polls() int64 {
	return w.polls.Load()
}

// Name returns the worker name.
func (w *Worker[T]) Name() string {
	return w.cfg.Name
}

// State returns the current state of the worker.
func (w *Worker[T]) State() State {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return w.state
}

func (w *Worker[T]) setState(newState State) {
	w.stateMu.Lock()
	oldState := w.state
	w.state = newState
	w.stateMu.Unlock()

	if w.cfg.Callbacks.OnStateChange != nil && oldState != newState {
		w.cfg.Callbacks.OnStateChange(w.cfg.Name, oldState, newState)
	}
}
