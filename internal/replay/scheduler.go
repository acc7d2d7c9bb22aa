// Package replay drives timed re-application of a loaded record: a
// background task walks the step log at a fixed cadence, re-issuing each
// step's mutations through the router, with pause, manual stepping, and
// cooperative termination.
package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/lumenviz/chronicle/internal/telemetry"
	"github.com/lumenviz/chronicle/record"
)

var (
	// ErrActive is returned by Start while a replay is already running.
	ErrActive = errors.New("replay: already replaying")
	// ErrNotReplaying is returned by controls that require an active replay.
	ErrNotReplaying = errors.New("replay: not replaying")
	// ErrNotPaused is returned by manual step controls outside of a paused replay.
	ErrNotPaused = errors.New("replay: not paused")
)

// Applier re-issues a recorded unit onto the live layers.
type Applier interface {
	Apply(u record.Unit) error
}

// Scheduler owns a loaded record for the duration of one replay.
//
// Exactly one background goroutine advances the cursor autonomously; the
// foreground step controls also move the cursor. Both serialize through one
// mutex that guards "read step at cursor, then apply" as a single critical
// section, so a concurrent Terminate can never swap the record mid-apply.
type Scheduler struct {
	applier Applier
	logger  *slog.Logger
	cadence time.Duration
	tracer  trace.Tracer

	mu        sync.Mutex
	rec       *record.Record // read-only while owned; nil when released
	cursor    int
	bound     int // cursor bounds are [0, bound)
	replaying bool
	paused    bool
	lastErr   error

	cancelLoop context.CancelFunc
	done       chan struct{}
}

// New creates a scheduler that applies one step per cadence tick.
func New(logger *slog.Logger, applier Applier, cadence time.Duration) *Scheduler {
	s := &Scheduler{
		applier: applier,
		logger:  logger,
		cadence: cadence,
		tracer:  telemetry.Tracer("chronicle/replay"),
	}
	s.registerMetrics()
	return s
}

// Start applies the record's baseline and, if the record has steps, launches
// the background autoplay loop. It returns false with a nil error when the
// record has no steps: the baseline was applied and replay ended immediately.
//
// ctx bounds the lifetime of the background task; Terminate cancels it
// explicitly.
func (s *Scheduler) Start(ctx context.Context, rec *record.Record) (bool, error) {
	s.mu.Lock()
	if s.replaying {
		s.mu.Unlock()
		return false, ErrActive
	}
	s.mu.Unlock()

	for _, u := range rec.Initial {
		if err := s.applier.Apply(u); err != nil {
			return false, fmt.Errorf("replay: apply baseline: %w", err)
		}
	}

	if rec.StepCount() == 0 {
		s.logger.Info("replay: record has no steps, baseline applied only", "record_id", rec.ID)
		return false, nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.rec = rec
	s.cursor = 0
	s.bound = rec.StepCount()
	s.replaying = true
	s.paused = false
	s.lastErr = nil
	s.cancelLoop = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Info("replay: started", "record_id", rec.ID, "steps", rec.StepCount(), "cadence", s.cadence)
	go s.loop(loopCtx, done)
	return true, nil
}

// loop is the periodic replay task. While paused it idle-waits at half the
// cadence without advancing; otherwise it applies the current step, advances
// the cursor (wrapping past the last index), and sleeps one cadence. A fatal
// apply error stops the replay and is surfaced via Err.
func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		s.mu.Lock()
		replaying, paused := s.replaying, s.paused
		s.mu.Unlock()

		if !replaying {
			return
		}
		if paused {
			if !sleepCtx(ctx, s.cadence/2) {
				return
			}
			continue
		}

		if err := s.applyCurrent(); err != nil {
			s.mu.Lock()
			s.lastErr = err
			s.replaying = false
			s.mu.Unlock()
			s.logger.Error("replay: apply failed, stopping", "error", err)
			return
		}
		s.advance()

		if !sleepCtx(ctx, s.cadence) {
			return
		}
	}
}

func (s *Scheduler) applyCurrent() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyCurrentLocked()
}

// applyCurrentLocked applies every unit of the step under the cursor, in
// recorded order. Out-of-bounds cursor is a no-op. Callers hold s.mu.
func (s *Scheduler) applyCurrentLocked() error {
	if s.rec == nil || s.cursor < 0 || s.cursor >= s.bound {
		return nil
	}
	step := s.rec.Steps[s.cursor]
	_, span := s.tracer.Start(context.Background(), "replay.apply_step", trace.WithAttributes(
		attribute.Int("replay.index", s.cursor),
		attribute.Int("replay.units", len(step)),
	))
	defer span.End()
	s.logger.Debug("replay: applying step", "index", s.cursor, "last", s.bound-1, "units", len(step))
	for _, u := range step {
		if err := s.applier.Apply(u); err != nil {
			err = fmt.Errorf("replay: step %d: %w", s.cursor, err)
			span.RecordError(err)
			return err
		}
	}
	return nil
}

func (s *Scheduler) advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.replaying {
		// Terminate won the lock between apply and advance and already
		// snapped the cursor to the last valid index; leave it there.
		return
	}
	s.cursor++
	if s.cursor >= s.bound {
		s.cursor = 0
	}
}

// FastForward advances the cursor by one and applies that step. Only valid
// while replaying and paused; a cursor already at the last index is a no-op.
func (s *Scheduler) FastForward() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.replaying || !s.paused {
		return ErrNotPaused
	}
	if s.cursor+1 >= s.bound {
		return nil
	}
	s.cursor++
	return s.applyCurrentLocked()
}

// BackForward moves the cursor back by one and applies that step. This
// re-applies the step's recorded mutations; it is a cursor reposition plus
// re-render, not an inverse of the forward step.
func (s *Scheduler) BackForward() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.replaying || !s.paused {
		return ErrNotPaused
	}
	if s.cursor-1 < 0 {
		return nil
	}
	s.cursor--
	return s.applyCurrentLocked()
}

// TogglePause flips the paused flag and returns the new value.
func (s *Scheduler) TogglePause() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.replaying {
		return false, ErrNotReplaying
	}
	s.paused = !s.paused
	s.logger.Info("replay: pause toggled", "paused", s.paused, "index", s.cursor)
	return s.paused, nil
}

// Terminate stops an active replay: it cancels the background task, waits
// for it to finish its in-flight tick, snaps the cursor to the last valid
// index, and releases the record. Returns false when no replay was active.
func (s *Scheduler) Terminate() bool {
	s.mu.Lock()
	if !s.replaying {
		s.mu.Unlock()
		return false
	}
	s.replaying = false
	s.paused = false
	if s.bound > 0 {
		s.cursor = s.bound - 1
	}
	cancel, done := s.cancelLoop, s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.rec = nil
	s.mu.Unlock()

	s.logger.Info("replay: terminated")
	return true
}

// Replaying reports whether the background task is active.
func (s *Scheduler) Replaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaying
}

// Paused reports whether autoplay is paused.
func (s *Scheduler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Progress returns the current cursor and the total step count of the most
// recent replay.
func (s *Scheduler) Progress() (index, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor, s.bound
}

// Err returns the error that stopped the last replay, if any.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// registerMetrics registers observable OTEL gauges for replay progress.
func (s *Scheduler) registerMetrics() {
	meter := telemetry.Meter("chronicle/replay")

	_, _ = meter.Int64ObservableGauge("chronicle.replay.cursor",
		metric.WithDescription("Current replay step index"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			index, _ := s.Progress()
			o.Observe(int64(index))
			return nil
		}),
	)

	_, _ = meter.Int64ObservableGauge("chronicle.replay.steps",
		metric.WithDescription("Total steps in the active record"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			_, total := s.Progress()
			o.Observe(int64(total))
			return nil
		}),
	)
}
