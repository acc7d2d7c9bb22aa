// Package session manages the recording capture lifecycle: starting a
// session (baseline snapshot), accumulating routed mutations into the active
// record, and finalizing the record to the store.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lumenviz/chronicle/internal/router"
	"github.com/lumenviz/chronicle/record"
)

// ErrNotRecording is returned by Stop when no session is active.
var ErrNotRecording = errors.New("session: not recording")

// Store persists finalized records.
type Store interface {
	Save(r *record.Record) (string, error)
}

// Manager owns the active recording session. It implements router.Sink so
// that attaching it to the router makes every routed mutation part of the
// session's step log.
//
// The foreground control path is the single writer: Start/Stop/Capture are
// serialized by one mutex, and the active record is never shared outward
// until Stop finalizes it.
type Manager struct {
	router *router.Router
	store  Store
	logger *slog.Logger

	mu     sync.Mutex
	active *record.Record // nil = not recording
}

// New creates a session manager over the given router and store.
func New(logger *slog.Logger, rt *router.Router, store Store) *Manager {
	return &Manager{router: rt, store: store, logger: logger}
}

// Recording reports whether a capture session is active.
func (m *Manager) Recording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

// Start begins a capture session: it snapshots the current state of every
// layer into the record's baseline and attaches the manager to the router.
// Calling Start while already recording is a no-op; the in-progress session
// keeps its baseline and steps.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return
	}

	r := record.New()
	r.Initial = m.router.Snapshot()
	m.active = r
	m.router.Attach(m)
	m.logger.Info("session: recording started", "record_id", r.ID, "layers", len(r.Initial))
}

// Capture appends one routed mutation to the active session's step log.
// Implements router.Sink. A capture arriving with no active session is a
// stale sink call and is ignored.
func (m *Manager) Capture(u record.Unit, newStep bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	return m.active.Append(u, newStep)
}

// Stop finalizes the session: detaches capture, persists the record, and
// returns the saved path. The record is immutable from this point on.
func (m *Manager) Stop() (string, error) {
	m.mu.Lock()
	r := m.active
	m.active = nil
	m.mu.Unlock()

	if r == nil {
		return "", ErrNotRecording
	}
	m.router.Detach()

	path, err := m.store.Save(r)
	if err != nil {
		return "", fmt.Errorf("session: finalize recording: %w", err)
	}
	m.logger.Info("session: recording terminated", "record_id", r.ID, "steps", r.StepCount(), "path", path)
	return path, nil
}

// Snapshot captures a degenerate one-shot record (baseline only, no steps)
// from every layer's current state and persists it immediately. It is
// independent of any active recording session.
func (m *Manager) Snapshot() (string, error) {
	r := record.New()
	r.Initial = m.router.Snapshot()

	path, err := m.store.Save(r)
	if err != nil {
		return "", fmt.Errorf("session: snapshot: %w", err)
	}
	m.logger.Info("session: snapshot saved", "record_id", r.ID, "path", path)
	return path, nil
}
