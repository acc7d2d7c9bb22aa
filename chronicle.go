// Package chronicle is the public API for the recording and replay subsystem
// of a layered visualization platform.
//
// All layer mutations route through a Controller:
//
//	ctrl, err := chronicle.New(layers,
//	    chronicle.WithLogger(logger),
//	    chronicle.WithRecordDir("records"),
//	)
//	if err != nil { ... }
//	defer ctrl.Close()
//
//	ctrl.StartRecord()
//	ctrl.Reload("grid", payload, true) // mutates the layer and captures a step
//	res, _ := ctrl.Terminate()          // persists the session, res.Path is the file
//
//	rec, _ := ctrl.LoadRecord(res.Path)
//	ctrl.StartReplay(ctx, rec)          // background task replays one step per cadence
//
// The import graph enforces a strict no-cycle rule: chronicle (root) imports
// internal/*, but internal/* never imports chronicle (root). The capture log
// model lives in the public record package so callers can inspect loaded
// records without touching internal packages.
package chronicle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lumenviz/chronicle/internal/config"
	"github.com/lumenviz/chronicle/internal/replay"
	"github.com/lumenviz/chronicle/internal/router"
	"github.com/lumenviz/chronicle/internal/session"
	"github.com/lumenviz/chronicle/internal/store"
	"github.com/lumenviz/chronicle/record"
)

// Controller intercepts every mutation applied to renderable layers,
// optionally captures mutations into a step-grouped log, persists and loads
// that log, and drives the asynchronous replay scheduler.
//
// The foreground control surface calls Controller methods synchronously;
// exactly one background task per active replay advances playback. Recording
// and replaying are mutually exclusive.
type Controller struct {
	logger  *slog.Logger
	router  *router.Router
	session *session.Manager
	sched   *replay.Scheduler
	store   *store.FileStore
	catalog *store.Catalog // nil when disabled

	mu        sync.Mutex
	suspended bool // explicit suspension toggle; replay implies suspension regardless
	blocked   bool // freezes the live-update producer, not the control surface
}

// New builds a controller over a fixed tag→layer registry. Configuration is
// read from the environment and then overridden by options. It does not start
// any goroutines; the replay loop is launched per StartReplay call.
func New(layers map[string]Layer, opts ...Option) (*Controller, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.recordDir != "" {
		cfg.RecordDir = o.recordDir
	}
	if o.cadence > 0 {
		cfg.Cadence = o.cadence
	}
	if o.catalogSet {
		cfg.CatalogPath = o.catalogPath
	}

	if len(layers) == 0 {
		return nil, fmt.Errorf("chronicle: at least one layer is required")
	}
	registry := make(map[string]router.Layer, len(layers))
	for tag, l := range layers {
		registry[tag] = l
	}

	var catalog *store.Catalog
	if cfg.CatalogPath != "" {
		catalog, err = store.OpenCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
	} else {
		logger.Info("catalog: disabled (no CHRONICLE_CATALOG_PATH)")
	}

	fileStore, err := store.NewFileStore(logger, cfg.RecordDir, catalog)
	if err != nil {
		if catalog != nil {
			_ = catalog.Close()
		}
		return nil, fmt.Errorf("store: %w", err)
	}

	rt := router.New(logger, registry)

	c := &Controller{
		logger:  logger,
		router:  rt,
		session: session.New(logger, rt, fileStore),
		sched:   replay.New(logger, rt, cfg.Cadence),
		store:   fileStore,
		catalog: catalog,
	}
	logger.Info("chronicle ready", "layers", len(layers), "record_dir", cfg.RecordDir, "cadence", cfg.Cadence)
	return c, nil
}

// Reload replaces the addressed layer's state. While a recording session is
// active the mutation is captured: newStep opens a new step, otherwise the
// unit joins the most recently opened one. External mutations are rejected
// while the controller is suspended or replaying.
func (c *Controller) Reload(tag string, payload json.RawMessage, newStep bool) error {
	if err := c.gate(); err != nil {
		return err
	}
	return c.router.Reload(tag, payload, newStep)
}

// Adjust applies an incremental adjustment to the addressed layer. Capture
// and suspension semantics match Reload.
func (c *Controller) Adjust(tag string, payload json.RawMessage, newStep bool) error {
	if err := c.gate(); err != nil {
		return err
	}
	return c.router.Adjust(tag, payload, newStep)
}

// gate enforces the suspension policy for external mutations: rejected while
// a replay owns the layers, and while explicitly suspended.
func (c *Controller) gate() error {
	if c.sched.Replaying() {
		return ErrReplayActive
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.suspended {
		return ErrSuspended
	}
	return nil
}

// StartRecord begins a capture session: the current state of every layer is
// snapshotted as the record's baseline and subsequent routed mutations are
// appended as steps. Calling it while already recording is a no-op.
func (c *Controller) StartRecord() error {
	if c.sched.Replaying() {
		return ErrReplayActive
	}
	c.session.Start()
	return nil
}

// Snapshot captures a one-shot record (baseline only, no steps) from every
// layer's current state and persists it immediately, independent of any
// active recording session. Returns the saved path.
func (c *Controller) Snapshot() (string, error) {
	return c.session.Snapshot()
}

// StartReplay applies the record's baseline to the layers and, if the record
// has steps, launches the background replay task. While the replay runs,
// external mutations are rejected. A record with no steps ends immediately
// after its baseline is applied.
func (c *Controller) StartReplay(ctx context.Context, rec *record.Record) error {
	if c.session.Recording() {
		return ErrRecordingActive
	}
	_, err := c.sched.Start(ctx, rec)
	return err
}

// LoadRecord reads a persisted record file. A corrupt or schema-incompatible
// file is a fatal error; no partial record is returned.
func (c *Controller) LoadRecord(path string) (*record.Record, error) {
	return c.store.Load(path)
}

// TogglePlaybackPause flips the replay pause flag and returns the new value.
// Only valid while replaying.
func (c *Controller) TogglePlaybackPause() (bool, error) {
	paused, err := c.sched.TogglePause()
	if errors.Is(err, replay.ErrNotReplaying) {
		return false, ErrNotReplaying
	}
	return paused, err
}

// ToggleSuspension flips the explicit suspension of external mutations and
// returns the new value. During replay suspension is implied by mode and the
// toggle is rejected.
func (c *Controller) ToggleSuspension() (bool, error) {
	if c.sched.Replaying() {
		return false, ErrReplayActive
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suspended = !c.suspended
	c.logger.Info("chronicle: suspension toggled", "suspended", c.suspended)
	return c.suspended, nil
}

// Suspended reports whether external mutations are currently rejected,
// either by the explicit toggle or because a replay owns the layers.
func (c *Controller) Suspended() bool {
	if c.sched.Replaying() {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspended
}

// FastForward advances replay by exactly one step. Only valid while the
// replay is paused; at the last step it is a no-op.
func (c *Controller) FastForward() error {
	return stepErr(c.sched.FastForward())
}

// BackForward rewinds replay by exactly one step and re-applies that step's
// recorded mutations (a re-render, not an inverse). Only valid while the
// replay is paused; at step zero it is a no-op.
func (c *Controller) BackForward() error {
	return stepErr(c.sched.BackForward())
}

// stepErr translates internal scheduler sentinels to public ones.
func stepErr(err error) error {
	if errors.Is(err, replay.ErrNotPaused) {
		return ErrNotPaused
	}
	return err
}

// Terminate stops the active operation by priority: an active replay is
// stopped first (recording untouched); otherwise an active recording is
// stopped and persisted. The result names which branch fired, so callers
// layering "terminate replay, then terminate recording" can track both.
func (c *Controller) Terminate() (TerminateResult, error) {
	if c.sched.Terminate() {
		return TerminateResult{Stopped: TerminatedReplay}, nil
	}
	if c.session.Recording() {
		path, err := c.session.Stop()
		if err != nil {
			return TerminateResult{}, err
		}
		return TerminateResult{Stopped: TerminatedRecording, Path: path}, nil
	}
	return TerminateResult{Stopped: TerminatedNone}, nil
}

// Mode returns the controller's current top-level state.
func (c *Controller) Mode() Mode {
	if c.sched.Replaying() {
		return ModeReplaying
	}
	if c.session.Recording() {
		return ModeRecording
	}
	return ModeIdle
}

// Progress returns the replay cursor and total step count of the most recent
// replay.
func (c *Controller) Progress() (index, total int) {
	return c.sched.Progress()
}

// ReplayErr returns the error that stopped the last replay, if any.
func (c *Controller) ReplayErr() error {
	return c.sched.Err()
}

// ToggleBlock flips the producer-block flag and returns the new value. The
// flag gates the live-update producer (which polls Blocked), not the control
// surface.
func (c *Controller) ToggleBlock() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocked = !c.blocked
	return c.blocked
}

// Blocked reports whether the live-update producer should hold updates.
func (c *Controller) Blocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocked
}

// ListRecords returns catalog entries for all persisted records, newest
// first. Fails when the catalog is disabled.
func (c *Controller) ListRecords(ctx context.Context) ([]RecordInfo, error) {
	if c.catalog == nil {
		return nil, fmt.Errorf("chronicle: catalog is disabled")
	}
	entries, err := c.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]RecordInfo, len(entries))
	for i, e := range entries {
		infos[i] = RecordInfo{ID: e.ID, Path: e.Path, Steps: e.Steps, CreatedAt: e.CreatedAt}
	}
	return infos, nil
}

// Close terminates any active replay, finalizes any active recording, and
// releases the store.
func (c *Controller) Close() error {
	if _, err := c.Terminate(); err != nil {
		c.logger.Warn("chronicle: terminate during close failed", "error", err)
	}
	if _, err := c.Terminate(); err != nil { // second pass catches a recording behind a replay
		c.logger.Warn("chronicle: terminate during close failed", "error", err)
	}
	return c.store.Close()
}
