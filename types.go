package chronicle

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Mode is the controller's top-level state. Recording and replaying are
// mutually exclusive by construction.
type Mode string

const (
	ModeIdle      Mode = "idle"
	ModeRecording Mode = "recording"
	ModeReplaying Mode = "replaying"
)

// Terminated names which branch a Terminate call fired.
type Terminated string

const (
	// TerminatedNone means neither a replay nor a recording was active.
	TerminatedNone Terminated = "none"
	// TerminatedReplay means an active replay was stopped. Any in-progress
	// recording is untouched; call Terminate again to stop it.
	TerminatedReplay Terminated = "replay"
	// TerminatedRecording means an active recording was stopped and persisted.
	TerminatedRecording Terminated = "recording"
)

// TerminateResult reports the outcome of a Terminate call.
type TerminateResult struct {
	Stopped Terminated
	// Path is the saved record file, set when Stopped == TerminatedRecording.
	Path string
}

// RecordInfo describes one persisted record file, as listed by the catalog.
type RecordInfo struct {
	ID        uuid.UUID
	Path      string
	Steps     int
	CreatedAt time.Time
}

var (
	// ErrSuspended is returned for external mutations while the controller
	// is suspended (explicitly, or implicitly during replay).
	ErrSuspended = errors.New("chronicle: updates suspended")
	// ErrRecordingActive is returned by StartReplay while a recording
	// session is in progress.
	ErrRecordingActive = errors.New("chronicle: recording in progress")
	// ErrReplayActive is returned by operations that are invalid while a
	// replay is running.
	ErrReplayActive = errors.New("chronicle: replay in progress")
	// ErrNotReplaying is returned by playback controls when no replay is
	// running.
	ErrNotReplaying = errors.New("chronicle: not replaying")
	// ErrNotPaused is returned by the manual step controls outside of a
	// paused replay.
	ErrNotPaused = errors.New("chronicle: replay not paused")
)
