// Package record defines the capture log model: a baseline snapshot of every
// layer plus an ordered list of steps, where each step groups the mutations
// applied in reaction to one external event.
//
// The model is pure data. Capture appends go through Append; once a record has
// been persisted or handed to the replay scheduler it must be treated as
// read-only.
package record

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the mutation carried by a Unit. The enumeration is closed:
// decoding any other value is a schema error.
type Kind string

const (
	// KindReload replaces a layer's state wholesale.
	KindReload Kind = "reload"
	// KindAdjust applies an incremental adjustment to a layer.
	// Replaying an adjust is supported but diagnosed with a warning,
	// since adjust semantics are layer-defined and weaker than reload.
	KindAdjust Kind = "adjust"
)

// Valid reports whether k is a member of the closed enumeration.
func (k Kind) Valid() bool {
	return k == KindReload || k == KindAdjust
}

// ErrNoOpenStep is returned by Append when a unit joins the current step but
// no step has been opened in this session yet.
var ErrNoOpenStep = errors.New("record: no open step")

// Unit is one atomic layer mutation. Immutable once created.
//
// Payload is an opaque JSON document meaningful only to the addressed layer.
// Keeping it serialized (rather than an untyped interface value) lets the
// store validate the blob on load instead of failing at apply time.
type Unit struct {
	LayerTag string          `json:"layer_tag"`
	Kind     Kind            `json:"kind"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Record is one captured session.
//
// Initial holds one reload unit per layer, captured at session start; it is
// applied once before step playback begins and carries no ordering guarantee.
// Steps is the ordered, index-addressable step log.
type Record struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Initial   []Unit    `json:"initial"`
	Steps     [][]Unit  `json:"steps"`
}

// New creates an empty record with a fresh identity.
func New() *Record {
	return &Record{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
	}
}

// Append adds a unit to the step log. When newStep is true a fresh step is
// opened for it; steps are therefore non-empty by construction. When newStep
// is false the unit joins the most recently opened step, and ErrNoOpenStep is
// returned if there is none.
func (r *Record) Append(u Unit, newStep bool) error {
	if newStep {
		r.Steps = append(r.Steps, []Unit{u})
		return nil
	}
	if len(r.Steps) == 0 {
		return ErrNoOpenStep
	}
	last := len(r.Steps) - 1
	r.Steps[last] = append(r.Steps[last], u)
	return nil
}

// StepCount returns the number of recorded steps.
func (r *Record) StepCount() int {
	return len(r.Steps)
}
