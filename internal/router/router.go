// Package router is the single entry point through which all layer mutations
// pass. It resolves layer tags, forwards reload/adjust payloads to the
// addressed layer, and feeds an optional capture sink while a recording
// session is active.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/lumenviz/chronicle/record"
)

// ErrUnknownLayer is returned when a mutation addresses a tag with no
// registered layer. The layer set is fixed at construction, so this is a
// caller error (or a record captured against a different layer topology).
var ErrUnknownLayer = errors.New("router: unknown layer")

// Layer is a renderable unit addressed by tag. Implementations serialize
// their own internal state; the router imposes no locking on them.
type Layer interface {
	// Reload replaces the layer's state with the given payload.
	Reload(payload json.RawMessage) error
	// Adjust applies an incremental adjustment.
	Adjust(payload json.RawMessage) error
	// State returns the layer's current state as a serializable payload.
	State() json.RawMessage
}

// Sink receives captured units while a recording session is active.
type Sink interface {
	Capture(u record.Unit, newStep bool) error
}

// Router maps tags to layers and routes mutations to them.
type Router struct {
	layers map[string]Layer
	logger *slog.Logger

	mu   sync.Mutex
	sink Sink // nil = capture inert
}

// New creates a router over a fixed tag→layer registry.
func New(logger *slog.Logger, layers map[string]Layer) *Router {
	return &Router{layers: layers, logger: logger}
}

// Attach enables capture: every subsequent mutation is forwarded to s.
func (r *Router) Attach(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = s
}

// Detach disables capture.
func (r *Router) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = nil
}

// Reload replaces the addressed layer's state. When capture is active the
// mutation is appended to the log: newStep opens a fresh step, otherwise the
// unit joins the most recently opened one.
//
// Tag resolution happens before the layer is touched; an unknown tag leaves
// both the layer and the log unchanged.
func (r *Router) Reload(tag string, payload json.RawMessage, newStep bool) error {
	return r.route(record.Unit{LayerTag: tag, Kind: record.KindReload, Payload: payload}, newStep)
}

// Adjust applies an incremental adjustment to the addressed layer. Capture
// semantics match Reload.
func (r *Router) Adjust(tag string, payload json.RawMessage, newStep bool) error {
	return r.route(record.Unit{LayerTag: tag, Kind: record.KindAdjust, Payload: payload}, newStep)
}

func (r *Router) route(u record.Unit, newStep bool) error {
	layer, ok := r.layers[u.LayerTag]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLayer, u.LayerTag)
	}

	if err := r.dispatch(layer, u); err != nil {
		return err
	}

	r.mu.Lock()
	sink := r.sink
	r.mu.Unlock()
	if sink != nil {
		if err := sink.Capture(u, newStep); err != nil {
			return fmt.Errorf("router: capture %s on %q: %w", u.Kind, u.LayerTag, err)
		}
	}
	return nil
}

// Apply re-issues a previously recorded unit. Used by the replay scheduler;
// capture state is irrelevant here because recording and replaying are
// mutually exclusive. An adjust unit is applied but diagnosed with a warning,
// since adjust replay semantics are weaker than reload. A kind outside the
// closed enumeration means the record is corrupt.
func (r *Router) Apply(u record.Unit) error {
	layer, ok := r.layers[u.LayerTag]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLayer, u.LayerTag)
	}
	if u.Kind == record.KindAdjust {
		r.logger.Warn("router: replaying adjust unit; adjust replay is best-effort", "layer", u.LayerTag)
	}
	return r.dispatch(layer, u)
}

func (r *Router) dispatch(layer Layer, u record.Unit) error {
	switch u.Kind {
	case record.KindReload:
		if err := layer.Reload(u.Payload); err != nil {
			return fmt.Errorf("router: reload %q: %w", u.LayerTag, err)
		}
	case record.KindAdjust:
		if err := layer.Adjust(u.Payload); err != nil {
			return fmt.Errorf("router: adjust %q: %w", u.LayerTag, err)
		}
	default:
		return fmt.Errorf("router: internal: unknown record kind %q", u.Kind)
	}
	return nil
}

// Snapshot captures one reload unit per registered layer from its current
// state, in tag order. Used as the baseline of a recording session.
func (r *Router) Snapshot() []record.Unit {
	units := make([]record.Unit, 0, len(r.layers))
	for _, tag := range r.Tags() {
		units = append(units, record.Unit{
			LayerTag: tag,
			Kind:     record.KindReload,
			Payload:  r.layers[tag].State(),
		})
	}
	return units
}

// Tags returns the registered layer tags in sorted order.
func (r *Router) Tags() []string {
	tags := make([]string, 0, len(r.layers))
	for tag := range r.layers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
