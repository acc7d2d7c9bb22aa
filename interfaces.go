package chronicle

import "encoding/json"

// Layer is a renderable unit addressed by tag. The platform supplies the
// tag→layer mapping at construction; the controller never creates layers.
//
// Implementations serialize their own internal state. Reload and Adjust may
// be invoked from either the foreground control path or the background
// replay task, but never concurrently for the same mutation.
type Layer interface {
	// Reload replaces the layer's visible state with the given payload.
	Reload(payload json.RawMessage) error
	// Adjust applies an incremental adjustment to the layer.
	Adjust(payload json.RawMessage) error
	// State returns the layer's current state as a serializable payload,
	// used to capture recording baselines and snapshots.
	State() json.RawMessage
}
