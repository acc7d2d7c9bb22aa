package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenviz/chronicle/record"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// memLayer stores the last reload payload and appends adjust payloads,
// mimicking a renderable layer's visible state.
type memLayer struct {
	state   json.RawMessage
	adjusts []json.RawMessage
	fail    error
}

func (l *memLayer) Reload(payload json.RawMessage) error {
	if l.fail != nil {
		return l.fail
	}
	l.state = payload
	return nil
}

func (l *memLayer) Adjust(payload json.RawMessage) error {
	if l.fail != nil {
		return l.fail
	}
	l.adjusts = append(l.adjusts, payload)
	return nil
}

func (l *memLayer) State() json.RawMessage { return l.state }

// captureSink appends into a record, like the session manager does.
type captureSink struct {
	rec *record.Record
}

func (s *captureSink) Capture(u record.Unit, newStep bool) error {
	return s.rec.Append(u, newStep)
}

func newTestRouter() (*Router, *memLayer, *memLayer) {
	grid := &memLayer{state: json.RawMessage(`"g0"`)}
	heat := &memLayer{state: json.RawMessage(`"h0"`)}
	r := New(testLogger(), map[string]Layer{"grid": grid, "heat": heat})
	return r, grid, heat
}

func TestReload_UnknownTag(t *testing.T) {
	r, grid, _ := newTestRouter()

	err := r.Reload("ghost", json.RawMessage(`1`), true)
	require.ErrorIs(t, err, ErrUnknownLayer)
	assert.Equal(t, json.RawMessage(`"g0"`), grid.state, "no layer may be touched on resolution failure")
}

func TestReload_ForwardsToLayer(t *testing.T) {
	r, grid, _ := newTestRouter()

	require.NoError(t, r.Reload("grid", json.RawMessage(`"g1"`), true))
	assert.Equal(t, json.RawMessage(`"g1"`), grid.state)
}

func TestCapture_StepGrouping(t *testing.T) {
	r, _, _ := newTestRouter()
	rec := record.New()
	r.Attach(&captureSink{rec: rec})

	require.NoError(t, r.Reload("grid", json.RawMessage(`"g1"`), true))
	require.NoError(t, r.Reload("heat", json.RawMessage(`"h1"`), false))
	require.NoError(t, r.Adjust("grid", json.RawMessage(`"d1"`), true))

	require.Equal(t, 2, rec.StepCount())
	assert.Len(t, rec.Steps[0], 2)
	assert.Equal(t, record.KindAdjust, rec.Steps[1][0].Kind)
}

func TestCapture_JoinWithoutOpenStep(t *testing.T) {
	r, grid, _ := newTestRouter()
	r.Attach(&captureSink{rec: record.New()})

	err := r.Reload("grid", json.RawMessage(`"g1"`), false)
	require.ErrorIs(t, err, record.ErrNoOpenStep)
	// The layer mutation precedes the capture append; the two are not atomic.
	assert.Equal(t, json.RawMessage(`"g1"`), grid.state)
}

func TestDetach_StopsCapture(t *testing.T) {
	r, _, _ := newTestRouter()
	rec := record.New()
	r.Attach(&captureSink{rec: rec})
	require.NoError(t, r.Reload("grid", json.RawMessage(`"g1"`), true))

	r.Detach()
	require.NoError(t, r.Reload("grid", json.RawMessage(`"g2"`), true))
	assert.Equal(t, 1, rec.StepCount())
}

func TestApply_DispatchesByKind(t *testing.T) {
	r, grid, _ := newTestRouter()

	require.NoError(t, r.Apply(record.Unit{LayerTag: "grid", Kind: record.KindReload, Payload: json.RawMessage(`"r"`)}))
	require.NoError(t, r.Apply(record.Unit{LayerTag: "grid", Kind: record.KindAdjust, Payload: json.RawMessage(`"a"`)}))

	assert.Equal(t, json.RawMessage(`"r"`), grid.state)
	require.Len(t, grid.adjusts, 1)
}

func TestApply_UnknownKind(t *testing.T) {
	r, _, _ := newTestRouter()

	err := r.Apply(record.Unit{LayerTag: "grid", Kind: record.Kind("resize")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown record kind")
}

func TestApply_LayerFailurePropagates(t *testing.T) {
	boom := errors.New("render failure")
	grid := &memLayer{fail: boom}
	r := New(testLogger(), map[string]Layer{"grid": grid})

	err := r.Apply(record.Unit{LayerTag: "grid", Kind: record.KindReload})
	require.ErrorIs(t, err, boom)
}

func TestSnapshot_OneUnitPerLayerInTagOrder(t *testing.T) {
	r, _, _ := newTestRouter()

	units := r.Snapshot()
	require.Len(t, units, 2)
	assert.Equal(t, "grid", units[0].LayerTag)
	assert.Equal(t, "heat", units[1].LayerTag)
	for _, u := range units {
		assert.Equal(t, record.KindReload, u.Kind)
	}
}

// Replaying a captured sequence through a fresh router must land every layer
// in the same final state as the original direct application.
func TestRecordReplay_EquivalenceLaw(t *testing.T) {
	type mutation struct {
		tag     string
		kind    record.Kind
		payload string
		newStep bool
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	newPair := func() (*Router, map[string]*memLayer) {
		layers := map[string]*memLayer{
			"grid": {state: json.RawMessage(`"g0"`)},
			"heat": {state: json.RawMessage(`"h0"`)},
		}
		reg := make(map[string]Layer, len(layers))
		for tag, l := range layers {
			reg[tag] = l
		}
		return New(quiet, reg), layers
	}

	genMutation := gopter.CombineGens(
		gen.OneConstOf("grid", "heat"),
		gen.OneConstOf(record.KindReload, record.KindAdjust),
		gen.IntRange(0, 999),
		gen.Bool(),
	).Map(func(vals []interface{}) mutation {
		return mutation{
			tag:     vals[0].(string),
			kind:    vals[1].(record.Kind),
			payload: fmt.Sprintf(`{"v":%d}`, vals[2].(int)),
			newStep: vals[3].(bool),
		}
	})

	properties := gopter.NewProperties(nil)
	properties.Property("replay reproduces final layer states", prop.ForAll(
		func(muts []mutation) bool {
			live, liveLayers := newPair()
			rec := record.New()
			rec.Initial = live.Snapshot()
			live.Attach(&captureSink{rec: rec})

			for i, m := range muts {
				newStep := m.newStep || i == 0 // first mutation must open a step
				var err error
				if m.kind == record.KindReload {
					err = live.Reload(m.tag, json.RawMessage(m.payload), newStep)
				} else {
					err = live.Adjust(m.tag, json.RawMessage(m.payload), newStep)
				}
				if err != nil {
					return false
				}
			}

			player, playLayers := newPair()
			for _, u := range rec.Initial {
				if player.Apply(u) != nil {
					return false
				}
			}
			for _, step := range rec.Steps {
				for _, u := range step {
					if player.Apply(u) != nil {
						return false
					}
				}
			}

			for tag, l := range liveLayers {
				p := playLayers[tag]
				if string(l.state) != string(p.state) {
					return false
				}
				if len(l.adjusts) != len(p.adjusts) {
					return false
				}
				for i := range l.adjusts {
					if string(l.adjusts[i]) != string(p.adjusts[i]) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(8, genMutation),
	))
	properties.TestingRun(t)
}

// warnRecorder captures warn-level log messages so tests can assert on
// diagnostics that are deliberately not errors.
type warnRecorder struct {
	mu   sync.Mutex
	msgs []string
}

func (h *warnRecorder) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn
}

func (h *warnRecorder) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, r.Message)
	return nil
}

func (h *warnRecorder) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *warnRecorder) WithGroup(string) slog.Handler      { return h }

func (h *warnRecorder) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.msgs...)
}

func TestApply_AdjustEmitsWarningDiagnostic(t *testing.T) {
	rec := &warnRecorder{}
	grid := &memLayer{state: json.RawMessage(`"g0"`)}
	r := New(slog.New(rec), map[string]Layer{"grid": grid})

	require.NoError(t, r.Apply(record.Unit{LayerTag: "grid", Kind: record.KindReload, Payload: json.RawMessage(`"g1"`)}))
	assert.Empty(t, rec.messages(), "reload replay must not warn")

	require.NoError(t, r.Apply(record.Unit{LayerTag: "grid", Kind: record.KindAdjust, Payload: json.RawMessage(`{"d":1}`)}))
	msgs := rec.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "adjust")
}
