// Package feed is a demo live-update producer: it pushes randomized payloads
// through the controller at a fixed cadence, standing in for a real data
// source driving the visualization layers.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Mutator is the slice of the controller the producer needs. Blocked lets
// the control surface freeze the feed without tearing it down.
type Mutator interface {
	Reload(tag string, payload json.RawMessage, newStep bool) error
	Adjust(tag string, payload json.RawMessage, newStep bool) error
	Blocked() bool
}

// Producer emits one update step per interval: a reload for every layer,
// grouped as a single step, plus an occasional adjust.
type Producer struct {
	m        Mutator
	tags     []string
	interval time.Duration
	logger   *slog.Logger
}

// New creates a producer for the given layer tags.
func New(logger *slog.Logger, m Mutator, tags []string, interval time.Duration) *Producer {
	return &Producer{m: m, tags: tags, interval: interval, logger: logger}
}

// Run emits updates until ctx is cancelled. Suspension rejections are
// expected while a replay owns the layers and are logged at debug only.
func (p *Producer) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var tick int
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("feed: stopped", "ticks", tick)
			return nil
		case <-ticker.C:
			if p.m.Blocked() {
				continue
			}
			tick++
			p.emit(tick)
		}
	}
}

func (p *Producer) emit(tick int) {
	for i, tag := range p.tags {
		payload, err := json.Marshal(map[string]any{
			"tick":   tick,
			"series": randomSeries(8),
		})
		if err != nil {
			p.logger.Warn("feed: marshal payload", "error", err)
			return
		}
		// The first layer opens the step; the rest join it, so one feed
		// tick replays as one simultaneous batch.
		if err := p.m.Reload(tag, payload, i == 0); err != nil {
			p.logger.Debug("feed: update rejected", "layer", tag, "error", err)
			return
		}
	}

	// Occasionally exercise the adjust path on a random layer.
	if tick%5 == 0 && len(p.tags) > 0 {
		tag := p.tags[rand.IntN(len(p.tags))]
		payload := json.RawMessage(fmt.Sprintf(`{"delta":%d}`, rand.IntN(10)-5))
		if err := p.m.Adjust(tag, payload, false); err != nil {
			p.logger.Debug("feed: adjust rejected", "layer", tag, "error", err)
		}
	}
}

func randomSeries(n int) []float64 {
	series := make([]float64, n)
	for i := range series {
		series[i] = rand.Float64() * 100
	}
	return series
}
