package cli

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
)

func newLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// jsonLayer is the in-memory layer used by the CLI commands. It stores the
// last reloaded document verbatim and folds adjust deltas on top of it.
type jsonLayer struct {
	mu    sync.Mutex
	state json.RawMessage
}

func newJSONLayer() *jsonLayer {
	return &jsonLayer{state: json.RawMessage(`{}`)}
}

func (l *jsonLayer) Reload(payload json.RawMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = append(json.RawMessage(nil), payload...)
	return nil
}

func (l *jsonLayer) Adjust(payload json.RawMessage) error {
	var base, delta map[string]any
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := json.Unmarshal(l.state, &base); err != nil {
		return err
	}
	if err := json.Unmarshal(payload, &delta); err != nil {
		return err
	}
	for k, v := range delta {
		base[k] = v
	}
	merged, err := json.Marshal(base)
	if err != nil {
		return err
	}
	l.state = merged
	return nil
}

func (l *jsonLayer) State() json.RawMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append(json.RawMessage(nil), l.state...)
}
