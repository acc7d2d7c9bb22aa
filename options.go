package chronicle

import (
	"log/slog"
	"time"
)

// Option configures a Controller.
type Option func(*resolvedOptions)

// resolvedOptions holds all construction overrides after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	logger      *slog.Logger
	recordDir   string
	cadence     time.Duration
	catalogPath string
	catalogSet  bool
}

// WithLogger sets the structured logger for the controller.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithRecordDir overrides the record directory from config
// (CHRONICLE_RECORD_DIR env var).
func WithRecordDir(dir string) Option {
	return func(o *resolvedOptions) { o.recordDir = dir }
}

// WithCadence overrides the autoplay tick interval from config
// (CHRONICLE_REPLAY_CADENCE env var).
func WithCadence(d time.Duration) Option {
	return func(o *resolvedOptions) { o.cadence = d }
}

// WithCatalogPath overrides the SQLite catalog path from config
// (CHRONICLE_CATALOG_PATH env var). An empty path disables the catalog;
// records are still saved to disk, only the index is skipped.
func WithCatalogPath(path string) Option {
	return func(o *resolvedOptions) {
		o.catalogPath = path
		o.catalogSet = true
	}
}
