package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/lumenviz/chronicle/internal/telemetry"
)

const catalogSchema = `
CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	path       TEXT NOT NULL,
	steps      INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_created_at ON records (created_at DESC);
`

// Entry is one catalog row describing a saved record file.
type Entry struct {
	ID        uuid.UUID
	Path      string
	Steps     int
	CreatedAt time.Time
}

// Catalog indexes saved record files in an embedded SQLite database so the
// control surface can list past captures without scanning the directory.
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens (or creates) the catalog database at path.
func OpenCatalog(path string) (*Catalog, error) {
	if path == "" {
		return nil, fmt.Errorf("store: catalog path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("store: create catalog dir: %w", err)
	}
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open catalog: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping catalog: %w", err)
	}
	if _, err := db.Exec(catalogSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create catalog schema: %w", err)
	}

	c := &Catalog{db: db}
	c.registerMetrics()
	return c, nil
}

// Insert adds one entry. Duplicate record IDs are rejected by the primary key.
func (c *Catalog) Insert(e Entry) error {
	_, err := c.db.Exec(
		`INSERT INTO records (id, path, steps, created_at) VALUES (?, ?, ?, ?)`,
		e.ID.String(), e.Path, e.Steps, e.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: insert catalog entry: %w", err)
	}
	return nil
}

// List returns all entries, newest first.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, path, steps, created_at FROM records ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list catalog: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var entries []Entry
	for rows.Next() {
		var (
			id     string
			e      Entry
			millis int64
		)
		if err := rows.Scan(&id, &e.Path, &e.Steps, &millis); err != nil {
			return nil, fmt.Errorf("store: scan catalog entry: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("store: catalog entry id: %w", err)
		}
		e.ID = parsed
		e.CreatedAt = time.UnixMilli(millis).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate catalog: %w", err)
	}
	return entries, nil
}

// Count returns the number of catalogued records.
func (c *Catalog) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count catalog: %w", err)
	}
	return n, nil
}

// Close closes the underlying database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// registerMetrics registers an observable OTEL gauge for catalog size.
func (c *Catalog) registerMetrics() {
	meter := telemetry.Meter("chronicle/catalog")

	_, _ = meter.Int64ObservableGauge("chronicle.catalog.records",
		metric.WithDescription("Number of record files indexed in the catalog"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			n, err := c.Count(ctx)
			if err != nil {
				return nil // gauge is best-effort
			}
			o.Observe(n)
			return nil
		}),
	)
}
