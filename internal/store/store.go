// Package store persists records as framed binary files in a configured
// directory and indexes saved files in an optional SQLite catalog.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lumenviz/chronicle/internal/telemetry"
	"github.com/lumenviz/chronicle/record"
)

// FileExt is the extension of persisted record files.
const FileExt = ".rcd"

// FileStore writes and reads record files under a single directory.
// File naming: YYMMDD-HHMMSS-<stepCount+1>.rcd.
type FileStore struct {
	dir     string
	logger  *slog.Logger
	catalog *Catalog // nil = catalog disabled
	tracer  trace.Tracer
}

// NewFileStore creates a store rooted at dir, creating the directory if
// absent. catalog may be nil.
func NewFileStore(logger *slog.Logger, dir string, catalog *Catalog) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: record directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("store: create record directory %s: %w", dir, err)
	}
	return &FileStore{
		dir:     dir,
		logger:  logger,
		catalog: catalog,
		tracer:  telemetry.Tracer("chronicle/store"),
	}, nil
}

// Dir returns the record directory.
func (s *FileStore) Dir() string { return s.dir }

// Save writes the record as a single framed blob and returns its path.
// The record must not be mutated after Save returns.
//
// A catalog insert failure does not fail the save: the file on disk is the
// source of truth and the catalog is an index over it.
func (s *FileStore) Save(r *record.Record) (string, error) {
	_, span := s.tracer.Start(context.Background(), "store.save", trace.WithAttributes(
		attribute.String("record.id", r.ID.String()),
		attribute.Int("record.steps", r.StepCount()),
	))
	defer span.End()

	data, err := Encode(r)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	name := fmt.Sprintf("%s-%d%s", time.Now().Format("060102-150405"), r.StepCount()+1, FileExt)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		err = fmt.Errorf("store: write %s: %w", path, err)
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.String("record.path", path))

	if s.catalog != nil {
		entry := Entry{ID: r.ID, Path: path, Steps: r.StepCount(), CreatedAt: r.CreatedAt}
		if err := s.catalog.Insert(entry); err != nil {
			s.logger.Warn("store: catalog insert failed", "path", path, "error", err)
		}
	}

	s.logger.Info("store: record saved", "path", path, "steps", r.StepCount())
	return path, nil
}

// Load reads a record file back into a record value. A damaged or
// schema-incompatible file is a fatal error; no partial record is returned.
func (s *FileStore) Load(path string) (*record.Record, error) {
	_, span := s.tracer.Start(context.Background(), "store.load", trace.WithAttributes(
		attribute.String("record.path", path),
	))
	defer span.End()

	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the operator
	if err != nil {
		err = fmt.Errorf("store: read %s: %w", path, err)
		span.RecordError(err)
		return nil, err
	}
	r, err := Decode(data)
	if err != nil {
		err = fmt.Errorf("store: load %s: %w", path, err)
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("record.steps", r.StepCount()))
	return r, nil
}

// Close releases the catalog handle, if any.
func (s *FileStore) Close() error {
	if s.catalog != nil {
		return s.catalog.Close()
	}
	return nil
}
