package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := OpenCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCatalog_InsertAndList(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	older := Entry{ID: uuid.New(), Path: "records/a.rcd", Steps: 2, CreatedAt: time.Now().UTC().Add(-time.Hour)}
	newer := Entry{ID: uuid.New(), Path: "records/b.rcd", Steps: 5, CreatedAt: time.Now().UTC()}
	require.NoError(t, c.Insert(older))
	require.NoError(t, c.Insert(newer))

	entries, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, newer.ID, entries[0].ID, "newest first")
	assert.Equal(t, older.ID, entries[1].ID)
	assert.Equal(t, 5, entries[0].Steps)
	assert.WithinDuration(t, newer.CreatedAt, entries[0].CreatedAt, time.Millisecond)
}

func TestCatalog_DuplicateID(t *testing.T) {
	c := testCatalog(t)

	e := Entry{ID: uuid.New(), Path: "records/a.rcd", Steps: 1, CreatedAt: time.Now().UTC()}
	require.NoError(t, c.Insert(e))
	require.Error(t, c.Insert(e))
}

func TestCatalog_Count(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, c.Insert(Entry{ID: uuid.New(), Path: "records/a.rcd", Steps: 1, CreatedAt: time.Now().UTC()}))
	n, err = c.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSave_WritesCatalogEntry(t *testing.T) {
	dir := t.TempDir()
	c, err := OpenCatalog(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)

	s, err := NewFileStore(testLogger(), dir, c)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	r := testRecord(t)
	path, err := s.Save(r)
	require.NoError(t, err)

	entries, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, r.ID, entries[0].ID)
	assert.Equal(t, path, entries[0].Path)
	assert.Equal(t, 2, entries[0].Steps)
}
