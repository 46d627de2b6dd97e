package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)

	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='fetches'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "fetches", name)
}

func TestSQLiteMissingPath(t *testing.T) {
	t.Parallel()

	_, err := NewSQLite("")
	require.Error(t, err)
}

func TestSQLiteRecordAndGetFetch(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	rec := sampleRecord("01HX0000000000000000000001")
	rec.CacheHit = true
	require.NoError(t, j.RecordFetch(rec))

	got, err := j.GetFetch(rec.ID)
	require.NoError(t, err)

	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.RunID, got.RunID)
	assert.Equal(t, rec.Provider, got.Provider)
	assert.Equal(t, rec.Symbol, got.Symbol)
	assert.Equal(t, rec.Granularity, got.Granularity)
	assert.True(t, rec.Since.Equal(got.Since))
	assert.True(t, rec.Until.Equal(got.Until))
	assert.True(t, got.CacheHit)
	assert.Equal(t, 48, got.Bars)
	assert.False(t, got.Truncated)
	assert.Equal(t, "", got.Error)
	assert.True(t, rec.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
}

func TestSQLiteGetFetchNotFound(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	_, err := j.GetFetch("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteListRunAndRecent(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	base := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	for i, id := range []string{"A", "B", "C"} {
		rec := sampleRecord(id)
		rec.StartedAt = base.Add(time.Duration(i) * time.Minute)
		if id == "C" {
			rec.RunID = "RUN2"
		}
		require.NoError(t, j.RecordFetch(rec))
	}

	run, err := j.ListRun("RUN1")
	require.NoError(t, err)
	require.Len(t, run, 2)
	assert.Equal(t, "A", run[0].ID)
	assert.Equal(t, "B", run[1].ID)

	recent, err := j.ListRecent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "C", recent[0].ID)
	assert.Equal(t, "B", recent[1].ID)

	between, err := j.ListStartedBetween(base, base.Add(90*time.Second))
	require.NoError(t, err)
	require.Len(t, between, 2)
}

func TestFormatRecords(t *testing.T) {
	t.Parallel()

	ok := sampleRecord("A")
	short := sampleRecord("B")
	short.Truncated = true
	failed := sampleRecord("C")
	failed.Error = "timeout"
	hit := sampleRecord("D")
	hit.CacheHit = true

	out := FormatRecords([]FetchRecord{ok, short, failed, hit})
	assert.Contains(t, out, "PROVIDER")
	assert.Contains(t, out, "2021-01-01..2021-01-03")
	assert.Contains(t, out, "short read")
	assert.Contains(t, out, "error: timeout")
	assert.Contains(t, out, "hit")
}
