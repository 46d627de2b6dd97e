package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("journal: missing sqlite path")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordFetch(r FetchRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO fetches
		(id, run_id, provider, symbol, granularity, since, until, cache_hit, bars, truncated, error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RunID, r.Provider, r.Symbol, r.Granularity,
		r.Since.UTC(), r.Until.UTC(), r.CacheHit, r.Bars, r.Truncated, r.Error,
		r.StartedAt.UTC(), r.Duration.Milliseconds(),
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

const selectFetch = `
	SELECT id, run_id, provider, symbol, granularity, since, until, cache_hit, bars, truncated, error, started_at, duration_ms
	FROM fetches`

type scanner interface {
	Scan(dest ...any) error
}

func scanFetch(s scanner) (FetchRecord, error) {
	var (
		rec FetchRecord
		ms  int64
	)
	err := s.Scan(
		&rec.ID,
		&rec.RunID,
		&rec.Provider,
		&rec.Symbol,
		&rec.Granularity,
		&rec.Since,
		&rec.Until,
		&rec.CacheHit,
		&rec.Bars,
		&rec.Truncated,
		&rec.Error,
		&rec.StartedAt,
		&ms,
	)
	rec.Duration = time.Duration(ms) * time.Millisecond
	return rec, err
}
