package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GetFetch returns a single fetch record by ID.
func (j *SQLite) GetFetch(id string) (FetchRecord, error) {
	row := j.db.QueryRow(selectFetch+` WHERE id = ?`, id)
	rec, err := scanFetch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FetchRecord{}, fmt.Errorf("fetch %q not found", id)
		}
		return FetchRecord{}, err
	}
	return rec, nil
}

// ListRun returns the records of one harvest run in the order they were made.
func (j *SQLite) ListRun(runID string) ([]FetchRecord, error) {
	return j.list(selectFetch+` WHERE run_id = ? ORDER BY started_at ASC, id ASC`, runID)
}

// ListRecent returns the newest limit records, newest first.
func (j *SQLite) ListRecent(limit int) ([]FetchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return j.list(selectFetch+` ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
}

// ListStartedBetween returns records whose started_at is within [start, end).
func (j *SQLite) ListStartedBetween(start, end time.Time) ([]FetchRecord, error) {
	return j.list(selectFetch+` WHERE started_at >= ? AND started_at < ? ORDER BY started_at ASC`, start.UTC(), end.UTC())
}

func (j *SQLite) list(query string, args ...any) ([]FetchRecord, error) {
	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FetchRecord
	for rows.Next() {
		rec, err := scanFetch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FormatRecords renders records as an aligned text table.
func FormatRecords(recs []FetchRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-26s  %-8s  %-12s  %-4s  %-23s  %-5s  %6s  %s\n",
		"ID", "PROVIDER", "SYMBOL", "GRAN", "WINDOW", "CACHE", "BARS", "STATUS")
	for _, r := range recs {
		status := "ok"
		switch {
		case r.Error != "":
			status = "error: " + r.Error
		case r.Truncated:
			status = "short read"
		}
		cacheCol := "miss"
		if r.CacheHit {
			cacheCol = "hit"
		}
		fmt.Fprintf(&b, "%-26s  %-8s  %-12s  %-4s  %-23s  %-5s  %6d  %s\n",
			r.ID, r.Provider, r.Symbol, r.Granularity,
			r.Since.Format("2006-01-02")+".."+r.Until.Format("2006-01-02"),
			cacheCol, r.Bars, status)
	}
	return b.String()
}
