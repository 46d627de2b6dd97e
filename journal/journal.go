// journal/journal.go
package journal

import (
	"fmt"
	"time"
)

// FetchRecord describes one GetData call.
type FetchRecord struct {
	ID          string
	RunID       string
	Provider    string
	Symbol      string
	Granularity string
	Since       time.Time
	Until       time.Time
	CacheHit    bool
	Bars        int
	Truncated   bool
	Error       string
	StartedAt   time.Time
	Duration    time.Duration
}

// OK reports whether the call produced a complete series.
func (r FetchRecord) OK() bool {
	return r.Error == "" && !r.Truncated
}

type Journal interface {
	RecordFetch(FetchRecord) error
	Close() error
}

// Nop discards records.
type Nop struct{}

func (Nop) RecordFetch(FetchRecord) error { return nil }
func (Nop) Close() error                  { return nil }

// Open returns the journal for kind ("sqlite", "csv", or "" / "none").
func Open(kind, path string) (Journal, error) {
	switch kind {
	case "", "none":
		return Nop{}, nil
	case "sqlite":
		return NewSQLite(path)
	case "csv":
		return NewCSV(path)
	default:
		return nil, fmt.Errorf("unknown journal type %q (use sqlite, csv or none)", kind)
	}
}
