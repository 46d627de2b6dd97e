// journal/csv.go
package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

var csvHeader = []string{"id", "run_id", "provider", "symbol", "granularity", "since", "until", "cache_hit", "bars", "truncated", "error", "started_at", "duration_ms"}

// CSV appends fetch records to a single file. The header is written when
// the file is new or empty.
type CSV struct {
	w *csv.Writer
	f *os.File
}

func NewCSV(path string) (*CSV, error) {
	if path == "" {
		return nil, fmt.Errorf("journal: missing csv path")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &CSV{w: w, f: f}, nil
}

func (j *CSV) RecordFetch(r FetchRecord) error {
	err := j.w.Write([]string{
		r.ID,
		r.RunID,
		r.Provider,
		r.Symbol,
		r.Granularity,
		r.Since.UTC().Format(time.RFC3339),
		r.Until.UTC().Format(time.RFC3339),
		strconv.FormatBool(r.CacheHit),
		strconv.Itoa(r.Bars),
		strconv.FormatBool(r.Truncated),
		r.Error,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		strconv.FormatInt(r.Duration.Milliseconds(), 10),
	})
	if err != nil {
		return err
	}

	j.w.Flush()
	return j.w.Error()
}

func (j *CSV) Close() error {
	j.w.Flush()
	if err := j.w.Error(); err != nil {
		return err
	}
	return j.f.Close()
}
