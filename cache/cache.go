// Package cache is a flat, keyed CSV file store for normalized series.
//
// An entry is addressed by the exact (since, until, symbol, granularity)
// tuple. There is no range matching and no invalidation: entries live until
// somebody deletes the file.
package cache

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/barfetch/market"
)

// DefaultDir is the relative directory used when no directory is configured.
const DefaultDir = "csvs"

// Header is the column layout of every cache file.
var Header = []string{"dt", "milliseconds", "open", "high", "low", "close", "volume", "log_return", "asset_return"}

// Key identifies one cache entry.
type Key struct {
	Since       time.Time
	Until       time.Time
	Symbol      string
	Granularity market.Granularity
}

// Filename renders the key as
// {since}_{until}_{symbol with "/" replaced by "-"}_{granularity}.csv.
func (k Key) Filename() string {
	return fmt.Sprintf("%s_%s_%s_%s.csv",
		k.Since.UTC().Format("2006-01-02"),
		k.Until.UTC().Format("2006-01-02"),
		strings.ReplaceAll(k.Symbol, "/", "-"),
		k.Granularity,
	)
}

// Store reads and writes cache entries under Dir.
type Store struct {
	Dir string
}

// NewStore returns a store rooted at dir, or DefaultDir when dir is empty.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{Dir: dir}
}

// Path is the file path for key.
func (s *Store) Path(key Key) string {
	return filepath.Join(s.Dir, key.Filename())
}

// Has reports whether an entry exists for key.
func (s *Store) Has(key Key) bool {
	st, err := os.Stat(s.Path(key))
	return err == nil && st.Mode().IsRegular()
}

// Load returns the series stored under key. A missing entry is not an
// error: Load returns (nil, nil).
func (s *Store) Load(key Key) (*market.Series, error) {
	f, err := os.Open(s.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open cache entry: %w", err)
	}
	defer f.Close()

	bars, err := ReadBars(f)
	if err != nil {
		return nil, fmt.Errorf("read cache entry %s: %w", key.Filename(), err)
	}

	return &market.Series{
		Symbol:      key.Symbol,
		Granularity: key.Granularity,
		Bars:        bars,
	}, nil
}

// Save writes series under key, replacing any existing entry. The file is
// written next to its destination and renamed into place.
func (s *Store) Save(series *market.Series, key Key) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, "."+key.Filename()+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := WriteBars(tmp, series.Bars); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename cache entry: %w", err)
	}
	return nil
}

// WriteBars writes the header and one row per bar.
func WriteBars(w io.Writer, bars []market.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, b := range bars {
		row := []string{
			b.DT(),
			strconv.FormatInt(b.Millis(), 10),
			f(b.Open),
			f(b.High),
			f(b.Low),
			f(b.Close),
			f(b.Volume),
			f(b.LogReturn),
			f(b.AssetReturn),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadBars parses rows written by WriteBars.
func ReadBars(r io.Reader) ([]market.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file")
		}
		return nil, err
	}
	if strings.Join(header, ",") != strings.Join(Header, ",") {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	bars := []market.Bar{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		ms, err := strconv.ParseInt(rec[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad milliseconds %q: %w", line, rec[1], err)
		}
		vals := make([]float64, 7)
		for i := range vals {
			v, err := strconv.ParseFloat(rec[i+2], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad %s %q: %w", line, Header[i+2], rec[i+2], err)
			}
			vals[i] = v
		}

		b := market.BarFromMillis(ms, vals[0], vals[1], vals[2], vals[3], vals[4])
		b.LogReturn = vals[5]
		b.AssetReturn = vals[6]
		bars = append(bars, b)
	}
	return bars, nil
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
