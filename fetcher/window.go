package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinels accepted by Request.Start and Request.End.
const (
	Earliest = "earliest"
	Latest   = "latest"
)

// ErrInvalidWindow is returned when a window resolves to since > until, or
// to an empty half-open window.
var ErrInvalidWindow = errors.New("invalid window")

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"20060102",
}

// ParseDate parses s in any accepted layout and returns midnight UTC of
// that calendar day, so every spelling of a day yields the same instant.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad date %q: want YYYY-MM-DD", s)
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Window bounds a fetch.
type Window struct {
	Since time.Time
	Until time.Time
}

func (w Window) String() string {
	return w.Since.Format("2006-01-02") + ".." + w.Until.Format("2006-01-02")
}

// Bounds describes how a provider resolves Start/End into a Window.
type Bounds struct {
	// Earliest yields the oldest usable boundary. It may call the provider.
	Earliest func(ctx context.Context) (time.Time, error)

	// Latest is the newest usable boundary.
	Latest time.Time

	// Clamp limits explicit dates to [Earliest, Latest]. Without it explicit
	// dates are used as given and Earliest is only consulted for the
	// sentinel.
	Clamp bool

	// HalfOpen marks providers that exclude Until, so since == until is an
	// empty window.
	HalfOpen bool
}

// Resolve turns start/end into a Window.
func (b Bounds) Resolve(ctx context.Context, start, end string) (Window, error) {
	var w Window

	start = strings.ToLower(strings.TrimSpace(start))
	end = strings.ToLower(strings.TrimSpace(end))

	needEarliest := start == "" || start == Earliest || b.Clamp
	var earliest time.Time
	if needEarliest {
		if b.Earliest == nil {
			return w, fmt.Errorf("resolve window: no earliest boundary")
		}
		var err error
		earliest, err = b.Earliest(ctx)
		if err != nil {
			return w, fmt.Errorf("resolve earliest: %w", err)
		}
	}

	if start == "" || start == Earliest {
		w.Since = earliest
	} else {
		t, err := ParseDate(start)
		if err != nil {
			return w, err
		}
		w.Since = t
		if b.Clamp && earliest.After(t) {
			w.Since = earliest
		}
	}

	if end == "" || end == Latest {
		w.Until = b.Latest
	} else {
		t, err := ParseDate(end)
		if err != nil {
			return w, err
		}
		w.Until = t
		if b.Clamp && t.After(b.Latest) {
			w.Until = b.Latest
		}
	}

	if w.Since.After(w.Until) {
		return w, fmt.Errorf("%w: %s is after %s", ErrInvalidWindow,
			w.Since.Format("2006-01-02"), w.Until.Format("2006-01-02"))
	}
	if b.HalfOpen && w.Since.Equal(w.Until) {
		return w, fmt.Errorf("%w: %s is empty", ErrInvalidWindow, w)
	}
	return w, nil
}

// Fixed returns an Earliest func that always yields t.
func Fixed(t time.Time) func(context.Context) (time.Time, error) {
	return func(context.Context) (time.Time, error) { return t, nil }
}

// Today is midnight UTC of now.
func Today(now time.Time) time.Time {
	return Day(now)
}

// Yesterday is midnight UTC of the day before now.
func Yesterday(now time.Time) time.Time {
	return Day(now).AddDate(0, 0, -1)
}
