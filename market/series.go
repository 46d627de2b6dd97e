package market

import (
	"math"
	"time"
)

// Series is an ordered run of bars for one symbol over one window.
type Series struct {
	Symbol      string
	Granularity Granularity
	Source      string
	Bars        []Bar

	// Since and Until are the resolved window the series was requested for.
	Since time.Time
	Until time.Time

	// Cached is set when the series was served from the cache.
	Cached bool

	// Truncated is set when the fetch stopped early on an upstream error,
	// so Bars may cover less than the requested window.
	Truncated bool
}

// Len returns the number of bars.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// First returns the time of the first bar, or the zero time.
func (s *Series) First() time.Time {
	if s.Len() == 0 {
		return time.Time{}
	}
	return s.Bars[0].Time
}

// Last returns the time of the last bar, or the zero time.
func (s *Series) Last() time.Time {
	if s.Len() == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Time
}

// WithReturns returns a copy of s with log_return and asset_return filled in.
// The first bar has no predecessor, so it gets log_return 0 and
// asset_return 1. The input is left untouched.
func WithReturns(s Series) Series {
	out := s
	out.Bars = make([]Bar, len(s.Bars))
	copy(out.Bars, s.Bars)

	for i := range out.Bars {
		if i == 0 {
			out.Bars[i].LogReturn = 0
			out.Bars[i].AssetReturn = 1
			continue
		}
		prev := out.Bars[i-1].Close
		cur := out.Bars[i].Close
		out.Bars[i].AssetReturn = cur / prev
		out.Bars[i].LogReturn = math.Log(cur) - math.Log(prev)
	}
	return out
}

// CumulativeLogReturn sums the log_return column.
func (s *Series) CumulativeLogReturn() float64 {
	var sum float64
	for _, b := range s.Bars {
		sum += b.LogReturn
	}
	return sum
}
