package fetcher

import (
	"context"
	"time"

	"github.com/rustyeddy/barfetch/market"
)

var (
	// ProbeEpoch is where the earliest-bar probe starts.
	ProbeEpoch = time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)

	// ProbeCeiling is returned when no bars are found before it.
	ProbeCeiling = time.Date(2050, 1, 1, 0, 0, 0, 0, time.UTC)
)

// ProbeStep is how far the probe advances after an empty answer.
const ProbeStep = 30 * 24 * time.Hour

// ProbeFunc asks the provider for coarse bars starting at since.
type ProbeFunc func(ctx context.Context, since time.Time) ([]market.Bar, error)

// FindEarliest walks forward from ProbeEpoch in ProbeStep increments until
// probe returns bars and reports the first bar's time. It returns
// ProbeCeiling if nothing turns up. A symbol that never traded costs one
// provider call per empty step.
func FindEarliest(ctx context.Context, probe ProbeFunc) (time.Time, error) {
	for since := ProbeEpoch; since.Before(ProbeCeiling); since = since.Add(ProbeStep) {
		if err := ctx.Err(); err != nil {
			return time.Time{}, err
		}
		bars, err := probe(ctx, since)
		if err != nil {
			return time.Time{}, err
		}
		if len(bars) > 0 {
			return bars[0].Time, nil
		}
	}
	return ProbeCeiling, nil
}
