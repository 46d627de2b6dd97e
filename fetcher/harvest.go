package fetcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/rustyeddy/barfetch/internal/id"
	"github.com/rustyeddy/barfetch/journal"
	"github.com/rustyeddy/barfetch/market"
)

// HarvestOptions configures Harvest.
type HarvestOptions struct {
	Start       string
	End         string
	Granularity market.Granularity
	Refresh     bool

	// Every keeps one symbol out of every N (1 or less keeps all).
	Every int

	Journal journal.Journal
	Logger  *slog.Logger

	// Now is used for journal timestamps. Defaults to time.Now.
	Now func() time.Time
}

// HarvestResult is the outcome for one symbol.
type HarvestResult struct {
	Symbol string
	Series *market.Series
	Err    error
}

// Harvest calls GetData for each selected symbol in order. A failing symbol
// is logged and recorded, and the loop moves on. Harvest only stops early
// when ctx is done.
func Harvest(ctx context.Context, f Fetcher, symbols []string, opts HarvestOptions) (runID string, results []HarvestResult) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	j := opts.Journal
	if j == nil {
		j = journal.Nop{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	runID = id.New()
	logger = logger.With("provider", f.Name(), "run_id", runID)

	selected := Sample(symbols, opts.Every)
	logger.Info("harvest starting", "symbols", len(selected), "of", len(symbols))

	for _, sym := range selected {
		if ctx.Err() != nil {
			logger.Warn("harvest cancelled", "error", ctx.Err())
			break
		}

		started := now()
		s, err := f.GetData(ctx, Request{
			Start:       opts.Start,
			End:         opts.End,
			Symbol:      sym,
			Granularity: opts.Granularity,
			Refresh:     opts.Refresh,
		})

		rec := journal.FetchRecord{
			ID:          id.New(),
			RunID:       runID,
			Provider:    f.Name(),
			Symbol:      sym,
			Granularity: string(opts.Granularity),
			StartedAt:   started,
			Duration:    now().Sub(started),
		}
		if err != nil {
			rec.Error = err.Error()
			logger.Error("fetch failed", "symbol", sym, "error", err)
		} else {
			rec.Since = s.Since
			rec.Until = s.Until
			rec.CacheHit = s.Cached
			rec.Bars = s.Len()
			rec.Truncated = s.Truncated
			logger.Info("fetched", "symbol", sym, "bars", s.Len(), "cached", s.Cached, "truncated", s.Truncated)
		}
		if jerr := j.RecordFetch(rec); jerr != nil {
			logger.Warn("journal write failed", "symbol", sym, "error", jerr)
		}

		results = append(results, HarvestResult{Symbol: sym, Series: s, Err: err})
	}

	return runID, results
}

// Sample keeps symbols[0], symbols[every], symbols[2*every], ...
func Sample(symbols []string, every int) []string {
	if every <= 1 {
		return symbols
	}
	out := make([]string, 0, len(symbols)/every+1)
	for i := 0; i < len(symbols); i += every {
		out = append(out, symbols[i])
	}
	return out
}
