// Package polygon fetches US equity aggregates from Polygon.io.
package polygon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rustyeddy/barfetch/cache"
	"github.com/rustyeddy/barfetch/fetcher"
	"github.com/rustyeddy/barfetch/internal/httpclient"
	"github.com/rustyeddy/barfetch/market"
)

// Name is the provider name used in logs, the journal and the CLI.
const Name = "polygon"

// EnvAPIKey is read when no API key is configured.
const EnvAPIKey = "POLYGON_API_KEY"

// EarliestDate is the lower bound used for "earliest".
var EarliestDate = time.Date(1971, 1, 1, 0, 0, 0, 0, time.UTC)

// Config holds the API key and tunables of the Polygon adapter.
type Config struct {
	APIKey  string
	BaseURL string

	Timeout             time.Duration
	RequestsPerSecond   float64
	RateLimitWait       time.Duration
	MaxRateLimitRetries int
}

// DefaultConfig does not pace requests and waits a minute when Polygon
// reports the per-minute limit.
func DefaultConfig() Config {
	return Config{
		BaseURL:       BaseURL,
		Timeout:       30 * time.Second,
		RateLimitWait: httpclient.DefaultRateLimitWait,
	}
}

type span struct {
	multiplier int
	timespan   string
}

var spans = map[market.Granularity]span{
	market.Minute:         {1, "minute"},
	market.FiveMinutes:    {5, "minute"},
	market.FifteenMinutes: {15, "minute"},
	market.ThirtyMinutes:  {30, "minute"},
	market.Hour:           {1, "hour"},
	market.FourHours:      {4, "hour"},
	market.Day:            {1, "day"},
	market.Week:           {1, "week"},
	market.Month:          {1, "month"},
}

// Span maps g to Polygon's multiplier and timespan.
func Span(g market.Granularity) (int, string, error) {
	s, ok := spans[g]
	if !ok {
		return 0, "", fmt.Errorf("%w: polygon %q", market.ErrUnsupportedGranularity, g)
	}
	return s.multiplier, s.timespan, nil
}

// Fetcher implements fetcher.Fetcher for Polygon.
type Fetcher struct {
	client *Client
	store  *cache.Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithNow overrides the clock used to resolve "latest".
func WithNow(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// New returns a Polygon fetcher. A missing key falls back to
// POLYGON_API_KEY, then to fetcher.ErrMissingCredentials.
func New(cfg Config, store *cache.Store, opts ...Option) (*Fetcher, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(EnvAPIKey)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w: set %s", Name, fetcher.ErrMissingCredentials, EnvAPIKey)
	}

	f := &Fetcher{store: store, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	if f.store == nil {
		f.store = cache.NewStore("")
	}
	f.logger = f.logger.With("provider", Name)
	f.client = NewClient(cfg, f.logger)
	return f, nil
}

func (f *Fetcher) Name() string { return Name }

// GetData walks the aggregate cursor for the resolved window. Any failure
// other than a rate limit stops the walk; what was read so far is returned
// marked Truncated and is not cached.
func (f *Fetcher) GetData(ctx context.Context, req fetcher.Request) (*market.Series, error) {
	mult, timespan, err := Span(req.Granularity)
	if err != nil {
		return nil, err
	}

	b := fetcher.Bounds{
		Earliest: fetcher.Fixed(EarliestDate),
		Latest:   fetcher.Yesterday(f.now()),
	}
	w, err := b.Resolve(ctx, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", Name, req.Symbol, err)
	}

	key := fetcher.KeyFor(w, req)
	return fetcher.Cached(ctx, f.store, key, req, Name, f.logger, func(ctx context.Context) (*market.Series, error) {
		aggs, err := f.client.Aggs(ctx, req.Symbol, mult, timespan, w.Since, w.Until)
		s := &market.Series{Bars: normalize(aggs)}
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			f.logger.Error("aggs failed, stopping", "symbol", req.Symbol, "bars", s.Len(), "error", err)
			s.Truncated = true
		}
		return s, nil
	})
}

func normalize(aggs []Agg) []market.Bar {
	out := make([]market.Bar, 0, len(aggs))
	for _, a := range aggs {
		out = append(out, market.BarFromMillis(a.T, a.O, a.H, a.L, a.C, a.V))
	}
	return out
}

// GetMarkets maps tickers to market metadata. Like GetTicker it returns
// what it could read when a page fails.
func (f *Fetcher) GetMarkets(ctx context.Context) (map[string]fetcher.Market, error) {
	tickers := f.tickers(ctx)
	out := make(map[string]fetcher.Market, len(tickers))
	for _, t := range tickers {
		out[t.Ticker] = fetcher.Market{
			Symbol:   t.Ticker,
			ID:       t.CIK,
			Name:     t.Name,
			Quote:    t.CurrencyName,
			Exchange: t.PrimaryExchange,
			Class:    t.Type,
			Active:   t.Active,
		}
	}
	return out, nil
}

// GetTicker returns the active stock tickers. A failing page is logged
// and ends the walk without an error.
func (f *Fetcher) GetTicker(ctx context.Context) ([]string, error) {
	tickers := f.tickers(ctx)
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		out = append(out, t.Ticker)
	}
	return out, nil
}

func (f *Fetcher) tickers(ctx context.Context) []Ticker {
	tickers, err := f.client.Tickers(ctx)
	if err != nil {
		f.logger.Error("error fetching tickers", "read", len(tickers), "error", err)
	}
	return tickers
}

func (f *Fetcher) TransformRawData(s market.Series) market.Series {
	return fetcher.TransformRawData(s)
}

var _ fetcher.Fetcher = (*Fetcher)(nil)
