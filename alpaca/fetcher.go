// Package alpaca fetches US equity bars through the Alpaca APIs.
package alpaca

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
const Name = "alpaca"

// Environment variables read when credentials are not configured.
const (
	EnvKeyID     = "ALPACA_API_KEY"
	EnvSecretKey = "ALPACA_SECRET_KEY"
)

// EarliestDate is the lower bound used for "earliest".
var EarliestDate = time.Date(1800, 1, 1, 0, 0, 0, 0, time.UTC)

// Config holds credentials and tunables of the Alpaca adapter.
type Config struct {
	KeyID      string
	SecretKey  string
	DataURL    string
	TradingURL string
	Feed       string // "iex" or "sip"; empty uses the account default

	Timeout             time.Duration
	RequestsPerSecond   float64
	RateLimitWait       time.Duration
	MaxRateLimitRetries int
}

// DefaultConfig stays under the free plan's 200 requests per minute.
func DefaultConfig() Config {
	return Config{
		DataURL:           DataURL,
		TradingURL:        TradingURL,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 3,
		RateLimitWait:     httpclient.DefaultRateLimitWait,
	}
}

var timeframes = map[market.Granularity]string{
	market.Minute: "1Min",
	market.Hour:   "1Hour",
	market.Day:    "1Day",
	market.Week:   "1Week",
	market.Month:  "1Month",
}

// Timeframe maps g to an Alpaca timeframe.
func Timeframe(g market.Granularity) (string, error) {
	tf, ok := timeframes[g]
	if !ok {
		return "", fmt.Errorf("%w: alpaca %q", market.ErrUnsupportedGranularity, g)
	}
	return tf, nil
}

// Fetcher implements fetcher.Fetcher for Alpaca.
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

// New returns an Alpaca fetcher. Missing credentials fall back to
// ALPACA_API_KEY and ALPACA_SECRET_KEY; if either is still empty New
// returns fetcher.ErrMissingCredentials.
func New(cfg Config, store *cache.Store, opts ...Option) (*Fetcher, error) {
	if cfg.KeyID == "" {
		cfg.KeyID = os.Getenv(EnvKeyID)
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = os.Getenv(EnvSecretKey)
	}
	if cfg.KeyID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%s: %w: set %s and %s", Name, fetcher.ErrMissingCredentials, EnvKeyID, EnvSecretKey)
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

// GetData fetches req in a single GetBars call. Explicit dates are used as
// given; "earliest" is 1800-01-01 and "latest" is yesterday.
func (f *Fetcher) GetData(ctx context.Context, req fetcher.Request) (*market.Series, error) {
	tf, err := Timeframe(req.Granularity)
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
		bars, err := f.client.GetBars(ctx, req.Symbol, BarsRequest{Timeframe: tf, Start: w.Since, End: w.Until})
		if err != nil && (len(bars) == 0 || ctx.Err() != nil) {
			return nil, err
		}
		s := &market.Series{Bars: normalize(bars)}
		if err != nil {
			f.logger.Error("page failed, stopping", "symbol", req.Symbol, "error", err)
			s.Truncated = true
		}
		return s, nil
	})
}

func normalize(bars []Bar) []market.Bar {
	out := make([]market.Bar, 0, len(bars))
	for _, b := range bars {
		out = append(out, market.Bar{
			Time:   b.Timestamp.UTC(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	return out
}

// GetMarkets maps asset symbols to market metadata.
func (f *Fetcher) GetMarkets(ctx context.Context) (map[string]fetcher.Market, error) {
	assets, err := f.client.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", Name, err)
	}
	out := make(map[string]fetcher.Market, len(assets))
	for _, a := range assets {
		out[a.Symbol] = fetcher.Market{
			Symbol:   a.Symbol,
			ID:       a.ID,
			Name:     a.Name,
			Exchange: a.Exchange,
			Class:    a.Class,
			Active:   a.Status == "active" && a.Tradable,
		}
	}
	return out, nil
}

// GetTicker returns the asset symbols in the order Alpaca lists them.
func (f *Fetcher) GetTicker(ctx context.Context) ([]string, error) {
	assets, err := f.client.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", Name, err)
	}
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		out = append(out, a.Symbol)
	}
	return out, nil
}

func (f *Fetcher) TransformRawData(s market.Series) market.Series {
	return fetcher.TransformRawData(s)
}

var _ fetcher.Fetcher = (*Fetcher)(nil)
