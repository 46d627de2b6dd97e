// Package binance fetches spot klines from Binance.
package binance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/barfetch/cache"
	"github.com/rustyeddy/barfetch/fetcher"
	"github.com/rustyeddy/barfetch/market"
)

// Name is the provider name used in logs, the journal and the CLI.
const Name = "binance"

// Config holds the tunables of the Binance adapter.
type Config struct {
	BaseURL             string
	Timeout             time.Duration
	RequestsPerSecond   float64
	RateLimitWait       time.Duration
	MaxRateLimitRetries int
}

// DefaultConfig paces requests well under the public weight limits.
func DefaultConfig() Config {
	return Config{
		BaseURL:           BaseURL,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 10,
		RateLimitWait:     DefaultRateLimitWait,
	}
}

// Fetcher implements fetcher.Fetcher for Binance spot markets.
type Fetcher struct {
	client *Client
	store  *cache.Store
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	earliest map[string]time.Time
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

// New returns a Binance fetcher writing to store.
func New(cfg Config, store *cache.Store, opts ...Option) *Fetcher {
	f := &Fetcher{
		store:    store,
		logger:   slog.Default(),
		now:      time.Now,
		earliest: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.store == nil {
		f.store = cache.NewStore("")
	}
	f.logger = f.logger.With("provider", Name)
	f.client = NewClient(cfg, f.logger)
	return f
}

func (f *Fetcher) Name() string { return Name }

// GetData resolves the window, clamped to [first listed bar, today], and
// returns the cached entry or pages through /api/v3/klines.
func (f *Fetcher) GetData(ctx context.Context, req fetcher.Request) (*market.Series, error) {
	interval, err := Interval(req.Granularity)
	if err != nil {
		return nil, err
	}
	req.Symbol = Symbol(req.Symbol)
	id := SymbolID(req.Symbol)

	b := fetcher.Bounds{
		Earliest: func(ctx context.Context) (time.Time, error) { return f.Earliest(ctx, id) },
		Latest:   fetcher.Today(f.now()),
		Clamp:    true,
		HalfOpen: true,
	}
	w, err := b.Resolve(ctx, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", Name, req.Symbol, err)
	}

	key := fetcher.KeyFor(w, req)
	return fetcher.Cached(ctx, f.store, key, req, Name, f.logger, func(ctx context.Context) (*market.Series, error) {
		return f.fetchRange(ctx, id, interval, w)
	})
}

// fetchRange pages forward from w.Since. Each page starts at the open
// time of the previous page's last bar, so overlapping bars are skipped.
// An empty page advances one day. A page that does not move past since
// ends the loop.
func (f *Fetcher) fetchRange(ctx context.Context, id, interval string, w fetcher.Window) (*market.Series, error) {
	const day = int64(24 * time.Hour / time.Millisecond)

	since := w.Since.UnixMilli()
	until := w.Until.UnixMilli()
	s := &market.Series{}

	for since < until {
		page, err := f.client.Klines(ctx, id, interval, since, KlinesLimit)
		if err != nil {
			if s.Len() == 0 || ctx.Err() != nil {
				return nil, err
			}
			f.logger.Error("page failed, stopping", "symbol", id, "since", since, "error", err)
			s.Truncated = true
			break
		}
		if len(page) == 0 {
			since += day
			continue
		}

		for _, b := range page {
			if b.Millis() >= until {
				continue
			}
			if n := len(s.Bars); n > 0 && !b.Time.After(s.Bars[n-1].Time) {
				continue
			}
			s.Bars = append(s.Bars, b)
		}

		last := page[len(page)-1].Millis()
		if last <= since {
			break
		}
		since = last
	}

	return s, nil
}

// Earliest returns the open time of the first monthly kline of the
// exchange id, probing once per id for the life of the Fetcher.
func (f *Fetcher) Earliest(ctx context.Context, id string) (time.Time, error) {
	f.mu.Lock()
	t, ok := f.earliest[id]
	f.mu.Unlock()
	if ok {
		return t, nil
	}

	t, err := fetcher.FindEarliest(ctx, func(ctx context.Context, since time.Time) ([]market.Bar, error) {
		return f.client.Klines(ctx, id, string(market.Month), since.UnixMilli(), KlinesLimit)
	})
	if err != nil {
		return time.Time{}, err
	}

	f.mu.Lock()
	f.earliest[id] = t
	f.mu.Unlock()
	return t, nil
}

// GetMarkets maps "BASE/QUOTE" to market metadata.
func (f *Fetcher) GetMarkets(ctx context.Context) (map[string]fetcher.Market, error) {
	syms, err := f.client.ExchangeInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", Name, err)
	}
	out := make(map[string]fetcher.Market, len(syms))
	for _, si := range syms {
		sym := si.BaseAsset + "/" + si.QuoteAsset
		out[sym] = fetcher.Market{
			Symbol:   sym,
			ID:       si.Symbol,
			Base:     si.BaseAsset,
			Quote:    si.QuoteAsset,
			Exchange: Name,
			Class:    "crypto",
			Active:   si.Status == "TRADING",
		}
	}
	return out, nil
}

// GetTicker returns the sorted market symbols.
func (f *Fetcher) GetTicker(ctx context.Context) ([]string, error) {
	markets, err := f.GetMarkets(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(markets))
	for sym := range markets {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out, nil
}

func (f *Fetcher) TransformRawData(s market.Series) market.Series {
	return fetcher.TransformRawData(s)
}

var _ fetcher.Fetcher = (*Fetcher)(nil)
