// Package fetcher defines the contract every price-bar provider implements
// and the helpers they share: window resolution, earliest-bar probing, the
// cache-then-fetch sequence, and the multi-symbol harvest loop.
package fetcher

import (
	"context"
	"errors"

	"github.com/rustyeddy/barfetch/market"
)

// ErrMissingCredentials is returned by adapter constructors when a required
// credential is neither passed in nor present in the environment.
var ErrMissingCredentials = errors.New("missing credentials")

// Fetcher is implemented by each provider adapter.
type Fetcher interface {
	// Name identifies the provider, e.g. "binance".
	Name() string

	// GetData returns the series for req, from the cache when an entry for
	// the resolved window exists, otherwise from the provider.
	GetData(ctx context.Context, req Request) (*market.Series, error)

	// GetMarkets returns provider metadata keyed by symbol.
	GetMarkets(ctx context.Context) (map[string]Market, error)

	// GetTicker returns the symbols the provider can serve.
	GetTicker(ctx context.Context) ([]string, error)

	// TransformRawData appends the return columns without touching s.
	TransformRawData(s market.Series) market.Series
}

// Request is the input of GetData. Start and End are dates or the
// Earliest/Latest sentinels; empty values mean the sentinels.
type Request struct {
	Start       string
	End         string
	Symbol      string
	Granularity market.Granularity

	// Refresh skips the cache lookup. The result is still written back.
	Refresh bool
}

// Market is the provider-neutral view of a tradable symbol.
type Market struct {
	Symbol   string
	ID       string // provider identifier, e.g. BTCUSDT
	Name     string
	Base     string
	Quote    string
	Exchange string
	Class    string
	Active   bool
}

// TransformRawData is the shared return derivation adapters delegate to.
func TransformRawData(s market.Series) market.Series {
	return market.WithReturns(s)
}
