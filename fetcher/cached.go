package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rustyeddy/barfetch/cache"
	"github.com/rustyeddy/barfetch/market"
)

// FetchFunc performs the network part of GetData and returns raw,
// normalized bars without return columns.
type FetchFunc func(ctx context.Context) (*market.Series, error)

// Cached runs the sequence every adapter shares: look the key up, and on a
// miss fetch, derive returns and save. Truncated series are returned but
// never saved, so an entry always holds a complete fetch.
func Cached(ctx context.Context, store *cache.Store, key cache.Key, req Request, source string, logger *slog.Logger, fetch FetchFunc) (*market.Series, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if !req.Refresh {
		s, err := store.Load(key)
		if err != nil {
			return nil, err
		}
		if s != nil {
			logger.Info("cached", "file", key.Filename(), "bars", s.Len())
			s.Source = source
			s.Since = key.Since
			s.Until = key.Until
			s.Cached = true
			return s, nil
		}
	}

	raw, err := fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", source, key.Symbol, err)
	}

	out := TransformRawData(*raw)
	out.Symbol = key.Symbol
	out.Granularity = key.Granularity
	out.Source = source
	out.Since = key.Since
	out.Until = key.Until

	if out.Truncated {
		logger.Warn("short read, not caching", "file", key.Filename(), "bars", out.Len())
		return &out, nil
	}

	if err := store.Save(&out, key); err != nil {
		return nil, err
	}
	logger.Info("saved", "file", key.Filename(), "bars", out.Len())
	return &out, nil
}

// KeyFor builds the cache key for a resolved window.
func KeyFor(w Window, req Request) cache.Key {
	return cache.Key{
		Since:       w.Since,
		Until:       w.Until,
		Symbol:      req.Symbol,
		Granularity: req.Granularity,
	}
}
