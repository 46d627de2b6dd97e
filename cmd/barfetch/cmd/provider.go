package cmd

import (
	"fmt"

	"github.com/rustyeddy/barfetch/alpaca"
	"github.com/rustyeddy/barfetch/binance"
	"github.com/rustyeddy/barfetch/fetcher"
	"github.com/rustyeddy/barfetch/polygon"
)

var providers = []string{binance.Name, alpaca.Name, polygon.Name}

// newFetcher builds the adapter for name from the loaded config.
func newFetcher(name string) (fetcher.Fetcher, error) {
	store := cfg.Store()
	switch name {
	case binance.Name:
		return binance.New(cfg.BinanceConfig(), store, binance.WithLogger(logger)), nil
	case alpaca.Name:
		f, err := alpaca.New(cfg.AlpacaConfig(), store, alpaca.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return f, nil
	case polygon.Name:
		f, err := polygon.New(cfg.PolygonConfig(), store, polygon.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown provider %q (use %v)", name, providers)
	}
}
