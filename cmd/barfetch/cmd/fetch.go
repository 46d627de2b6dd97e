package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/barfetch/fetcher"
	"github.com/rustyeddy/barfetch/journal"
	"github.com/rustyeddy/barfetch/market"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch bars for one or more symbols",
	Long: `Fetch historical bars and cache them as CSV.

--start and --end take a date (2021-01-01, 2021/01/01, 20210101 or RFC3339)
or the sentinels "earliest" and "latest". A cached window is served from
disk unless --refresh is given.

Examples:
  barfetch fetch --provider binance --symbol BTC/USDT --start 2021-01-01 --end 2021-01-03 --granularity 1h
  barfetch fetch --provider polygon --symbol AAPL --symbol MSFT --granularity 1d
  barfetch fetch --provider alpaca --all --every 50 --start 2020-01-01`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

var (
	fetchProvider    string
	fetchSymbols     []string
	fetchStart       string
	fetchEnd         string
	fetchGranularity string
	fetchAll         bool
	fetchEvery       int
	fetchRefresh     bool
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&fetchProvider, "provider", "p", "binance", "provider: binance, alpaca or polygon")
	fetchCmd.Flags().StringArrayVarP(&fetchSymbols, "symbol", "s", nil, "symbol to fetch, e.g. BTC/USDT or AAPL (repeatable)")
	fetchCmd.Flags().StringVar(&fetchStart, "start", fetcher.Earliest, "start date or \"earliest\"")
	fetchCmd.Flags().StringVar(&fetchEnd, "end", fetcher.Latest, "end date or \"latest\"")
	fetchCmd.Flags().StringVarP(&fetchGranularity, "granularity", "g", "1h", "bar size: 1m 5m 15m 30m 1h 4h 1d 1w 1M")
	fetchCmd.Flags().BoolVar(&fetchAll, "all", false, "fetch every symbol the provider lists")
	fetchCmd.Flags().IntVar(&fetchEvery, "every", 1, "with --all, keep one symbol out of every N")
	fetchCmd.Flags().BoolVar(&fetchRefresh, "refresh", false, "ignore cached files and fetch again")
}

func runFetch(cmd *cobra.Command, args []string) error {
	gran, err := market.ParseGranularity(fetchGranularity)
	if err != nil {
		return err
	}
	if fetchAll == (len(fetchSymbols) > 0) {
		return fmt.Errorf("pass either --symbol or --all")
	}

	f, err := newFetcher(fetchProvider)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	symbols := fetchSymbols
	if fetchAll {
		symbols, err = f.GetTicker(ctx)
		if err != nil {
			return fmt.Errorf("list symbols: %w", err)
		}
		if len(symbols) == 0 {
			return fmt.Errorf("%s listed no symbols", f.Name())
		}
	}

	j, err := journal.Open(cfg.Journal.Type, cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	runID, results := fetcher.Harvest(ctx, f, symbols, fetcher.HarvestOptions{
		Start:       fetchStart,
		End:         fetchEnd,
		Granularity: gran,
		Refresh:     fetchRefresh,
		Every:       fetchEvery,
		Journal:     j,
		Logger:      logger,
	})

	return report(ctx, cmd.OutOrStdout(), runID, results, f.Name(), gran)
}

func report(ctx context.Context, w io.Writer, runID string, results []fetcher.HarvestResult, provider string, gran market.Granularity) error {
	store := cfg.Store()
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "✗ %-12s %v\n", r.Symbol, r.Err)
			continue
		}
		key := fetcher.KeyFor(fetcher.Window{Since: r.Series.Since, Until: r.Series.Until}, fetcher.Request{Symbol: r.Series.Symbol, Granularity: gran})
		state := "fetched"
		switch {
		case r.Series.Cached:
			state = "cached"
		case r.Series.Truncated:
			state = "short read, not cached"
		}
		fmt.Fprintf(w, "✓ %-12s %6d bars  log return %+.4f  %s  (%s)\n",
			r.Symbol, r.Series.Len(), r.Series.CumulativeLogReturn(), store.Path(key), state)
	}

	fmt.Fprintf(w, "\nrun %s: %s, %d symbols, %d failed\n", runID, provider, len(results), failed)
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 && failed == len(results) {
		return fmt.Errorf("all %d fetches failed", failed)
	}
	return nil
}
