package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tickersCmd = &cobra.Command{
	Use:   "tickers",
	Short: "List the symbols a provider serves",
	Long: `Print one symbol per line.

Example:
  barfetch tickers --provider polygon > symbols.txt`,
	Args: cobra.NoArgs,
	RunE: runTickers,
}

var tickersProvider string

func init() {
	rootCmd.AddCommand(tickersCmd)
	tickersCmd.Flags().StringVarP(&tickersProvider, "provider", "p", "binance", "provider: binance, alpaca or polygon")
}

func runTickers(cmd *cobra.Command, args []string) error {
	f, err := newFetcher(tickersProvider)
	if err != nil {
		return err
	}
	symbols, err := f.GetTicker(cmd.Context())
	if err != nil {
		return err
	}
	for _, s := range symbols {
		fmt.Println(s)
	}
	return nil
}
