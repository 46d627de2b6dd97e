package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "Show provider metadata for each symbol",
	Args:  cobra.NoArgs,
	RunE:  runMarkets,
}

var (
	marketsProvider   string
	marketsActiveOnly bool
)

func init() {
	rootCmd.AddCommand(marketsCmd)
	marketsCmd.Flags().StringVarP(&marketsProvider, "provider", "p", "binance", "provider: binance, alpaca or polygon")
	marketsCmd.Flags().BoolVar(&marketsActiveOnly, "active", false, "only show active markets")
}

func runMarkets(cmd *cobra.Command, args []string) error {
	f, err := newFetcher(marketsProvider)
	if err != nil {
		return err
	}
	markets, err := f.GetMarkets(cmd.Context())
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(markets))
	for k := range markets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tID\tNAME\tEXCHANGE\tCLASS\tACTIVE")
	for _, k := range keys {
		m := markets[k]
		if marketsActiveOnly && !m.Active {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n", m.Symbol, m.ID, m.Name, m.Exchange, m.Class, m.Active)
	}
	return w.Flush()
}
