package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the barfetch CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("barfetch version %s\n", version)
		fmt.Println("Historical OHLCV downloader for Binance, Alpaca and Polygon")
		fmt.Println("https://github.com/rustyeddy/barfetch")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
