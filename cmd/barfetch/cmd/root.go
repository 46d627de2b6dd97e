package cmd

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/barfetch/config"
	"github.com/rustyeddy/barfetch/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "barfetch",
	Short: "Download and cache historical OHLCV bars",
	Long: `barfetch downloads historical price bars from a crypto exchange (Binance),
an equities broker (Alpaca) and an equities data vendor (Polygon).

Every series is normalized to dt,open,high,low,close,volume, extended with
log_return and asset_return, and cached as CSV under csvs/ so repeated
requests for the same window never hit the network.

Credentials are read from the config file, a .env file or the environment
(ALPACA_API_KEY, ALPACA_SECRET_KEY, POLYGON_API_KEY).`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

var (
	cfgFile string

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, logCloser, err = logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if logCloser != nil {
		return logCloser.Close()
	}
	return nil
}
