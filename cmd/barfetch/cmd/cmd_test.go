package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayBounds(t *testing.T) {
	start, end, err := dayBounds(time.UTC, "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	_, _, err = dayBounds(time.UTC, "15/01/2024")
	assert.Error(t, err)
}

func fakeBinance(t *testing.T) *httptest.Server {
	t.Helper()
	last := time.Date(2021, 1, 5, 0, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		ms, _ := strconv.ParseInt(q.Get("startTime"), 10, 64)
		rows := [][]any{}
		if q.Get("interval") == "1M" {
			rows = append(rows, []any{time.Date(2017, 8, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), "1", "1", "1", "1", "1"})
		} else {
			for t := time.UnixMilli(ms).UTC(); !t.After(last); t = t.Add(time.Hour) {
				c := fmt.Sprintf("%d", 100+t.Hour())
				rows = append(rows, []any{t.UnixMilli(), c, c, c, c, "2"})
			}
		}
		json.NewEncoder(w).Encode(rows)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchCommand(t *testing.T) {
	server := fakeBinance(t)
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "barfetch.yaml")
	yaml := fmt.Sprintf(`cache:
  dir: %s
journal:
  type: csv
  path: %s
logging:
  level: error
binance:
  base_url: %s
  http:
    timeout: 5s
    requests_per_second: 0
    rate_limit_wait: 1ms
`, filepath.Join(dir, "csvs"), filepath.Join(dir, "fetches.csv"), server.URL)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil) })

	rootCmd.SetArgs([]string{
		"--config", cfgPath,
		"fetch", "--provider", "binance",
		"--symbol", "BTC/USDT", "--symbol", "ETH/USDT",
		"--start", "2021-01-01", "--end", "2021-01-03", "--granularity", "1h",
	})
	require.NoError(t, rootCmd.Execute())

	for _, name := range []string{
		"2021-01-01_2021-01-03_BTC-USDT_1h.csv",
		"2021-01-01_2021-01-03_ETH-USDT_1h.csv",
	} {
		data, err := os.ReadFile(filepath.Join(dir, "csvs", name))
		require.NoError(t, err, name)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		assert.Len(t, lines, 49, name)
		assert.Equal(t, "dt,milliseconds,open,high,low,close,volume,log_return,asset_return", lines[0])
	}

	data, err := os.ReadFile(filepath.Join(dir, "fetches.csv"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)

	// closes run 100..123 within each day
	assert.Contains(t, out.String(), "48 bars  log return +0.2070")
	assert.Contains(t, out.String(), "2 symbols, 0 failed")
}

func TestFetchCommandRejectsBadFlags(t *testing.T) {
	cfgFile = ""
	rootCmd.SetArgs([]string{"fetch", "--granularity", "7h", "--symbol", "X"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported granularity")

	fetchGranularity = "1h"
	fetchSymbols = nil
	rootCmd.SetArgs([]string{"fetch", "--provider", "binance", "--granularity", "1h"})
	err = rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "either --symbol or --all")
}
