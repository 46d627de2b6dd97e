package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/rustyeddy/barfetch/internal/httpclient"
	"github.com/rustyeddy/barfetch/market"
)

const (
	// BaseURL is the public Binance spot REST endpoint.
	BaseURL = "https://api.binance.com"

	// KlinesLimit is the page size asked of /api/v3/klines.
	KlinesLimit = 1000
)

// Client is a minimal Binance spot market-data client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      httpclient.RetryPolicy
	logger     *slog.Logger
}

// NewClient returns a client for cfg. A zero RequestsPerSecond disables
// pacing.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	base := cfg.BaseURL
	if base == "" {
		base = BaseURL
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: httpclient.New(cfg.Timeout),
		limiter:    rate.NewLimiter(limit, 1),
		retry: httpclient.RetryPolicy{
			Wait:       cfg.RateLimitWait,
			MaxRetries: cfg.MaxRateLimitRetries,
		},
		logger: logger,
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return httpclient.Retry(ctx, c.retry, c.logger, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return httpclient.GetJSON(ctx, c.httpClient, u, nil, out)
	})
}

// Klines returns up to limit bars for symbol (exchange id, e.g. BTCUSDT)
// opening at or after startMs.
func (c *Client) Klines(ctx context.Context, symbol, interval string, startMs int64, limit int) ([]market.Bar, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("startTime", strconv.FormatInt(startMs, 10))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var rows [][]json.RawMessage
	if err := c.get(ctx, "/api/v3/klines", params, &rows); err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, interval, err)
	}

	bars := make([]market.Bar, 0, len(rows))
	for i, row := range rows {
		b, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("kline %d: %w", i, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// parseKline reads the positional kline array
// [openTime, open, high, low, close, volume, closeTime, ...].
func parseKline(row []json.RawMessage) (market.Bar, error) {
	if len(row) < 6 {
		return market.Bar{}, fmt.Errorf("short row: %d fields", len(row))
	}
	var ms int64
	if err := json.Unmarshal(row[0], &ms); err != nil {
		return market.Bar{}, fmt.Errorf("open time: %w", err)
	}
	var vals [5]float64
	for i := range vals {
		v, err := number(row[i+1])
		if err != nil {
			return market.Bar{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return market.BarFromMillis(ms, vals[0], vals[1], vals[2], vals[3], vals[4]), nil
}

// number accepts both the quoted decimals Binance sends and bare numbers.
func number(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	err := json.Unmarshal(raw, &f)
	return f, err
}

// SymbolInfo is one entry of /api/v3/exchangeInfo.
type SymbolInfo struct {
	Symbol     string `json:"symbol"`
	Status     string `json:"status"`
	BaseAsset  string `json:"baseAsset"`
	QuoteAsset string `json:"quoteAsset"`
}

type exchangeInfo struct {
	Timezone   string       `json:"timezone"`
	ServerTime int64        `json:"serverTime"`
	Symbols    []SymbolInfo `json:"symbols"`
}

// ExchangeInfo lists the spot symbols.
func (c *Client) ExchangeInfo(ctx context.Context) ([]SymbolInfo, error) {
	var info exchangeInfo
	if err := c.get(ctx, "/api/v3/exchangeInfo", nil, &info); err != nil {
		return nil, fmt.Errorf("exchange info: %w", err)
	}
	return info.Symbols, nil
}

// SymbolID maps "BTC/USDT" to the exchange id "BTCUSDT".
func SymbolID(symbol string) string {
	return strings.ReplaceAll(Symbol(symbol), "/", "")
}

// Symbol returns the canonical "BASE/QUOTE" spelling used in cache keys.
func Symbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Interval maps g to a kline interval. Binance uses the same spellings.
func Interval(g market.Granularity) (string, error) {
	switch g {
	case market.Minute, market.FiveMinutes, market.FifteenMinutes, market.ThirtyMinutes,
		market.Hour, market.FourHours, market.Day, market.Week, market.Month:
		return string(g), nil
	}
	return "", fmt.Errorf("%w: binance %q", market.ErrUnsupportedGranularity, g)
}

// DefaultRateLimitWait is used when a 429/418 carries no Retry-After.
const DefaultRateLimitWait = httpclient.DefaultRateLimitWait
