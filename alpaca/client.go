package alpaca

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rustyeddy/barfetch/internal/httpclient"
)

const (
	// DataURL is the Alpaca market data API.
	DataURL = "https://data.alpaca.markets"
	// TradingURL is the live trading API, used for the asset list.
	TradingURL = "https://api.alpaca.markets"

	// PageLimit is the page size asked of the bars endpoint.
	PageLimit = 10000
)

// Client talks to the Alpaca data and trading APIs.
type Client struct {
	dataURL    string
	tradingURL string
	keyID      string
	secretKey  string
	feed       string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      httpclient.RetryPolicy
	logger     *slog.Logger
}

// NewClient returns a client for cfg. Credentials must already be set.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DataURL == "" {
		cfg.DataURL = DataURL
	}
	if cfg.TradingURL == "" {
		cfg.TradingURL = TradingURL
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		dataURL:    strings.TrimRight(cfg.DataURL, "/"),
		tradingURL: strings.TrimRight(cfg.TradingURL, "/"),
		keyID:      cfg.KeyID,
		secretKey:  cfg.SecretKey,
		feed:       cfg.Feed,
		httpClient: httpclient.New(cfg.Timeout),
		limiter:    rate.NewLimiter(limit, 1),
		retry: httpclient.RetryPolicy{
			Wait:       cfg.RateLimitWait,
			MaxRetries: cfg.MaxRateLimitRetries,
		},
		logger: logger,
	}
}

func (c *Client) get(ctx context.Context, u string, out any) error {
	header := http.Header{}
	header.Set("APCA-API-KEY-ID", c.keyID)
	header.Set("APCA-API-SECRET-KEY", c.secretKey)
	return httpclient.Retry(ctx, c.retry, c.logger, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return httpclient.GetJSON(ctx, c.httpClient, u, header, out)
	})
}

// Bar is one aggregate as returned by /v2/stocks/{symbol}/bars.
type Bar struct {
	Timestamp  time.Time `json:"t"`
	Open       float64   `json:"o"`
	High       float64   `json:"h"`
	Low        float64   `json:"l"`
	Close      float64   `json:"c"`
	Volume     float64   `json:"v"`
	TradeCount int64     `json:"n"`
	VWAP       float64   `json:"vw"`
}

type barsResponse struct {
	Bars          []Bar   `json:"bars"`
	Symbol        string  `json:"symbol"`
	NextPageToken *string `json:"next_page_token"`
}

// BarsRequest selects bars for one symbol.
type BarsRequest struct {
	Timeframe string // e.g. "1Hour"
	Start     time.Time
	End       time.Time
}

// GetBars returns every bar of req, following next_page_token. When a
// later page fails, the bars read so far are returned with the error.
func (c *Client) GetBars(ctx context.Context, symbol string, req BarsRequest) ([]Bar, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	params := url.Values{}
	params.Set("timeframe", req.Timeframe)
	params.Set("start", req.Start.UTC().Format(time.RFC3339))
	params.Set("end", req.End.UTC().Format(time.RFC3339))
	params.Set("adjustment", "raw")
	params.Set("limit", strconv.Itoa(PageLimit))
	if c.feed != "" {
		params.Set("feed", c.feed)
	}

	var bars []Bar
	for page := 1; ; page++ {
		u := fmt.Sprintf("%s/v2/stocks/%s/bars?%s", c.dataURL, url.PathEscape(symbol), params.Encode())

		var resp barsResponse
		if err := c.get(ctx, u, &resp); err != nil {
			return bars, fmt.Errorf("bars %s page %d: %w", symbol, page, err)
		}
		bars = append(bars, resp.Bars...)

		if resp.NextPageToken == nil || *resp.NextPageToken == "" {
			return bars, nil
		}
		params.Set("page_token", *resp.NextPageToken)
	}
}

// Asset is one entry of /v2/assets.
type Asset struct {
	ID       string `json:"id"`
	Class    string `json:"class"`
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Tradable bool   `json:"tradable"`
}

// ListAssets returns the active assets.
func (c *Client) ListAssets(ctx context.Context) ([]Asset, error) {
	var assets []Asset
	if err := c.get(ctx, c.tradingURL+"/v2/assets?status=active", &assets); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}
