package polygon

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
	// BaseURL is the Polygon REST endpoint.
	BaseURL = "https://api.polygon.io"

	// AggsLimit is the page size asked of the aggregates endpoint.
	AggsLimit = 50000

	// TickersLimit is the page size asked of the reference tickers endpoint.
	TickersLimit = 1000
)

// rateLimitMarker is how Polygon words a per-minute limit in the error
// field of the envelope.
const rateLimitMarker = "maximum requests per minute"

// APIError is a response whose status is not OK.
type APIError struct {
	Status  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("polygon status %s: %s", e.Status, e.Message)
}

// Client is a minimal Polygon REST client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      httpclient.RetryPolicy
	logger     *slog.Logger
}

// NewClient returns a client for cfg. The API key must already be set.
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
		apiKey:     cfg.APIKey,
		httpClient: httpclient.New(cfg.Timeout),
		limiter:    rate.NewLimiter(limit, 1),
		retry: httpclient.RetryPolicy{
			Wait:       cfg.RateLimitWait,
			MaxRetries: cfg.MaxRateLimitRetries,
		},
		logger: logger,
	}
}

type envelope struct {
	Status       string `json:"status"`
	RequestID    string `json:"request_id"`
	ResultsCount int    `json:"resultsCount"`
	NextURL      string `json:"next_url"`
	Error        string `json:"error"`
	Message      string `json:"message"`
}

func (e envelope) err() error {
	if e.Status == "OK" {
		return nil
	}
	msg := e.Error
	if msg == "" {
		msg = e.Message
	}
	if strings.Contains(msg, rateLimitMarker) {
		return &httpclient.RateLimitError{Msg: msg}
	}
	return &APIError{Status: e.Status, Message: msg}
}

// page decodes u into body, whose embedded envelope is env, and retries
// while Polygon reports a rate limit.
func (c *Client) page(ctx context.Context, u string, body any, env *envelope) error {
	return httpclient.Retry(ctx, c.retry, c.logger, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		*env = envelope{}
		if err := httpclient.GetJSON(ctx, c.httpClient, u, nil, body); err != nil {
			return err
		}
		return env.err()
	})
}

// next appends the API key to a next_url cursor.
func (c *Client) next(u string) string {
	if u == "" {
		return ""
	}
	return u + "&apiKey=" + url.QueryEscape(c.apiKey)
}

// Agg is one aggregate bar. VWAP and N are read but not kept downstream.
type Agg struct {
	T    int64   `json:"t"`
	O    float64 `json:"o"`
	H    float64 `json:"h"`
	L    float64 `json:"l"`
	C    float64 `json:"c"`
	V    float64 `json:"v"`
	VWAP float64 `json:"vw"`
	N    int64   `json:"n"`
}

type aggsResponse struct {
	envelope
	Ticker  string `json:"ticker"`
	Results []Agg  `json:"results"`
}

// Aggs walks the aggregate pages of symbol between from and to inclusive.
// When a page fails, the aggregates read so far come back with the error.
func (c *Client) Aggs(ctx context.Context, symbol string, multiplier int, timespan string, from, to time.Time) ([]Agg, error) {
	params := url.Values{}
	params.Set("adjusted", "true")
	params.Set("sort", "asc")
	params.Set("limit", strconv.Itoa(AggsLimit))
	params.Set("apiKey", c.apiKey)

	u := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/%d/%s/%s/%s?%s",
		c.baseURL, url.PathEscape(symbol), multiplier, timespan,
		from.Format("2006-01-02"), to.Format("2006-01-02"), params.Encode())

	var out []Agg
	for page := 1; u != ""; page++ {
		var resp aggsResponse
		if err := c.page(ctx, u, &resp, &resp.envelope); err != nil {
			return out, fmt.Errorf("aggs %s page %d: %w", symbol, page, err)
		}
		out = append(out, resp.Results...)
		u = c.next(resp.NextURL)
	}
	return out, nil
}

// Ticker is one entry of /v3/reference/tickers.
type Ticker struct {
	Ticker          string `json:"ticker"`
	Name            string `json:"name"`
	Market          string `json:"market"`
	Locale          string `json:"locale"`
	PrimaryExchange string `json:"primary_exchange"`
	Type            string `json:"type"`
	Active          bool   `json:"active"`
	CurrencyName    string `json:"currency_name"`
	CIK             string `json:"cik"`
}

type tickersResponse struct {
	envelope
	Results []Ticker `json:"results"`
}

// Tickers walks the active stock tickers. When a page fails, the tickers
// read so far come back with the error.
func (c *Client) Tickers(ctx context.Context) ([]Ticker, error) {
	params := url.Values{}
	params.Set("market", "stocks")
	params.Set("active", "true")
	params.Set("limit", strconv.Itoa(TickersLimit))
	params.Set("apiKey", c.apiKey)
	u := c.baseURL + "/v3/reference/tickers?" + params.Encode()

	var out []Ticker
	for page := 1; u != ""; page++ {
		var resp tickersResponse
		if err := c.page(ctx, u, &resp, &resp.envelope); err != nil {
			return out, fmt.Errorf("tickers page %d: %w", page, err)
		}
		out = append(out, resp.Results...)
		u = c.next(resp.NextURL)
	}
	return out, nil
}
