package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/barfetch/cache"
	"github.com/rustyeddy/barfetch/fetcher"
	"github.com/rustyeddy/barfetch/market"
)

var (
	listed = time.Date(2017, 8, 1, 0, 0, 0, 0, time.UTC)
	now    = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

// fakeExchange serves hourly klines from listed up to last, and a single
// monthly kline at listed.
type fakeExchange struct {
	last   time.Time
	klines atomic.Int32
	hook   func(w http.ResponseWriter, r *http.Request) bool
}

func kline(t time.Time, close float64) []any {
	c := strconv.FormatFloat(close, 'f', -1, 64)
	return []any{t.UnixMilli(), c, c, c, c, "1.5", t.Add(time.Hour).UnixMilli() - 1, "0", 10, "0", "0", "0"}
}

func (fx *fakeExchange) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v3/klines":
		fx.klines.Add(1)
		if fx.hook != nil && fx.hook(w, r) {
			return
		}
		q := r.URL.Query()
		ms, _ := strconv.ParseInt(q.Get("startTime"), 10, 64)
		start := time.UnixMilli(ms).UTC()
		limit, _ := strconv.Atoi(q.Get("limit"))

		rows := [][]any{}
		if q.Get("interval") == "1M" {
			if !start.After(listed) {
				rows = append(rows, kline(listed, 1))
			}
		} else {
			step := time.Hour
			t := start.Truncate(step)
			if t.Before(start) {
				t = t.Add(step)
			}
			if t.Before(listed) {
				t = listed
			}
			for ; !t.After(fx.last) && len(rows) < limit; t = t.Add(step) {
				rows = append(rows, kline(t, 100+float64(t.Sub(listed)/step)))
			}
		}
		json.NewEncoder(w).Encode(rows)
	case "/api/v3/exchangeInfo":
		w.Write([]byte(`{"timezone":"UTC","serverTime":1,"symbols":[
			{"symbol":"ETHUSDT","status":"TRADING","baseAsset":"ETH","quoteAsset":"USDT"},
			{"symbol":"BTCUSDT","status":"TRADING","baseAsset":"BTC","quoteAsset":"USDT"},
			{"symbol":"LUNABTC","status":"BREAK","baseAsset":"LUNA","quoteAsset":"BTC"}]}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestFetcher(t *testing.T, fx *fakeExchange) (*Fetcher, *cache.Store) {
	t.Helper()
	server := httptest.NewServer(fx)
	t.Cleanup(server.Close)

	store := cache.NewStore(filepath.Join(t.TempDir(), "csvs"))
	cfg := Config{BaseURL: server.URL, Timeout: 5 * time.Second, RateLimitWait: time.Millisecond}
	return New(cfg, store, WithNow(func() time.Time { return now })), store
}

func TestGetDataScenario(t *testing.T) {
	fx := &fakeExchange{last: time.Date(2021, 1, 10, 0, 0, 0, 0, time.UTC)}
	f, store := newTestFetcher(t, fx)

	req := fetcher.Request{Start: "2021-01-01", End: "2021-01-03", Symbol: "BTC/USDT", Granularity: market.Hour}
	s, err := f.GetData(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 48, s.Len())
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), s.First())
	assert.Equal(t, time.Date(2021, 1, 2, 23, 0, 0, 0, time.UTC), s.Last())
	assert.False(t, s.Cached)
	assert.Equal(t, Name, s.Source)
	assert.Equal(t, 1.0, s.Bars[0].AssetReturn)
	assert.Equal(t, 0.0, s.Bars[0].LogReturn)
	for i := 1; i < s.Len(); i++ {
		assert.True(t, s.Bars[i].Time.After(s.Bars[i-1].Time))
	}

	path := filepath.Join(store.Dir, "2021-01-01_2021-01-03_BTC-USDT_1h.csv")
	_, err = os.Stat(path)
	require.NoError(t, err)

	hits := fx.klines.Load()
	again, err := f.GetData(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, hits, fx.klines.Load(), "second call must not hit the exchange")
	assert.True(t, again.Cached)
	assert.Equal(t, s.Bars, again.Bars)
}

func TestGetDataDateSpellingsShareKey(t *testing.T) {
	fx := &fakeExchange{last: time.Date(2021, 1, 10, 0, 0, 0, 0, time.UTC)}
	f, store := newTestFetcher(t, fx)

	_, err := f.GetData(context.Background(), fetcher.Request{
		Start: "2021-01-01T00:00:00Z", End: "2021/01/03", Symbol: "BTC/USDT", Granularity: market.Hour,
	})
	require.NoError(t, err)

	s, err := f.GetData(context.Background(), fetcher.Request{
		Start: "20210101", End: "2021-01-03", Symbol: "BTC/USDT", Granularity: market.Hour,
	})
	require.NoError(t, err)
	assert.True(t, s.Cached)

	entries, err := os.ReadDir(store.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGetDataSymbolCaseSharesKey(t *testing.T) {
	fx := &fakeExchange{last: time.Date(2021, 1, 10, 0, 0, 0, 0, time.UTC)}
	f, store := newTestFetcher(t, fx)

	s, err := f.GetData(context.Background(), fetcher.Request{
		Start: "2021-01-01", End: "2021-01-03", Symbol: " btc/usdt", Granularity: market.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDT", s.Symbol)

	s, err = f.GetData(context.Background(), fetcher.Request{
		Start: "2021-01-01", End: "2021-01-03", Symbol: "BTC/USDT", Granularity: market.Hour,
	})
	require.NoError(t, err)
	assert.True(t, s.Cached)

	entries, err := os.ReadDir(store.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2021-01-01_2021-01-03_BTC-USDT_1h.csv", entries[0].Name())
}

func TestGetDataClampsToListing(t *testing.T) {
	fx := &fakeExchange{last: time.Date(2017, 8, 2, 5, 0, 0, 0, time.UTC)}
	f, _ := newTestFetcher(t, fx)

	s, err := f.GetData(context.Background(), fetcher.Request{
		Start: "earliest", End: "2017-08-03", Symbol: "BTC/USDT", Granularity: market.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, listed, s.Since)
	assert.Equal(t, listed, s.First())
	assert.Equal(t, 30, s.Len())

	s, err = f.GetData(context.Background(), fetcher.Request{
		Start: "2015-01-01", End: "2030-01-01", Symbol: "BTC/USDT", Granularity: market.Day,
	})
	require.NoError(t, err)
	assert.Equal(t, listed, s.Since)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), s.Until)
}

func TestFetchStopsWithoutProgress(t *testing.T) {
	stuck := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	fx := &fakeExchange{last: now}
	fx.hook = func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Query().Get("interval") == "1M" {
			return false
		}
		json.NewEncoder(w).Encode([][]any{kline(stuck, 5)})
		return true
	}
	f, _ := newTestFetcher(t, fx)

	s, err := f.GetData(context.Background(), fetcher.Request{
		Start: "2021-01-01", End: "2021-02-01", Symbol: "BTC/USDT", Granularity: market.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, int32(2), fx.klines.Load(), "one probe plus one page")
}

func TestFetchAdvancesOverEmptyPages(t *testing.T) {
	gapEnd := time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC)
	fx := &fakeExchange{last: time.Date(2021, 1, 3, 5, 0, 0, 0, time.UTC)}
	fx.hook = func(w http.ResponseWriter, r *http.Request) bool {
		q := r.URL.Query()
		ms, _ := strconv.ParseInt(q.Get("startTime"), 10, 64)
		if q.Get("interval") == "1h" && time.UnixMilli(ms).Before(gapEnd) {
			w.Write([]byte(`[]`))
			return true
		}
		return false
	}
	f, _ := newTestFetcher(t, fx)

	s, err := f.GetData(context.Background(), fetcher.Request{
		Start: "2021-01-01", End: "2021-01-04", Symbol: "BTC/USDT", Granularity: market.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, gapEnd, s.First())
	assert.Equal(t, 6, s.Len())
}

func TestFetchRetriesRateLimit(t *testing.T) {
	var limited atomic.Bool
	fx := &fakeExchange{last: time.Date(2021, 1, 10, 0, 0, 0, 0, time.UTC)}
	fx.hook = func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Query().Get("interval") == "1h" && limited.CompareAndSwap(false, true) {
			w.WriteHeader(http.StatusTooManyRequests)
			return true
		}
		return false
	}
	f, _ := newTestFetcher(t, fx)

	s, err := f.GetData(context.Background(), fetcher.Request{
		Start: "2021-01-01", End: "2021-01-02", Symbol: "BTC/USDT", Granularity: market.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, 24, s.Len())
	assert.False(t, s.Truncated)
}

func TestFetchTruncatesOnMidLoopError(t *testing.T) {
	fx := &fakeExchange{last: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)}
	var pages atomic.Int32
	fx.hook = func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Query().Get("interval") == "1h" && pages.Add(1) > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return true
		}
		return false
	}
	f, store := newTestFetcher(t, fx)

	req := fetcher.Request{Start: "2021-01-01", End: "2021-03-01", Symbol: "BTC/USDT", Granularity: market.Hour}
	s, err := f.GetData(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, s.Truncated)
	assert.Equal(t, KlinesLimit, s.Len())

	assert.False(t, store.Has(fetcher.KeyFor(fetcher.Window{Since: s.Since, Until: s.Until}, req)))
}

func TestFetchCancelledMidLoopIsAnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx := &fakeExchange{last: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)}
	var pages atomic.Int32
	fx.hook = func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Query().Get("interval") == "1h" && pages.Add(1) > 1 {
			cancel()
			w.WriteHeader(http.StatusInternalServerError)
			return true
		}
		return false
	}
	f, store := newTestFetcher(t, fx)

	req := fetcher.Request{Start: "2021-01-01", End: "2021-03-01", Symbol: "BTC/USDT", Granularity: market.Hour}
	s, err := f.GetData(ctx, req)
	require.Error(t, err)
	assert.Nil(t, s)

	entries, _ := os.ReadDir(store.Dir)
	assert.Empty(t, entries)
}

func TestGetDataErrors(t *testing.T) {
	fx := &fakeExchange{last: now}
	fx.hook = func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Query().Get("interval") == "1h" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
			return true
		}
		return false
	}
	f, _ := newTestFetcher(t, fx)

	_, err := f.GetData(context.Background(), fetcher.Request{Start: "2021-01-01", End: "2021-01-02", Symbol: "NOPE/USDT", Granularity: market.Hour})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid symbol")

	_, err = f.GetData(context.Background(), fetcher.Request{Symbol: "BTC/USDT", Granularity: "2h"})
	require.ErrorIs(t, err, market.ErrUnsupportedGranularity)

	_, err = f.GetData(context.Background(), fetcher.Request{Start: "2021-01-05", End: "2021-01-01", Symbol: "BTC/USDT", Granularity: market.Day})
	require.ErrorIs(t, err, fetcher.ErrInvalidWindow)

	_, err = f.GetData(context.Background(), fetcher.Request{Start: "2021-01-05", End: "2021-01-05", Symbol: "BTC/USDT", Granularity: market.Day})
	require.ErrorIs(t, err, fetcher.ErrInvalidWindow)
}

func TestGetMarketsAndTicker(t *testing.T) {
	f, _ := newTestFetcher(t, &fakeExchange{})

	markets, err := f.GetMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 3)
	btc := markets["BTC/USDT"]
	assert.Equal(t, "BTCUSDT", btc.ID)
	assert.Equal(t, "BTC", btc.Base)
	assert.True(t, btc.Active)
	assert.False(t, markets["LUNA/BTC"].Active)

	tickers, err := f.GetTicker(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT", "LUNA/BTC"}, tickers)
}

func TestSymbolID(t *testing.T) {
	assert.Equal(t, "BTCUSDT", SymbolID("BTC/USDT"))
	assert.Equal(t, "ETHBTC", SymbolID(" eth/btc "))
	assert.Equal(t, "ETH/BTC", Symbol(" eth/btc "))
}
