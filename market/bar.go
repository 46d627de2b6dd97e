package market

import "time"

// Bar is one OHLCV observation for a fixed time bucket, plus the return
// columns derived from the previous bar's close.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	LogReturn   float64
	AssetReturn float64
}

// Millis returns the bar open time as unix milliseconds.
func (b Bar) Millis() int64 {
	return b.Time.UnixMilli()
}

// DT formats the bar time the way it is written to the cache.
func (b Bar) DT() string {
	return b.Time.UTC().Format(DTLayout)
}

// DTLayout is the layout of the dt column.
const DTLayout = "2006-01-02T15:04:05.000Z"

// BarFromMillis builds a Bar whose time is the given unix milliseconds in UTC.
func BarFromMillis(ms int64, open, high, low, close, volume float64) Bar {
	return Bar{
		Time:   time.UnixMilli(ms).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: volume,
	}
}
