// Package pricetable holds the immutable daily OHLCV history a backtest
// runs against. Bars are loaded once, sorted ascending by date, and never
// mutated for the lifetime of the table.
package pricetable

import "time"

// Bar is a single trading day's OHLCV record. Dates are normalized to
// midnight UTC so that date comparisons ignore any intraday component in
// the source data.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// normalizeDate truncates t to a calendar day in UTC, discarding any
// intraday component. "D's bar" is always keyed to this truncated value.
func normalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
