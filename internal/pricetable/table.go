package pricetable

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"
)

// RequiredColumns are the CSV columns that must be present. Extra columns
// are ignored.
var RequiredColumns = []string{"Date", "Open", "High", "Low", "Close", "Volume"}

// MaxAdHocRangeDays bounds RangeBounded, the ad-hoc query path used by the
// analysis entry point. The backtest day loop has no such limit.
const MaxAdHocRangeDays = 30

// Table is a totally ordered, gap-tolerant sequence of Bars with unique,
// strictly ascending dates.
type Table struct {
	bars []Bar
}

// Load reads an OHLCV CSV (Date,Open,High,Low,Close,Volume, plus optional
// ignored extras) and returns a Table sorted ascending by date.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pricetable: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadReader(f)
}

// LoadReader parses OHLCV rows from r. Exposed separately from Load so
// tests and embedded callers can supply an in-memory reader.
func LoadReader(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("pricetable: read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range RequiredColumns {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("pricetable: CSV is missing required column %q", required)
		}
	}

	var bars []Bar
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("pricetable: read row: %w", err)
		}

		date, err := time.Parse("2006-01-02", row[col["Date"]])
		if err != nil {
			return nil, fmt.Errorf("pricetable: invalid date %q: %w", row[col["Date"]], err)
		}

		bar := Bar{Date: normalizeDate(date)}
		if bar.Open, err = strconv.ParseFloat(row[col["Open"]], 64); err != nil {
			return nil, fmt.Errorf("pricetable: invalid Open on %s: %w", row[col["Date"]], err)
		}
		if bar.High, err = strconv.ParseFloat(row[col["High"]], 64); err != nil {
			return nil, fmt.Errorf("pricetable: invalid High on %s: %w", row[col["Date"]], err)
		}
		if bar.Low, err = strconv.ParseFloat(row[col["Low"]], 64); err != nil {
			return nil, fmt.Errorf("pricetable: invalid Low on %s: %w", row[col["Date"]], err)
		}
		if bar.Close, err = strconv.ParseFloat(row[col["Close"]], 64); err != nil {
			return nil, fmt.Errorf("pricetable: invalid Close on %s: %w", row[col["Date"]], err)
		}
		vol, err := strconv.ParseFloat(row[col["Volume"]], 64)
		if err != nil {
			return nil, fmt.Errorf("pricetable: invalid Volume on %s: %w", row[col["Date"]], err)
		}
		bar.Volume = int64(vol)

		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return &Table{bars: bars}, nil
}

// New builds a Table directly from a slice of Bars, sorting and normalizing
// dates. Used by tests.
func New(bars []Bar) *Table {
	out := make([]Bar, len(bars))
	for i, b := range bars {
		b.Date = normalizeDate(b.Date)
		out[i] = b
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return &Table{bars: out}
}

// Len returns the number of bars in the table.
func (t *Table) Len() int { return len(t.bars) }

// MinDate returns the earliest date in the table. Panics if the table is empty.
func (t *Table) MinDate() time.Time { return t.bars[0].Date }

// MaxDate returns the latest date in the table. Panics if the table is empty.
func (t *Table) MaxDate() time.Time { return t.bars[len(t.bars)-1].Date }

// PrefixUntil returns the subsequence of bars whose date is <= D (D is
// normalized to a calendar day first). D's own bar is included.
func (t *Table) PrefixUntil(d time.Time) []Bar {
	d = normalizeDate(d)
	end := sort.Search(len(t.bars), func(i int) bool { return t.bars[i].Date.After(d) })
	out := make([]Bar, end)
	copy(out, t.bars[:end])
	return out
}

// Range returns the bars with a <= date <= b.
//
// It fails with a "range outside dataset bounds" error if either endpoint
// lies outside [MinDate, MaxDate], with "start after end" if a > b, and
// with "no rows in range" if the (in-bounds) subset is empty.
func (t *Table) Range(a, b time.Time) ([]Bar, error) {
	a, b = normalizeDate(a), normalizeDate(b)

	if a.After(b) {
		return nil, fmt.Errorf("start after end: start (%s) is after end (%s)",
			a.Format("2006-01-02"), b.Format("2006-01-02"))
	}
	if len(t.bars) == 0 {
		return nil, fmt.Errorf("range outside dataset bounds: dataset is empty")
	}

	minDate, maxDate := t.MinDate(), t.MaxDate()
	if a.Before(minDate) || b.After(maxDate) {
		return nil, fmt.Errorf(
			"range outside dataset bounds: requested [%s .. %s], available [%s .. %s]",
			a.Format("2006-01-02"), b.Format("2006-01-02"),
			minDate.Format("2006-01-02"), maxDate.Format("2006-01-02"))
	}

	start := sort.Search(len(t.bars), func(i int) bool { return !t.bars[i].Date.Before(a) })
	end := sort.Search(len(t.bars), func(i int) bool { return t.bars[i].Date.After(b) })

	if start >= end {
		return nil, fmt.Errorf("no rows in range [%s .. %s]: the dataset may not contain those specific dates",
			a.Format("2006-01-02"), b.Format("2006-01-02"))
	}

	out := make([]Bar, end-start)
	copy(out, t.bars[start:end])
	return out, nil
}

// RangeBounded is Range with the additional MaxAdHocRangeDays span guard
// used by the ad-hoc analysis query path. The backtest day loop never
// calls this — it has no span limit.
func (t *Table) RangeBounded(a, b time.Time) ([]Bar, error) {
	a, b = normalizeDate(a), normalizeDate(b)
	if span := int(b.Sub(a).Hours() / 24); span > MaxAdHocRangeDays {
		return nil, fmt.Errorf("requested range spans %d days, exceeding the %d-day maximum for ad-hoc queries",
			span, MaxAdHocRangeDays)
	}
	return t.Range(a, b)
}

// TradingDates returns the dates of Range(a, b), in order.
func (t *Table) TradingDates(a, b time.Time) ([]time.Time, error) {
	bars, err := t.Range(a, b)
	if err != nil {
		return nil, err
	}
	dates := make([]time.Time, len(bars))
	for i, bar := range bars {
		dates[i] = bar.Date
	}
	return dates, nil
}

// BarOn returns the bar for exactly date d, if present.
func (t *Table) BarOn(d time.Time) (Bar, bool) {
	d = normalizeDate(d)
	i := sort.Search(len(t.bars), func(i int) bool { return !t.bars[i].Date.Before(d) })
	if i < len(t.bars) && t.bars[i].Date.Equal(d) {
		return t.bars[i], true
	}
	return Bar{}, false
}
