package pricetable

import (
	"strings"
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

func sampleTable(t *testing.T) *Table {
	t.Helper()
	bars := []Bar{
		{Date: mustDate(t, "2024-01-01"), Open: 100, High: 102, Low: 98, Close: 100, Volume: 10},
		{Date: mustDate(t, "2024-01-02"), Open: 100, High: 105, Low: 99, Close: 103, Volume: 12},
		{Date: mustDate(t, "2024-01-03"), Open: 103, High: 110, Low: 102, Close: 108, Volume: 14},
		{Date: mustDate(t, "2024-01-04"), Open: 108, High: 111, Low: 104, Close: 106, Volume: 9},
		{Date: mustDate(t, "2024-01-05"), Open: 106, High: 109, Low: 100, Close: 101, Volume: 11},
	}
	return New(bars)
}

func TestPrefixUntilIncludesOwnDay(t *testing.T) {
	tbl := sampleTable(t)
	view := tbl.PrefixUntil(mustDate(t, "2024-01-03"))
	if len(view) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(view))
	}
	if !view[len(view)-1].Date.Equal(mustDate(t, "2024-01-03")) {
		t.Fatalf("expected last bar to be 2024-01-03, got %s", view[len(view)-1].Date)
	}
}

func TestPrefixUntilEmptyBeforeStart(t *testing.T) {
	tbl := sampleTable(t)
	view := tbl.PrefixUntil(mustDate(t, "2023-12-31"))
	if len(view) != 0 {
		t.Fatalf("expected empty view, got %d bars", len(view))
	}
}

func TestRangeOutOfBounds(t *testing.T) {
	tbl := sampleTable(t)
	_, err := tbl.Range(mustDate(t, "2023-12-01"), mustDate(t, "2024-01-03"))
	if err == nil || !strings.Contains(err.Error(), "range outside dataset bounds") {
		t.Fatalf("expected bounds error, got %v", err)
	}
}

func TestRangeStartAfterEnd(t *testing.T) {
	tbl := sampleTable(t)
	_, err := tbl.Range(mustDate(t, "2024-01-04"), mustDate(t, "2024-01-02"))
	if err == nil || !strings.Contains(err.Error(), "start after end") {
		t.Fatalf("expected start-after-end error, got %v", err)
	}
}

func TestRangeNoRows(t *testing.T) {
	bars := []Bar{
		{Date: mustDate(t, "2024-01-01"), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{Date: mustDate(t, "2024-01-10"), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
	}
	tbl := New(bars)
	_, err := tbl.Range(mustDate(t, "2024-01-03"), mustDate(t, "2024-01-05"))
	if err == nil || !strings.Contains(err.Error(), "no rows in range") {
		t.Fatalf("expected no-rows error, got %v", err)
	}
}

func TestTradingDatesOrder(t *testing.T) {
	tbl := sampleTable(t)
	dates, err := tbl.TradingDates(mustDate(t, "2024-01-02"), mustDate(t, "2024-01-04"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"2024-01-02", "2024-01-03", "2024-01-04"}
	if len(dates) != len(want) {
		t.Fatalf("expected %d dates, got %d", len(want), len(dates))
	}
	for i, d := range dates {
		if d.Format("2006-01-02") != want[i] {
			t.Errorf("date %d: got %s, want %s", i, d.Format("2006-01-02"), want[i])
		}
	}
}

func TestRangeBoundedRejectsLongSpan(t *testing.T) {
	tbl := sampleTable(t)
	_, err := tbl.RangeBounded(mustDate(t, "2024-01-01"), mustDate(t, "2024-03-01"))
	if err == nil || !strings.Contains(err.Error(), "exceeding the 30-day maximum") {
		t.Fatalf("expected span-guard error, got %v", err)
	}
}

func TestLoadReaderRejectsMissingColumn(t *testing.T) {
	csv := "Date,Open,High,Low,Close\n2024-01-01,1,1,1,1\n"
	_, err := LoadReader(strings.NewReader(csv))
	if err == nil || !strings.Contains(err.Error(), "missing required column") {
		t.Fatalf("expected missing-column error, got %v", err)
	}
}

func TestLoadReaderParsesRows(t *testing.T) {
	csv := "Date,Open,High,Low,Close,Volume,Extra\n" +
		"2024-01-01,100,102,98,100,10,ignored\n" +
		"2024-01-02,100,105,99,103,12,ignored\n"
	tbl, err := LoadReader(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}
	bar, ok := tbl.BarOn(mustDate(t, "2024-01-02"))
	if !ok {
		t.Fatal("expected bar on 2024-01-02")
	}
	if bar.Close != 103 {
		t.Errorf("expected close 103, got %f", bar.Close)
	}
}
