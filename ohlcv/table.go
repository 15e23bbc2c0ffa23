package ohlcv

import (
	"fmt"
	"slices"
	"time"
)

// Bar is one trading day of an instrument. Date is the calendar day at UTC midnight.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Table is an instrument's bars in ascending date order with no two bars on the same day. A Table is
// not modified after construction; accessors hand out copies.
type Table struct {
	instrument string
	bars       []Bar
}

// NewTable copies bars, normalises their dates to calendar days and sorts them. It fails if two bars
// fall on the same day.
func NewTable(instrument string, bars []Bar) (*Table, error) {
	cp := make([]Bar, len(bars))
	for i, b := range bars {
		b.Date = Day(b.Date)
		cp[i] = b
	}
	slices.SortStableFunc(cp, func(a, b Bar) int { return a.Date.Compare(b.Date) })

	for i := 1; i < len(cp); i++ {
		if cp[i].Date.Equal(cp[i-1].Date) {
			return nil, fmt.Errorf("duplicate bar for %s on %s", instrument, cp[i].Date.Format(time.DateOnly))
		}
	}
	return &Table{instrument: instrument, bars: cp}, nil
}

// DedupeBars keeps the last bar seen for each calendar day. Providers that merge overlapping
// responses use it before calling NewTable.
func DedupeBars(bars []Bar) []Bar {
	idx := make(map[time.Time]int, len(bars))
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		b.Date = Day(b.Date)
		if i, ok := idx[b.Date]; ok {
			out[i] = b
			continue
		}
		idx[b.Date] = len(out)
		out = append(out, b)
	}
	return out
}

// Day truncates t to its calendar day, expressed at UTC midnight.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (t *Table) Instrument() string { return t.instrument }
func (t *Table) Len() int           { return len(t.bars) }
func (t *Table) Bar(i int) Bar      { return t.bars[i] }

func (t *Table) Bars() []Bar {
	return slices.Clone(t.bars)
}

// First and Last panic on an empty table, like indexing would.
func (t *Table) First() Bar { return t.bars[0] }
func (t *Table) Last() Bar  { return t.bars[len(t.bars)-1] }

func (t *Table) Closes() []float64 {
	out := make([]float64, len(t.bars))
	for i, b := range t.bars {
		out[i] = b.Close
	}
	return out
}

func (t *Table) Volumes() []float64 {
	out := make([]float64, len(t.bars))
	for i, b := range t.bars {
		out[i] = float64(b.Volume)
	}
	return out
}

// Merge combines tables of the same instrument into one. It fails on overlapping days.
func Merge(instrument string, tables ...*Table) (*Table, error) {
	var bars []Bar
	for _, t := range tables {
		if t.instrument != instrument {
			return nil, fmt.Errorf("cannot merge %s bars into %s", t.instrument, instrument)
		}
		bars = append(bars, t.bars...)
	}
	return NewTable(instrument, bars)
}
