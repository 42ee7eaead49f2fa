package models

import (
	"sort"
	"time"
)

// IntervalDaily is the only candle interval the analysis understands.
const IntervalDaily = "1d"

// PriceSeries is an ordered run of daily candles for one trading pair.
//
// Candles are expected in strictly increasing date order with one row per
// calendar day; the trailing "days since" metrics rely on that layout.
type PriceSeries struct {
	Pair     string   `json:"pair"`     // Pair as entered by the user, e.g. "BTC/USD"
	Symbol   string   `json:"symbol"`   // Exchange symbol, e.g. "BTCUSD"
	Interval string   `json:"interval"` // Candle interval, always IntervalDaily today
	Candles  []Candle `json:"candles"`
}

// NewPriceSeries creates an empty daily series for the given pair and symbol.
func NewPriceSeries(pair, symbol string) *PriceSeries {
	return &PriceSeries{
		Pair:     pair,
		Symbol:   symbol,
		Interval: IntervalDaily,
		Candles:  make([]Candle, 0),
	}
}

// Len returns the number of rows in the series.
func (s *PriceSeries) Len() int {
	return len(s.Candles)
}

// Append adds candles to the end of the series without reordering.
func (s *PriceSeries) Append(candles ...Candle) {
	s.Candles = append(s.Candles, candles...)
}

// SortByDate orders the candles chronologically. When two candles share a
// date the later one in the input wins, so a re-fetched page overrides stale rows.
func (s *PriceSeries) SortByDate() {
	sort.SliceStable(s.Candles, func(i, j int) bool {
		return s.Candles[i].Date.Before(s.Candles[j].Date)
	})

	if len(s.Candles) < 2 {
		return
	}

	out := s.Candles[:1]
	for _, c := range s.Candles[1:] {
		last := &out[len(out)-1]
		if c.Date.Equal(last.Date) {
			*last = c
			continue
		}
		out = append(out, c)
	}
	s.Candles = out
}

// Dates returns the date column.
func (s *PriceSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Date
	}
	return out
}

// Highs returns the high column.
func (s *PriceSeries) Highs() []float64 {
	return s.column(func(c Candle) float64 { return c.High })
}

// Lows returns the low column.
func (s *PriceSeries) Lows() []float64 {
	return s.column(func(c Candle) float64 { return c.Low })
}

// Closes returns the close column.
func (s *PriceSeries) Closes() []float64 {
	return s.column(func(c Candle) float64 { return c.Close })
}

func (s *PriceSeries) column(pick func(Candle) float64) []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = pick(c)
	}
	return out
}

// First returns the earliest candle, or nil for an empty series.
func (s *PriceSeries) First() *Candle {
	if len(s.Candles) == 0 {
		return nil
	}
	return &s.Candles[0]
}

// Last returns the latest candle, or nil for an empty series.
func (s *PriceSeries) Last() *Candle {
	if len(s.Candles) == 0 {
		return nil
	}
	return &s.Candles[len(s.Candles)-1]
}
