// Package extremes annotates a daily price series with rolling high/low
// extremes over a trailing look-back window and a forward look-ahead window,
// together with the percentage deviation of each close from those extremes.
//
// Values that cannot be computed (window not yet full, no future rows, zero
// reference price) are carried as invalid null values rather than NaN.
package extremes

import (
	"fmt"
	"time"

	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/floats"

	apperrors "github.com/johnayoung/go-ohlcv-extremes/internal/errors"
	"github.com/johnayoung/go-ohlcv-extremes/internal/models"
)

const day = 24 * time.Hour

// Windows holds the look-back and look-forward sizes, in rows.
type Windows struct {
	LookBack    int `json:"lookback"`
	LookForward int `json:"lookforward"`
}

// DefaultWindows is seven days back and five days forward.
var DefaultWindows = Windows{LookBack: 7, LookForward: 5}

// Validate rejects non-positive window sizes.
func (w Windows) Validate() error {
	if w.LookBack <= 0 {
		return apperrors.InvalidInputf("validate_windows", "look-back window must be positive, got %d", w.LookBack)
	}
	if w.LookForward <= 0 {
		return apperrors.InvalidInputf("validate_windows", "look-forward window must be positive, got %d", w.LookForward)
	}
	return nil
}

// Row is one candle with its derived metrics.
type Row struct {
	models.Candle

	HighLast          null.Float `json:"high_last"`
	LowLast           null.Float `json:"low_last"`
	DaysSinceHighLast null.Int   `json:"days_since_high_last"`
	DaysSinceLowLast  null.Int   `json:"days_since_low_last"`
	PctFromHighLast   null.Float `json:"pct_from_high_last"`
	PctFromLowLast    null.Float `json:"pct_from_low_last"`

	HighNext        null.Float `json:"high_next"`
	LowNext         null.Float `json:"low_next"`
	PctFromHighNext null.Float `json:"pct_from_high_next"`
	PctFromLowNext  null.Float `json:"pct_from_low_next"`
}

// Table is the annotated series ready for export.
type Table struct {
	Pair    string  `json:"pair"`
	Symbol  string  `json:"symbol"`
	Windows Windows `json:"windows"`
	Rows    []Row   `json:"rows"`
}

// Calculate derives every metric column for series.
//
// Rows are assumed to be one per calendar day in ascending order; the
// days-since columns count calendar days between row dates, so gaps in the
// series show up as larger counts rather than being corrected.
func Calculate(series *models.PriceSeries, w Windows) (*Table, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if series == nil {
		return nil, apperrors.InvalidInputf("calculate", "price series is nil")
	}

	n := series.Len()
	highs := series.Highs()
	lows := series.Lows()
	closes := series.Closes()

	table := &Table{
		Pair:    series.Pair,
		Symbol:  series.Symbol,
		Windows: w,
		Rows:    make([]Row, n),
	}

	var (
		lastHighDate, lastLowDate time.Time
		seenHigh, seenLow         bool
	)

	for i := 0; i < n; i++ {
		row := &table.Rows[i]
		row.Candle = series.Candles[i]

		// Trailing window [i-W+1, i]
		if i >= w.LookBack-1 {
			window := i - w.LookBack + 1
			row.HighLast = null.FloatFrom(floats.Max(highs[window : i+1]))
			row.LowLast = null.FloatFrom(floats.Min(lows[window : i+1]))
		}

		if row.HighLast.Valid && highs[i] == row.HighLast.Float64 {
			lastHighDate, seenHigh = row.Date, true
		}
		if row.LowLast.Valid && lows[i] == row.LowLast.Float64 {
			lastLowDate, seenLow = row.Date, true
		}
		if seenHigh {
			row.DaysSinceHighLast = null.IntFrom(daysBetween(lastHighDate, row.Date))
		}
		if seenLow {
			row.DaysSinceLowLast = null.IntFrom(daysBetween(lastLowDate, row.Date))
		}

		// Forward window [i+1, i+F]
		if i+w.LookForward <= n-1 {
			row.HighNext = null.FloatFrom(floats.Max(highs[i+1 : i+w.LookForward+1]))
			row.LowNext = null.FloatFrom(floats.Min(lows[i+1 : i+w.LookForward+1]))
		}

		row.PctFromHighLast = PercentDiff(closes[i], row.HighLast)
		row.PctFromLowLast = PercentDiff(closes[i], row.LowLast)
		row.PctFromHighNext = PercentDiff(closes[i], row.HighNext)
		row.PctFromLowNext = PercentDiff(closes[i], row.LowNext)
	}

	return table, nil
}

// PercentDiff returns (value - ref) / ref * 100, or an invalid Float when ref
// is missing or zero.
func PercentDiff(value float64, ref null.Float) null.Float {
	if !ref.Valid || ref.Float64 == 0 {
		return null.Float{}
	}
	return null.FloatFrom((value - ref.Float64) / ref.Float64 * 100)
}

// daysBetween counts whole days from since to now.
func daysBetween(since, now time.Time) int64 {
	return int64(now.Sub(since) / day)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Header returns the column names with the window sizes embedded.
func (t *Table) Header() []string {
	back, fwd := t.Windows.LookBack, t.Windows.LookForward
	return []string{
		"Date", "Open", "High", "Low", "Close",
		fmt.Sprintf("High_Last_%d_Days", back),
		fmt.Sprintf("Low_Last_%d_Days", back),
		fmt.Sprintf("Days_Since_High_Last_%d_Days", back),
		fmt.Sprintf("Days_Since_Low_Last_%d_Days", back),
		fmt.Sprintf("%%_Diff_From_High_Last_%d_Days", back),
		fmt.Sprintf("%%_Diff_From_Low_Last_%d_Days", back),
		fmt.Sprintf("High_Next_%d_Days", fwd),
		fmt.Sprintf("Low_Next_%d_Days", fwd),
		fmt.Sprintf("%%_Diff_From_High_Next_%d_Days", fwd),
		fmt.Sprintf("%%_Diff_From_Low_Next_%d_Days", fwd),
	}
}

// Row returns row i as cells in Header order. Undefined values are nil.
func (t *Table) Row(i int) []any {
	r := t.Rows[i]
	return []any{
		r.Date, r.Open, r.High, r.Low, r.Close,
		floatCell(r.HighLast),
		floatCell(r.LowLast),
		intCell(r.DaysSinceHighLast),
		intCell(r.DaysSinceLowLast),
		floatCell(r.PctFromHighLast),
		floatCell(r.PctFromLowLast),
		floatCell(r.HighNext),
		floatCell(r.LowNext),
		floatCell(r.PctFromHighNext),
		floatCell(r.PctFromLowNext),
	}
}

func floatCell(v null.Float) any {
	if !v.Valid {
		return nil
	}
	return v.Float64
}

func intCell(v null.Int) any {
	if !v.Valid {
		return nil
	}
	return v.Int64
}
