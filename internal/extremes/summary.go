package extremes

import (
	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/stat"
)

// Summary condenses a Table into a few numbers for the end-of-run log line.
type Summary struct {
	Rows         int `json:"rows"`
	TrailingRows int `json:"trailing_rows"` // rows with a full look-back window
	ForwardRows  int `json:"forward_rows"`  // rows with a full look-forward window

	MeanPctFromHighLast null.Float `json:"mean_pct_from_high_last"`
	MeanPctFromLowLast  null.Float `json:"mean_pct_from_low_last"`
	MeanPctFromHighNext null.Float `json:"mean_pct_from_high_next"`
	MeanPctFromLowNext  null.Float `json:"mean_pct_from_low_next"`
}

// Summarize counts defined rows and averages each percentage column over
// the rows where it is defined.
func Summarize(t *Table) Summary {
	s := Summary{Rows: t.Len()}

	var highLast, lowLast, highNext, lowNext []float64
	for _, r := range t.Rows {
		if r.HighLast.Valid {
			s.TrailingRows++
		}
		if r.HighNext.Valid {
			s.ForwardRows++
		}
		highLast = appendValid(highLast, r.PctFromHighLast)
		lowLast = appendValid(lowLast, r.PctFromLowLast)
		highNext = appendValid(highNext, r.PctFromHighNext)
		lowNext = appendValid(lowNext, r.PctFromLowNext)
	}

	s.MeanPctFromHighLast = mean(highLast)
	s.MeanPctFromLowLast = mean(lowLast)
	s.MeanPctFromHighNext = mean(highNext)
	s.MeanPctFromLowNext = mean(lowNext)
	return s
}

// LogAttrs flattens the summary into slog key/value pairs.
func (s Summary) LogAttrs() []any {
	return []any{
		"rows", s.Rows,
		"trailing_rows", s.TrailingRows,
		"forward_rows", s.ForwardRows,
		"mean_pct_from_high_last", s.MeanPctFromHighLast.Ptr(),
		"mean_pct_from_low_last", s.MeanPctFromLowLast.Ptr(),
		"mean_pct_from_high_next", s.MeanPctFromHighNext.Ptr(),
		"mean_pct_from_low_next", s.MeanPctFromLowNext.Ptr(),
	}
}

func appendValid(dst []float64, v null.Float) []float64 {
	if v.Valid {
		dst = append(dst, v.Float64)
	}
	return dst
}

func mean(values []float64) null.Float {
	if len(values) == 0 {
		return null.Float{}
	}
	return null.FloatFrom(stat.Mean(values, nil))
}
