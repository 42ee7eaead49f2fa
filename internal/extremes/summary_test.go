package extremes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnayoung/go-ohlcv-extremes/internal/models"
)

func TestSummarize(t *testing.T) {
	highs := []float64{10, 12, 12.5, 13, 9}
	lows := []float64{8, 9, 7, 10, 6}
	closes := []float64{9, 11, 8, 12, 7}

	table, err := Calculate(buildSeries(highs, lows, closes), Windows{LookBack: 3, LookForward: 2})
	require.NoError(t, err)

	s := Summarize(table)
	assert.Equal(t, 5, s.Rows)
	assert.Equal(t, 3, s.TrailingRows)
	assert.Equal(t, 3, s.ForwardRows)

	// rows 2..4 against trailing highs 12.5, 13, 13
	wantHighLast := (-36.0 + (12.0-13)/13*100 + (7.0-13)/13*100) / 3
	require.True(t, s.MeanPctFromHighLast.Valid)
	assert.InDelta(t, wantHighLast, s.MeanPctFromHighLast.Float64, 1e-9)

	// rows 0..2 against forward lows 7, 7, 6
	wantLowNext := ((9.0-7)/7*100 + (11.0-7)/7*100 + (8.0-6)/6*100) / 3
	require.True(t, s.MeanPctFromLowNext.Valid)
	assert.InDelta(t, wantLowNext, s.MeanPctFromLowNext.Float64, 1e-9)

	attrs := s.LogAttrs()
	assert.Len(t, attrs, 14)
	assert.Equal(t, "rows", attrs[0])
}

func TestSummarize_NothingDefined(t *testing.T) {
	table, err := Calculate(models.NewPriceSeries("BTC/USDT", "BTCUSDT"), DefaultWindows)
	require.NoError(t, err)

	s := Summarize(table)
	assert.Equal(t, 0, s.Rows)
	assert.False(t, s.MeanPctFromHighLast.Valid)
	assert.False(t, s.MeanPctFromLowLast.Valid)
	assert.False(t, s.MeanPctFromHighNext.Valid)
	assert.False(t, s.MeanPctFromLowNext.Valid)
}
