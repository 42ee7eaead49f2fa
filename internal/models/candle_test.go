package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func TestCandle_Validate_ValidData(t *testing.T) {
	tests := []struct {
		name  string
		open  float64
		high  float64
		low   float64
		close float64
	}{
		{name: "valid_bullish_candle", open: 100.00, high: 105.50, low: 99.25, close: 104.00},
		{name: "valid_bearish_candle", open: 100.00, high: 102.00, low: 95.50, close: 96.75},
		{name: "valid_doji_candle", open: 100.00, high: 101.00, low: 99.00, close: 100.00},
		{name: "valid_flat_candle", open: 50, high: 50, low: 50, close: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candle := Candle{Date: testTime, Open: tt.open, High: tt.high, Low: tt.low, Close: tt.close}
			assert.NoError(t, candle.Validate())
		})
	}
}

func TestCandle_Validate_OHLCRelationships(t *testing.T) {
	tests := []struct {
		name        string
		open        float64
		high        float64
		low         float64
		close       float64
		expectError bool
		errorField  string
	}{
		{name: "high_less_than_open", open: 100, high: 99, low: 95, close: 98, expectError: true, errorField: "high"},
		{name: "high_less_than_close", open: 97, high: 98, low: 95, close: 99, expectError: true, errorField: "high"},
		{name: "low_greater_than_open", open: 100, high: 105, low: 101, close: 102, expectError: true, errorField: "low"},
		{name: "low_greater_than_close", open: 104, high: 105, low: 103, close: 102, expectError: true, errorField: "low"},
		{name: "high_equals_close", open: 100, high: 102, low: 99, close: 102},
		{name: "low_equals_open", open: 100, high: 105, low: 100, close: 102},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candle := &Candle{Date: testTime, Open: tt.open, High: tt.high, Low: tt.low, Close: tt.close}

			err := candle.Validate()
			if tt.expectError {
				require.Error(t, err)
				var validationErr *ValidationError
				require.ErrorAs(t, err, &validationErr)
				assert.Equal(t, tt.errorField, validationErr.Field)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCandle_Validate_EdgeCases(t *testing.T) {
	t.Run("zero date", func(t *testing.T) {
		candle := &Candle{Open: 1, High: 1, Low: 1, Close: 1}
		err := candle.Validate()
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "date", validationErr.Field)
	})

	t.Run("nan close", func(t *testing.T) {
		candle := &Candle{Date: testTime, Open: 1, High: 1, Low: 1, Close: math.NaN()}
		err := candle.Validate()
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "close", validationErr.Field)
	})

	t.Run("infinite high", func(t *testing.T) {
		candle := &Candle{Date: testTime, Open: 1, High: math.Inf(1), Low: 1, Close: 1}
		err := candle.Validate()
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "high", validationErr.Field)
	})
}

func TestCandle_String(t *testing.T) {
	candle := Candle{Date: testTime, Open: 1.5, High: 2, Low: 1, Close: 1.75}
	assert.Equal(t, "Candle{Date: 2024-01-01T00:00:00Z, O: 1.5, H: 2, L: 1, C: 1.75}", candle.String())
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{Field: "high", Message: "bad"}
	assert.Equal(t, "validation error for field high: bad", err.Error())
}

func TestPriceSeries_SortByDate(t *testing.T) {
	day := 24 * time.Hour
	series := NewPriceSeries("BTC/USD", "BTCUSD")
	series.Append(
		Candle{Date: testTime.Add(2 * day), Close: 3},
		Candle{Date: testTime, Close: 1},
		Candle{Date: testTime.Add(day), Close: 2},
		Candle{Date: testTime.Add(day), Close: 22},
	)

	series.SortByDate()

	require.Equal(t, 3, series.Len())
	assert.Equal(t, []float64{1, 22, 3}, series.Closes())
	assert.Equal(t, testTime, series.First().Date)
	assert.Equal(t, testTime.Add(2*day), series.Last().Date)
}

func TestPriceSeries_Columns(t *testing.T) {
	series := NewPriceSeries("ETH/USDT", "ETHUSDT")
	series.Append(
		Candle{Date: testTime, Open: 1, High: 4, Low: 0.5, Close: 2},
		Candle{Date: testTime.AddDate(0, 0, 1), Open: 2, High: 5, Low: 1.5, Close: 3},
	)

	assert.Equal(t, IntervalDaily, series.Interval)
	assert.Equal(t, []float64{4, 5}, series.Highs())
	assert.Equal(t, []float64{0.5, 1.5}, series.Lows())
	assert.Equal(t, []float64{2, 3}, series.Closes())
	assert.Equal(t, []time.Time{testTime, testTime.AddDate(0, 0, 1)}, series.Dates())
}

func TestPriceSeries_Empty(t *testing.T) {
	series := NewPriceSeries("BTC/USD", "BTCUSD")
	series.SortByDate()

	assert.Equal(t, 0, series.Len())
	assert.Nil(t, series.First())
	assert.Nil(t, series.Last())
}

func TestShouldEscalateSeverity(t *testing.T) {
	assert.True(t, ShouldEscalateSeverity(SeverityInfo, SeverityWarning))
	assert.True(t, ShouldEscalateSeverity(SeverityError, SeverityCritical))
	assert.False(t, ShouldEscalateSeverity(SeverityError, SeverityWarning))
	assert.False(t, ShouldEscalateSeverity(SeverityWarning, SeverityWarning))
}

func TestCreateSequenceGapAnomaly(t *testing.T) {
	expected := testTime.AddDate(0, 0, 1)
	actual := testTime.AddDate(0, 0, 4)

	anomaly := CreateSequenceGapAnomaly(expected, actual, 24*time.Hour)

	assert.Equal(t, AnomalyTypeSequenceGap, anomaly.Type)
	assert.Equal(t, SeverityWarning, anomaly.Severity)
	assert.Equal(t, int64(3), anomaly.Value.IntPart())
	assert.Equal(t, actual, anomaly.Date)
}
