package validator

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johnayoung/go-ohlcv-extremes/internal/models"
)

// SequenceValidator checks row ordering, spacing and OHLC consistency.
type SequenceValidator struct {
	logger *slog.Logger
}

// NewSequenceValidator creates a validator that logs through logger.
func NewSequenceValidator(logger *slog.Logger) *SequenceValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SequenceValidator{logger: logger}
}

// Validate implements SeriesValidator.
func (v *SequenceValidator) Validate(ctx context.Context, series *models.PriceSeries, expectedInterval time.Duration) (*Report, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	start := time.Now()
	report := &Report{}
	if series == nil {
		return report, nil
	}
	report.Symbol = series.Symbol
	report.Rows = series.Len()

	for i := range series.Candles {
		c := &series.Candles[i]

		if err := c.Validate(); err != nil {
			report.Add(logicAnomaly(c, err))
		}

		if i == 0 || expectedInterval <= 0 {
			continue
		}

		prev := series.Candles[i-1].Date
		switch {
		case c.Date.Before(prev):
			report.Add(models.CreateOutOfOrderAnomaly(prev, c.Date))
		case c.Date.Equal(prev):
			report.Add(models.CreateDuplicateAnomaly(c.Date))
		case c.Date.Sub(prev) > expectedInterval:
			report.Add(models.CreateSequenceGapAnomaly(prev.Add(expectedInterval), c.Date, expectedInterval))
		}
	}

	report.Duration = time.Since(start)

	v.logger.Debug("validated price series",
		"symbol", report.Symbol,
		"rows", report.Rows,
		"anomalies", len(report.Anomalies),
		"max_severity", report.MaxSeverity,
		"duration", report.Duration)

	return report, nil
}

func logicAnomaly(c *models.Candle, err error) *models.Anomaly {
	field := "candle"
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		field = ve.Field
	}

	var value float64
	switch field {
	case "open":
		value = c.Open
	case "high":
		value = c.High
	case "low":
		value = c.Low
	case "close":
		value = c.Close
	}

	violating := decimal.Zero
	if !math.IsNaN(value) && !math.IsInf(value, 0) {
		violating = decimal.NewFromFloat(value)
	}

	return models.CreateLogicErrorAnomaly(c.Date, err.Error(), violating)
}
