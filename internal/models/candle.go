// Package models provides the data structures shared by the fetch, analysis and export stages.
// This package contains the candle and price series models plus the anomaly types produced
// by sequence validation.
package models

import (
	"fmt"
	"math"
	"time"
)

// Candle represents a single daily OHLC price record for a trading pair.
type Candle struct {
	Date  time.Time `json:"date"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// ValidationError represents a candle validation error with specific field context.
// It provides structured error information including the field name that failed
// validation and a descriptive error message.
type ValidationError struct {
	Field   string // Field is the name of the field that failed validation
	Message string // Message is a descriptive error message explaining the validation failure
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// Validate checks that the candle has a date, finite prices, and consistent OHLC
// relationships (high >= max(open, close), low <= min(open, close), high >= low).
// Returns a ValidationError describing the first violation found.
func (c *Candle) Validate() error {
	if c.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "date cannot be null or zero"}
	}

	prices := []struct {
		field string
		value float64
	}{
		{"open", c.Open},
		{"high", c.High},
		{"low", c.Low},
		{"close", c.Close},
	}
	for _, p := range prices {
		if math.IsNaN(p.value) || math.IsInf(p.value, 0) {
			return &ValidationError{Field: p.field, Message: fmt.Sprintf("%s price must be finite", p.field)}
		}
	}

	if maxOpenClose := math.Max(c.Open, c.Close); c.High < maxOpenClose {
		return &ValidationError{
			Field:   "high",
			Message: fmt.Sprintf("high price (%g) must be greater than or equal to max(open, close) (%g)", c.High, maxOpenClose),
		}
	}

	if minOpenClose := math.Min(c.Open, c.Close); c.Low > minOpenClose {
		return &ValidationError{
			Field:   "low",
			Message: fmt.Sprintf("low price (%g) must be less than or equal to min(open, close) (%g)", c.Low, minOpenClose),
		}
	}

	return nil
}

// String returns a human-readable representation of the candle.
func (c *Candle) String() string {
	return fmt.Sprintf("Candle{Date: %s, O: %g, H: %g, L: %g, C: %g}",
		c.Date.Format(time.RFC3339), c.Open, c.High, c.Low, c.Close)
}
