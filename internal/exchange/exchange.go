// Package exchange defines the interfaces and helpers used to pull daily
// candlesticks from a market data provider.
//
// The interfaces are kept small so the pipeline can depend on CandleFetcher
// alone while the CLI additionally uses HealthChecker before a run.
package exchange

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/johnayoung/go-ohlcv-extremes/internal/errors"
	"github.com/johnayoung/go-ohlcv-extremes/internal/models"
)

// CandleFetcher retrieves candles from an exchange.
type CandleFetcher interface {
	// FetchCandles retrieves candles for a trading pair over [Start, End).
	//
	// The pair may be given in human form ("BTC/USD"); implementations
	// normalize it to their own symbol convention. Candles are returned
	// oldest first. An empty slice without error means the exchange has no
	// data for the range.
	//
	// Implementations should:
	// - Validate the request parameters
	// - Page through the range until it is exhausted
	// - Pace requests to stay under the exchange rate limit
	// - Fail fast; callers do not expect retries
	FetchCandles(ctx context.Context, req FetchRequest) (*FetchResponse, error)
}

// RateLimitInfo provides rate limiting information and management.
type RateLimitInfo interface {
	// GetLimits returns the client-side pacing configuration.
	GetLimits() RateLimit

	// WaitForLimit blocks until the limiter allows another request or ctx is done.
	WaitForLimit(ctx context.Context) error
}

// HealthChecker provides health monitoring capabilities for exchange connections.
type HealthChecker interface {
	// HealthCheck performs a lightweight reachability check.
	// A nil return indicates the exchange is ready to serve requests.
	HealthCheck(ctx context.Context) error
}

// ExchangeAdapter combines all exchange capabilities into a single interface.
type ExchangeAdapter interface {
	CandleFetcher
	RateLimitInfo
	HealthChecker
}

// FetchRequest specifies parameters for fetching candle data.
type FetchRequest struct {
	// Pair is the trading pair, e.g. "BTC/USDT" or "ETHUSDT"
	Pair string `json:"pair"`

	// Start is the beginning of the time range to fetch (inclusive)
	Start time.Time `json:"start"`

	// End is the end of the time range to fetch (exclusive)
	End time.Time `json:"end"`

	// Interval specifies the candle interval, e.g. "1d"
	Interval string `json:"interval"`

	// Limit caps the total number of candles returned.
	// A value of 0 means everything in the range.
	Limit int `json:"limit,omitempty"`
}

// FetchResponse contains the results of a candle data fetch operation.
type FetchResponse struct {
	// Symbol is the exchange symbol the pair resolved to
	Symbol string `json:"symbol"`

	// Candles contains the data ordered chronologically (oldest first)
	Candles []models.Candle `json:"candles"`

	// Pages is the number of HTTP requests the fetch took
	Pages int `json:"pages"`

	// RateLimit contains the rate limiting status reported by the last response
	RateLimit RateLimitStatus `json:"rate_limit"`
}

// RateLimit defines the client-side pacing configuration for an exchange.
type RateLimit struct {
	RequestsPerSecond int           `json:"requests_per_second"`
	BurstSize         int           `json:"burst_size"`
	WindowDuration    time.Duration `json:"window_duration"`
}

// RateLimitStatus provides rate limiting state reported by the exchange.
type RateLimitStatus struct {
	// UsedWeight is the request weight consumed in the current window
	UsedWeight int `json:"used_weight"`

	// RetryAfter is the wait the exchange asked for, zero when none
	RetryAfter time.Duration `json:"retry_after"`
}

// Validate checks if the FetchRequest has valid parameters.
func (r *FetchRequest) Validate() error {
	if strings.TrimSpace(r.Pair) == "" {
		return &ValidationError{Field: "pair", Message: "trading pair cannot be empty"}
	}

	if r.Interval == "" {
		return &ValidationError{Field: "interval", Message: "interval cannot be empty"}
	}

	if _, ok := intervalDurations[r.Interval]; !ok {
		return &ValidationError{Field: "interval", Message: "unsupported interval " + r.Interval}
	}

	if r.Start.IsZero() {
		return &ValidationError{Field: "start", Message: "start time cannot be zero"}
	}

	if r.End.IsZero() {
		return &ValidationError{Field: "end", Message: "end time cannot be zero"}
	}

	if !r.End.After(r.Start) {
		return &ValidationError{Field: "end", Message: "end time must be after start time"}
	}

	if r.Limit < 0 {
		return &ValidationError{Field: "limit", Message: "limit cannot be negative"}
	}

	return nil
}

// Duration returns the time span of the fetch request.
func (r *FetchRequest) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// ValidationError represents a validation error for exchange types.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "validation error for field " + e.Field + ": " + e.Message
}

var intervalDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// IntervalDuration returns the bucket width of a supported interval.
func IntervalDuration(interval string) (time.Duration, bool) {
	d, ok := intervalDurations[interval]
	return d, ok
}

// NormalizePair converts a human-readable pair into an exchange symbol by
// dropping separators and whitespace and upper-casing the rest:
// "BTC/USD" becomes "BTCUSD" and "eth/usdt" becomes "ETHUSDT".
// The quote asset is passed through as typed.
func NormalizePair(pair string) (string, error) {
	var b strings.Builder
	for _, r := range pair {
		switch r {
		case '/', '-', '_', ' ', '\t', '\n', '\r':
			continue
		}
		b.WriteRune(r)
	}

	symbol := strings.ToUpper(b.String())
	if symbol == "" {
		return "", apperrors.InvalidInputf("normalize_pair", "trading pair %q has no symbol characters", pair)
	}
	return symbol, nil
}

// FetchSeries fetches daily candles for pair from start up to now and
// returns them as a date-ordered series.
func FetchSeries(ctx context.Context, fetcher CandleFetcher, pair string, start, now time.Time) (*models.PriceSeries, error) {
	symbol, err := NormalizePair(pair)
	if err != nil {
		return nil, err
	}

	req := FetchRequest{
		Pair:     pair,
		Start:    start,
		End:      now,
		Interval: models.IntervalDaily,
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.NewInvalidInputError("fetch_series", err)
	}

	resp, err := fetcher.FetchCandles(ctx, req)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindUnknown {
			return nil, apperrors.NewFetchError("fetch_series", err)
		}
		return nil, err
	}

	if resp.Symbol != "" {
		symbol = resp.Symbol
	}

	series := models.NewPriceSeries(pair, symbol)
	series.Append(resp.Candles...)
	series.SortByDate()

	return series, nil
}
