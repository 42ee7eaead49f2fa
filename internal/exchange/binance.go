package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/johnayoung/go-ohlcv-extremes/internal/config"
	apperrors "github.com/johnayoung/go-ohlcv-extremes/internal/errors"
	"github.com/johnayoung/go-ohlcv-extremes/internal/models"
)

const (
	// Binance spot REST API base URL
	binanceBaseURL = "https://api.binance.com"

	// API endpoints
	klinesEndpoint = "/api/v3/klines"
	pingEndpoint   = "/api/v3/ping"

	// Headers
	apiKeyHeader     = "X-MBX-APIKEY"
	usedWeightHeader = "X-MBX-USED-WEIGHT-1M"

	// Rate limiting configuration
	maxRequestsPerSecond = 10
	rateLimitBurst       = 1
	rateLimitWindow      = time.Second

	// Request configuration
	maxKlinesPerRequest = 1000
	requestTimeout      = 30 * time.Second

	// Health check configuration
	healthCheckTimeout = 5 * time.Second
)

// Binance error codes that map to an authentication failure
var binanceAuthCodes = map[int]bool{
	-1022: true, // invalid signature
	-2014: true, // API-key format invalid
	-2015: true, // invalid API-key, IP, or permissions
}

// BinanceAdapter implements ExchangeAdapter against the Binance spot klines API.
// Requests are paced by a token bucket and never retried.
type BinanceAdapter struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	apiKey      string
	rps         int
	logger      *slog.Logger
}

// NewBinanceAdapter creates a Binance adapter with default settings.
func NewBinanceAdapter() *BinanceAdapter {
	return &BinanceAdapter{
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		rateLimiter: rate.NewLimiter(rate.Limit(maxRequestsPerSecond), rateLimitBurst),
		baseURL:     binanceBaseURL,
		rps:         maxRequestsPerSecond,
		logger:      slog.Default(),
	}
}

// NewBinanceAdapterWithLogger creates a Binance adapter with a custom logger.
func NewBinanceAdapterWithLogger(logger *slog.Logger) *BinanceAdapter {
	adapter := NewBinanceAdapter()
	if logger != nil {
		adapter.logger = logger
	}
	return adapter
}

// NewBinanceAdapterFromConfig creates a Binance adapter from exchange configuration.
func NewBinanceAdapterFromConfig(cfg config.ExchangeConfig, logger *slog.Logger) *BinanceAdapter {
	adapter := NewBinanceAdapterWithLogger(logger)
	if cfg.BaseURL != "" {
		adapter.baseURL = cfg.BaseURL
	}
	adapter.apiKey = cfg.APIKey
	adapter.httpClient.Timeout = cfg.HTTPTimeout()
	if cfg.RateLimit > 0 {
		adapter.rps = cfg.RateLimit
		adapter.rateLimiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), rateLimitBurst)
	}
	return adapter
}

// FetchCandles implements the CandleFetcher interface.
func (b *BinanceAdapter) FetchCandles(ctx context.Context, req FetchRequest) (*FetchResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.NewInvalidInputError("fetch_candles", fmt.Errorf("invalid request: %w", err))
	}

	symbol, err := NormalizePair(req.Pair)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("fetching klines from Binance",
		"symbol", symbol,
		"start", req.Start,
		"end", req.End,
		"span", req.Duration(),
		"interval", req.Interval)

	response := &FetchResponse{
		Symbol:  symbol,
		Candles: make([]models.Candle, 0),
	}

	cursor := req.Start
	for cursor.Before(req.End) {
		pageLimit := maxKlinesPerRequest
		if req.Limit > 0 {
			remaining := req.Limit - len(response.Candles)
			if remaining <= 0 {
				break
			}
			if remaining < pageLimit {
				pageLimit = remaining
			}
		}

		if err := b.WaitForLimit(ctx); err != nil {
			return nil, apperrors.NewFetchError("fetch_klines", fmt.Errorf("rate limit wait failed: %w", err))
		}

		rows, status, err := b.fetchKlinePage(ctx, symbol, req.Interval, cursor, req.End, pageLimit)
		if err != nil {
			return nil, err
		}
		response.Pages++
		response.RateLimit = status

		var lastOpen time.Time
		for i, row := range rows {
			candle, err := parseKline(row)
			if err != nil {
				return nil, apperrors.NewFetchErrorWithReason("fetch_klines", apperrors.ReasonDecode,
					fmt.Errorf("failed to parse kline %d for %s: %w", i, symbol, err))
			}
			lastOpen = candle.Date
			if !candle.Date.Before(req.End) {
				continue
			}
			response.Candles = append(response.Candles, candle)
		}

		b.logger.Debug("fetched kline page",
			"symbol", symbol,
			"page", response.Pages,
			"rows", len(rows),
			"used_weight", status.UsedWeight)

		if len(rows) < pageLimit || lastOpen.IsZero() {
			break
		}
		cursor = lastOpen.Add(time.Millisecond)
	}

	if req.Limit > 0 && len(response.Candles) > req.Limit {
		response.Candles = response.Candles[:req.Limit]
	}

	b.logger.Debug("successfully fetched klines",
		"symbol", symbol,
		"count", len(response.Candles),
		"pages", response.Pages)

	return response, nil
}

// GetLimits implements the RateLimitInfo interface.
func (b *BinanceAdapter) GetLimits() RateLimit {
	return RateLimit{
		RequestsPerSecond: b.rps,
		BurstSize:         rateLimitBurst,
		WindowDuration:    rateLimitWindow,
	}
}

// WaitForLimit implements the RateLimitInfo interface.
func (b *BinanceAdapter) WaitForLimit(ctx context.Context) error {
	return b.rateLimiter.Wait(ctx)
}

// HealthCheck implements the HealthChecker interface using the ping endpoint.
func (b *BinanceAdapter) HealthCheck(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if _, _, err := b.get(healthCtx, "health_check", b.baseURL+pingEndpoint); err != nil {
		return err
	}

	b.logger.Debug("health check passed")
	return nil
}

// Private helper methods

func (b *BinanceAdapter) fetchKlinePage(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([][]json.Number, RateLimitStatus, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	params.Set("endTime", strconv.FormatInt(end.UnixMilli()-1, 10))
	params.Set("limit", strconv.Itoa(limit))

	body, status, err := b.get(ctx, "fetch_klines", b.baseURL+klinesEndpoint+"?"+params.Encode())
	if err != nil {
		return nil, status, err
	}

	var rows [][]json.Number
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, status, apperrors.NewFetchErrorWithReason("fetch_klines", apperrors.ReasonDecode,
			fmt.Errorf("failed to decode klines response: %w", err))
	}

	return rows, status, nil
}

// get performs one GET request and maps any failure to a classified fetch error.
func (b *BinanceAdapter) get(ctx context.Context, op, requestURL string) ([]byte, RateLimitStatus, error) {
	var status RateLimitStatus

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, status, apperrors.NewFetchError(op, fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "go-ohlcv-extremes/1.0")
	if b.apiKey != "" {
		req.Header.Set(apiKeyHeader, b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, status, apperrors.NewFetchError(op, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	status = parseRateLimitStatus(resp.Header)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, status, apperrors.NewFetchError(op, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode >= 400 {
		return nil, status, apperrors.NewFetchErrorWithReason(op, classifyStatus(resp.StatusCode, body), newAPIError(resp.StatusCode, body))
	}

	return body, status, nil
}

// APIError is an error response returned by the Binance REST API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"msg"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("binance status %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("binance status %d: %s", e.StatusCode, e.Message)
}

func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(statusCode)
		if len(body) > 0 && len(body) <= 256 {
			apiErr.Message = string(body)
		}
	}
	return apiErr
}

func classifyStatus(statusCode int, body []byte) apperrors.Reason {
	var apiErr APIError
	_ = json.Unmarshal(body, &apiErr)

	switch {
	case statusCode == http.StatusTooManyRequests || statusCode == http.StatusTeapot:
		return apperrors.ReasonRateLimit
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden || binanceAuthCodes[apiErr.Code]:
		return apperrors.ReasonAuthentication
	case statusCode >= 500:
		return apperrors.ReasonServerError
	default:
		return apperrors.ReasonBadRequest
	}
}

func parseRateLimitStatus(h http.Header) RateLimitStatus {
	var status RateLimitStatus
	if v := h.Get(usedWeightHeader); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			status.UsedWeight = n
		}
	}
	if v := h.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			status.RetryAfter = time.Duration(seconds) * time.Second
		}
	}
	return status
}

// parseKline converts one kline row into a candle.
// Row layout: [openTime, open, high, low, close, volume, closeTime, ...].
func parseKline(row []json.Number) (models.Candle, error) {
	if len(row) < 5 {
		return models.Candle{}, fmt.Errorf("kline row has %d fields, want at least 5", len(row))
	}

	openTime, err := row[0].Int64()
	if err != nil {
		return models.Candle{}, fmt.Errorf("invalid open time %q: %w", row[0], err)
	}

	prices := make([]float64, 4)
	for i := range prices {
		// strict decimal syntax; ParseFloat would also accept hex, "Inf" and "NaN"
		d, err := decimal.NewFromString(row[i+1].String())
		if err != nil {
			return models.Candle{}, fmt.Errorf("invalid price %q: %w", row[i+1], err)
		}
		prices[i] = d.InexactFloat64()
	}

	return models.Candle{
		Date:  time.UnixMilli(openTime).UTC(),
		Open:  prices[0],
		High:  prices[1],
		Low:   prices[2],
		Close: prices[3],
	}, nil
}

// IsSymbolNotFound reports whether err is Binance rejecting an unknown symbol.
func IsSymbolNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == -1121
}
