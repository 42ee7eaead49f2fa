package exchange

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/johnayoung/go-ohlcv-extremes/internal/config"
	apperrors "github.com/johnayoung/go-ohlcv-extremes/internal/errors"
)

var klineStart = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createMockServer(responses map[string]func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, exists := responses[r.URL.Path]; exists {
			handler(w, r)
		} else {
			http.NotFound(w, r)
		}
	}))
}

func newTestAdapter(serverURL string) *BinanceAdapter {
	adapter := NewBinanceAdapterWithLogger(createTestLogger())
	adapter.baseURL = serverURL
	adapter.rateLimiter = rate.NewLimiter(rate.Inf, 1)
	return adapter
}

// klineRow renders day i of a synthetic daily series in Binance wire format.
func klineRow(i int) []any {
	open := klineStart.AddDate(0, 0, i)
	base := 100 + float64(i)
	return []any{
		open.UnixMilli(),
		strconv.FormatFloat(base, 'f', 8, 64),
		strconv.FormatFloat(base+5, 'f', 8, 64),
		strconv.FormatFloat(base-5, 'f', 8, 64),
		strconv.FormatFloat(base+1, 'f', 8, 64),
		"1234.50000000",
		open.Add(24*time.Hour - time.Millisecond).UnixMilli(),
		"123450.00",
		42,
		"600.0",
		"60000.0",
		"0",
	}
}

// klinesHandler serves totalDays synthetic daily klines honouring startTime, endTime and limit.
func klinesHandler(t *testing.T, totalDays int, calls *int32) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		q := r.URL.Query()
		assert.Equal(t, "1d", q.Get("interval"))

		startMs, err := strconv.ParseInt(q.Get("startTime"), 10, 64)
		require.NoError(t, err)
		endMs, err := strconv.ParseInt(q.Get("endTime"), 10, 64)
		require.NoError(t, err)
		limit, err := strconv.Atoi(q.Get("limit"))
		require.NoError(t, err)

		rows := make([][]any, 0)
		for i := 0; i < totalDays && len(rows) < limit; i++ {
			openMs := klineStart.AddDate(0, 0, i).UnixMilli()
			if openMs >= startMs && openMs <= endMs {
				rows = append(rows, klineRow(i))
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set(usedWeightHeader, strconv.Itoa(int(atomic.LoadInt32(calls))*2))
		require.NoError(t, json.NewEncoder(w).Encode(rows))
	}
}

func TestNewBinanceAdapter(t *testing.T) {
	t.Run("creates adapter with default configuration", func(t *testing.T) {
		adapter := NewBinanceAdapter()

		assert.NotNil(t, adapter.httpClient)
		assert.NotNil(t, adapter.rateLimiter)
		assert.Equal(t, binanceBaseURL, adapter.baseURL)
		assert.Equal(t, requestTimeout, adapter.httpClient.Timeout)
		assert.Empty(t, adapter.apiKey)
	})

	t.Run("creates adapter from config", func(t *testing.T) {
		adapter := NewBinanceAdapterFromConfig(config.ExchangeConfig{
			BaseURL:   "http://localhost:1234",
			APIKey:    "key",
			RateLimit: 3,
			Timeout:   "7s",
		}, createTestLogger())

		assert.Equal(t, "http://localhost:1234", adapter.baseURL)
		assert.Equal(t, "key", adapter.apiKey)
		assert.Equal(t, 7*time.Second, adapter.httpClient.Timeout)

		limits := adapter.GetLimits()
		assert.Equal(t, 3, limits.RequestsPerSecond)
		assert.Positive(t, limits.BurstSize)
		assert.Positive(t, limits.WindowDuration)
	})
}

func TestBinanceAdapter_FetchCandles(t *testing.T) {
	ctx := context.Background()

	t.Run("single page", func(t *testing.T) {
		var calls int32
		server := createMockServer(map[string]func(w http.ResponseWriter, r *http.Request){
			klinesEndpoint: klinesHandler(t, 10, &calls),
		})
		defer server.Close()

		resp, err := newTestAdapter(server.URL).FetchCandles(ctx, FetchRequest{
			Pair:     "btc/usdt",
			Start:    klineStart,
			End:      klineStart.AddDate(0, 0, 30),
			Interval: "1d",
		})
		require.NoError(t, err)

		assert.Equal(t, "BTCUSDT", resp.Symbol)
		assert.Equal(t, 1, resp.Pages)
		assert.Equal(t, 2, resp.RateLimit.UsedWeight)
		require.Len(t, resp.Candles, 10)

		first := resp.Candles[0]
		assert.Equal(t, klineStart, first.Date)
		assert.Equal(t, 100.0, first.Open)
		assert.Equal(t, 105.0, first.High)
		assert.Equal(t, 95.0, first.Low)
		assert.Equal(t, 101.0, first.Close)
		assert.Equal(t, time.UTC, first.Date.Location())
	})

	t.Run("pages through long ranges", func(t *testing.T) {
		var calls int32
		server := createMockServer(map[string]func(w http.ResponseWriter, r *http.Request){
			klinesEndpoint: klinesHandler(t, 2500, &calls),
		})
		defer server.Close()

		resp, err := newTestAdapter(server.URL).FetchCandles(ctx, FetchRequest{
			Pair:     "ETHUSDT",
			Start:    klineStart,
			End:      klineStart.AddDate(0, 0, 3000),
			Interval: "1d",
		})
		require.NoError(t, err)

		assert.Equal(t, 3, resp.Pages)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
		require.Len(t, resp.Candles, 2500)
		for i := 1; i < len(resp.Candles); i++ {
			assert.Equal(t, 24*time.Hour, resp.Candles[i].Date.Sub(resp.Candles[i-1].Date))
		}
	})

	t.Run("stops at end of range", func(t *testing.T) {
		var calls int32
		server := createMockServer(map[string]func(w http.ResponseWriter, r *http.Request){
			klinesEndpoint: klinesHandler(t, 100, &calls),
		})
		defer server.Close()

		resp, err := newTestAdapter(server.URL).FetchCandles(ctx, FetchRequest{
			Pair:     "BTCUSDT",
			Start:    klineStart.AddDate(0, 0, 5),
			End:      klineStart.AddDate(0, 0, 12),
			Interval: "1d",
		})
		require.NoError(t, err)
		require.Len(t, resp.Candles, 7)
		assert.Equal(t, klineStart.AddDate(0, 0, 5), resp.Candles[0].Date)
		assert.Equal(t, klineStart.AddDate(0, 0, 11), resp.Candles[6].Date)
	})

	t.Run("respects limit", func(t *testing.T) {
		var calls int32
		server := createMockServer(map[string]func(w http.ResponseWriter, r *http.Request){
			klinesEndpoint: klinesHandler(t, 100, &calls),
		})
		defer server.Close()

		resp, err := newTestAdapter(server.URL).FetchCandles(ctx, FetchRequest{
			Pair:     "BTCUSDT",
			Start:    klineStart,
			End:      klineStart.AddDate(0, 0, 100),
			Interval: "1d",
			Limit:    15,
		})
		require.NoError(t, err)
		assert.Len(t, resp.Candles, 15)
		assert.Equal(t, 1, resp.Pages)
	})

	t.Run("sends api key header", func(t *testing.T) {
		var gotKey string
		server := createMockServer(map[string]func(w http.ResponseWriter, r *http.Request){
			klinesEndpoint: func(w http.ResponseWriter, r *http.Request) {
				gotKey = r.Header.Get(apiKeyHeader)
				assert.Equal(t, "BTCUSD", r.URL.Query().Get("symbol"))
				w.Write([]byte("[]"))
			},
		})
		defer server.Close()

		adapter := newTestAdapter(server.URL)
		adapter.apiKey = "my-key"

		resp, err := adapter.FetchCandles(ctx, FetchRequest{
			Pair:     "BTC/USD",
			Start:    klineStart,
			End:      klineStart.AddDate(0, 0, 1),
			Interval: "1d",
		})
		require.NoError(t, err)
		assert.Empty(t, resp.Candles)
		assert.Equal(t, "my-key", gotKey)
	})

	t.Run("invalid request", func(t *testing.T) {
		adapter := newTestAdapter("http://127.0.0.1:1")

		_, err := adapter.FetchCandles(ctx, FetchRequest{
			Pair:     "BTCUSDT",
			Start:    klineStart,
			End:      klineStart,
			Interval: "1d",
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidInputError(err))

		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "end", validationErr.Field)
	})
}

func TestBinanceAdapter_FetchErrors(t *testing.T) {
	req := FetchRequest{
		Pair:     "NOPE/USDT",
		Start:    klineStart,
		End:      klineStart.AddDate(0, 0, 10),
		Interval: "1d",
	}

	tests := []struct {
		name     string
		status   int
		body     string
		reason   apperrors.Reason
		notFound bool
	}{
		{"unknown symbol", http.StatusBadRequest, `{"code":-1121,"msg":"Invalid symbol."}`, apperrors.ReasonBadRequest, true},
		{"bad api key", http.StatusUnauthorized, `{"code":-2015,"msg":"Invalid API-key, IP, or permissions for action."}`, apperrors.ReasonAuthentication, false},
		{"api key format", http.StatusBadRequest, `{"code":-2014,"msg":"API-key format invalid."}`, apperrors.ReasonAuthentication, false},
		{"rate limited", http.StatusTooManyRequests, `{"code":-1003,"msg":"Too many requests."}`, apperrors.ReasonRateLimit, false},
		{"ip banned", http.StatusTeapot, `{"code":-1003,"msg":"Way too many requests."}`, apperrors.ReasonRateLimit, false},
		{"server error", http.StatusBadGateway, `<html>bad gateway</html>`, apperrors.ReasonServerError, false},
		{"malformed body", http.StatusOK, `[[1640995200000, "abc"`, apperrors.ReasonDecode, false},
		{"bad price", http.StatusOK, `[[1640995200000, "1.0", "x", "1.0", "1.0"]]`, apperrors.ReasonDecode, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := createMockServer(map[string]func(w http.ResponseWriter, r *http.Request){
				klinesEndpoint: func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					w.Write([]byte(tt.body))
				},
			})
			defer server.Close()

			_, err := newTestAdapter(server.URL).FetchCandles(context.Background(), req)
			require.Error(t, err)
			assert.True(t, apperrors.IsFetchError(err))
			assert.Equal(t, tt.reason, apperrors.ReasonOf(err))
			assert.Equal(t, tt.notFound, IsSymbolNotFound(err))
		})
	}

	t.Run("network failure", func(t *testing.T) {
		server := createMockServer(nil)
		serverURL := server.URL
		server.Close()

		_, err := newTestAdapter(serverURL).FetchCandles(context.Background(), req)
		require.Error(t, err)
		assert.True(t, apperrors.IsFetchError(err))
		assert.Equal(t, apperrors.ReasonNetwork, apperrors.ReasonOf(err))
	})

	t.Run("canceled context", func(t *testing.T) {
		server := createMockServer(nil)
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestAdapter(server.URL).FetchCandles(ctx, req)
		require.Error(t, err)
		assert.True(t, apperrors.IsFetchError(err))
		assert.Equal(t, apperrors.ReasonCanceled, apperrors.ReasonOf(err))
	})
}

func TestBinanceAdapter_HealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		server := createMockServer(map[string]func(w http.ResponseWriter, r *http.Request){
			pingEndpoint: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("{}"))
			},
		})
		defer server.Close()

		assert.NoError(t, newTestAdapter(server.URL).HealthCheck(context.Background()))
	})

	t.Run("unhealthy", func(t *testing.T) {
		server := createMockServer(map[string]func(w http.ResponseWriter, r *http.Request){
			pingEndpoint: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		})
		defer server.Close()

		err := newTestAdapter(server.URL).HealthCheck(context.Background())
		require.Error(t, err)
		assert.Equal(t, apperrors.ReasonServerError, apperrors.ReasonOf(err))
	})
}

func TestParseKline(t *testing.T) {
	t.Run("valid row", func(t *testing.T) {
		row := []json.Number{"1640995200000", "46216.93", "47954.63", "46208.37", "47722.65", "19604.46"}
		candle, err := parseKline(row)
		require.NoError(t, err)

		assert.Equal(t, klineStart, candle.Date)
		assert.Equal(t, 46216.93, candle.Open)
		assert.Equal(t, 47954.63, candle.High)
		assert.Equal(t, 46208.37, candle.Low)
		assert.Equal(t, 47722.65, candle.Close)
	})

	t.Run("short row", func(t *testing.T) {
		_, err := parseKline([]json.Number{"1640995200000", "1"})
		assert.Error(t, err)
	})

	t.Run("fractional open time", func(t *testing.T) {
		_, err := parseKline([]json.Number{"1.5", "1", "1", "1", "1"})
		assert.Error(t, err)
	})
}

func TestAPIError(t *testing.T) {
	err := newAPIError(http.StatusBadRequest, []byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	assert.Equal(t, "binance status 400 (code -1121): Invalid symbol.", err.Error())

	err = newAPIError(http.StatusServiceUnavailable, nil)
	assert.Equal(t, "binance status 503: Service Unavailable", err.Error())
}
