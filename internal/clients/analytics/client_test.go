package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JastejS28/AlphaSharp/internal/config"
)

func testClientConfig(baseURL string) config.AnalyticsConfig {
	return config.AnalyticsConfig{
		BaseURL:         baseURL,
		Timeout:         2 * time.Second,
		ForecastTimeout: 2 * time.Second,
		HistoryTimeout:  2 * time.Second,
	}
}

func TestGetStockAnalysis(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stock/AAPL/analysis", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ticker":"AAPL","score":0.82}`))
	}))
	defer srv.Close()

	tracker := NewHealthTracker(nil, zerolog.Nop())
	client := NewClient(testClientConfig(srv.URL), tracker, zerolog.Nop())

	data, err := client.GetStockAnalysis(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ticker":"AAPL","score":0.82}`, string(data))
	assert.True(t, tracker.IsWarm())
}

func TestGetStockNewsQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stock/TSLA/news", r.URL.Path)
		assert.Equal(t, "8", r.URL.Query().Get("max_items"))
		w.Write([]byte(`{"news":[]}`))
	}))
	defer srv.Close()

	client := NewClient(testClientConfig(srv.URL), nil, zerolog.Nop())
	_, err := client.GetStockNews(context.Background(), "TSLA", 8)
	require.NoError(t, err)
}

func TestGetRegimeForecastParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/market/forecast", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "60", q.Get("days"))
		assert.Equal(t, "2000", q.Get("simulations"))
		assert.Equal(t, "false", q.Get("include_paths"))
		w.Write([]byte(`{"forecast":[]}`))
	}))
	defer srv.Close()

	client := NewClient(testClientConfig(srv.URL), nil, zerolog.Nop())
	_, err := client.GetRegimeForecast(context.Background(), 60, 2000, false)
	require.NoError(t, err)
}

func TestQueryAgentPostsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/agent/query", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "is AAPL a buy?", body["query"])
		assert.Equal(t, "thread-1", body["thread_id"])

		w.Write([]byte(`{"answer":"maybe"}`))
	}))
	defer srv.Close()

	client := NewClient(testClientConfig(srv.URL), nil, zerolog.Nop())
	data, err := client.QueryAgent(context.Background(), "is AAPL a buy?", "thread-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"maybe"}`, string(data))
}

func TestUpstreamErrorCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"ticker not found"}`))
	}))
	defer srv.Close()

	tracker := NewHealthTracker(nil, zerolog.Nop())
	client := NewClient(testClientConfig(srv.URL), tracker, zerolog.Nop())

	_, err := client.GetStockAnalysis(context.Background(), "NOPE")
	require.Error(t, err)

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusNotFound, upErr.StatusCode)
	assert.Equal(t, "ticker not found", upErr.Detail)
	assert.Equal(t, 1, tracker.Status().ConsecutiveFailures)
}

func TestUpstreamErrorNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	client := NewClient(testClientConfig(srv.URL), nil, zerolog.Nop())
	_, err := client.GetMarketCondition(context.Background())

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, "upstream exploded", upErr.Detail)
}

func TestTimeoutReturnsTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := testClientConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	tracker := NewHealthTracker(nil, zerolog.Nop())
	client := NewClient(cfg, tracker, zerolog.Nop())

	_, err := client.HealthCheck(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamTimeout))
	assert.False(t, tracker.IsWarm())
	assert.Equal(t, 1, tracker.Status().ConsecutiveFailures)
}

func TestHistoricalPricesParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stock/MSFT/history", r.URL.Path)
		assert.Equal(t, "3mo", r.URL.Query().Get("period"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		w.Write([]byte(`{"prices":[]}`))
	}))
	defer srv.Close()

	client := NewClient(testClientConfig(srv.URL), nil, zerolog.Nop())
	_, err := client.GetHistoricalPrices(context.Background(), "MSFT", "3mo", "1d")
	require.NoError(t, err)
}
