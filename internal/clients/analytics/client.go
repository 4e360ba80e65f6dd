package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/JastejS28/AlphaSharp/internal/config"
)

// ErrUpstreamTimeout marks requests that exceeded the per-endpoint deadline.
// Handlers translate it into a 504 with a cold-start hint when the upstream
// has not warmed up yet.
var ErrUpstreamTimeout = errors.New("analytics upstream timed out")

// UpstreamError carries a non-2xx answer from the analytics service.
type UpstreamError struct {
	StatusCode int
	Detail     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("analytics upstream returned status %d: %s", e.StatusCode, e.Detail)
}

// Client talks to the Python analytics service. Responses are passed through
// as raw JSON; the gateway caches and annotates them without reshaping.
// The client never retries: retry pressure against a cold upstream only
// delays the warm-up.
type Client struct {
	baseURL         string
	client          *http.Client
	defaultTimeout  time.Duration
	forecastTimeout time.Duration
	historyTimeout  time.Duration
	tracker         *HealthTracker
	log             zerolog.Logger
}

// NewClient creates an analytics client. tracker may be nil when outcome
// tracking is not wanted (tests mostly).
func NewClient(cfg config.AnalyticsConfig, tracker *HealthTracker, log zerolog.Logger) *Client {
	return &Client{
		baseURL:         cfg.BaseURL,
		client:          &http.Client{},
		defaultTimeout:  cfg.Timeout,
		forecastTimeout: cfg.ForecastTimeout,
		historyTimeout:  cfg.HistoryTimeout,
		tracker:         tracker,
		log:             log.With().Str("client", "analytics").Logger(),
	}
}

// HealthCheck pings the upstream root endpoint.
func (c *Client) HealthCheck(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/", nil, c.defaultTimeout)
}

// GetStockAnalysis fetches the full analysis for one ticker.
func (c *Client) GetStockAnalysis(ctx context.Context, ticker string) (json.RawMessage, error) {
	return c.get(ctx, "/api/stock/"+url.PathEscape(ticker)+"/analysis", nil, c.defaultTimeout)
}

// GetStockNews fetches recent news items for one ticker.
func (c *Client) GetStockNews(ctx context.Context, ticker string, maxItems int) (json.RawMessage, error) {
	params := url.Values{}
	if maxItems > 0 {
		params.Set("max_items", strconv.Itoa(maxItems))
	}
	return c.get(ctx, "/api/stock/"+url.PathEscape(ticker)+"/news", params, c.defaultTimeout)
}

// GetMarketCondition fetches the current market regime classification.
func (c *Client) GetMarketCondition(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/api/market/condition", nil, c.defaultTimeout)
}

// GetRegimeForecast runs the Monte Carlo regime forecast. The simulation can
// take minutes, hence the dedicated timeout.
func (c *Client) GetRegimeForecast(ctx context.Context, days, simulations int, includePaths bool) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("days", strconv.Itoa(days))
	params.Set("simulations", strconv.Itoa(simulations))
	params.Set("include_paths", strconv.FormatBool(includePaths))
	return c.get(ctx, "/api/market/forecast", params, c.forecastTimeout)
}

// GetShortTermPrediction fetches the short-horizon regime prediction.
func (c *Client) GetShortTermPrediction(ctx context.Context, days int) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("days", strconv.Itoa(days))
	return c.get(ctx, "/api/market/forecast/short-term", params, c.defaultTimeout)
}

// GetAllRegimes fetches the regime catalog.
func (c *Client) GetAllRegimes(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/api/market/regimes", nil, c.defaultTimeout)
}

// GetRegimeHistory fetches the classified regime timeline.
func (c *Client) GetRegimeHistory(ctx context.Context, daysBack int) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("days", strconv.Itoa(daysBack))
	return c.get(ctx, "/api/market/history", params, c.defaultTimeout)
}

// QueryAgent forwards a natural language question to the upstream agent.
func (c *Client) QueryAgent(ctx context.Context, query, threadID string) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]string{
		"query":     query,
		"thread_id": threadID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode agent query: %w", err)
	}
	return c.post(ctx, "/api/agent/query", body, c.defaultTimeout)
}

// SearchTicker searches tickers and company names.
func (c *Client) SearchTicker(ctx context.Context, query string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("q", query)
	return c.get(ctx, "/api/search", params, c.defaultTimeout)
}

// GetHistoricalPrices fetches OHLCV history for one ticker.
func (c *Client) GetHistoricalPrices(ctx context.Context, ticker, period, interval string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("period", period)
	params.Set("interval", interval)
	return c.get(ctx, "/api/stock/"+url.PathEscape(ticker)+"/history", params, c.historyTimeout)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, timeout time.Duration) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, params, nil, timeout)
}

func (c *Client) post(ctx context.Context, path string, body []byte, timeout time.Duration) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, nil, body, timeout)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte, timeout time.Duration) (json.RawMessage, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %s %s", ErrUpstreamTimeout, timeout, method, path)
		} else {
			err = fmt.Errorf("analytics request failed: %w", err)
		}
		c.recordOutcome(false, err)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("failed to read analytics response: %w", err)
		c.recordOutcome(false, err)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upErr := &UpstreamError{StatusCode: resp.StatusCode, Detail: extractDetail(data)}
		c.recordOutcome(false, upErr)
		return nil, upErr
	}

	c.recordOutcome(true, nil)
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Analytics request completed")

	return data, nil
}

func (c *Client) recordOutcome(success bool, err error) {
	if c.tracker != nil {
		c.tracker.RecordOutcome(success, err)
	}
}

// extractDetail pulls the error message out of a FastAPI-shaped error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	if len(body) > 0 {
		const maxDetail = 256
		if len(body) > maxDetail {
			body = body[:maxDetail]
		}
		return string(body)
	}
	return "no detail provided"
}
