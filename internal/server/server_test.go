package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/JastejS28/AlphaSharp/internal/cache"
	"github.com/JastejS28/AlphaSharp/internal/clients/analytics"
	"github.com/JastejS28/AlphaSharp/internal/config"
	"github.com/JastejS28/AlphaSharp/internal/events"
	"github.com/JastejS28/AlphaSharp/internal/modules/searchhistory"
	"github.com/JastejS28/AlphaSharp/internal/modules/watchlist"
	"github.com/JastejS28/AlphaSharp/internal/services"
)

const testSchema = `
CREATE TABLE stock_cache (
    ticker     TEXT    NOT NULL,
    endpoint   TEXT    NOT NULL,
    data       TEXT    NOT NULL,
    expires_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (ticker, endpoint)
);
CREATE TABLE market_regime (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    date            INTEGER NOT NULL,
    regime_id       INTEGER NOT NULL DEFAULT 0,
    regime_label    TEXT    NOT NULL DEFAULT 'Unknown',
    spx_price       REAL    NOT NULL DEFAULT 0,
    vix_level       REAL    NOT NULL DEFAULT 0,
    characteristics TEXT    NOT NULL DEFAULT '{}',
    features        TEXT    NOT NULL DEFAULT '{}',
    payload         TEXT    NOT NULL DEFAULT '{}',
    expires_at      INTEGER NOT NULL,
    created_at      INTEGER NOT NULL
);
CREATE TABLE watchlist (
    ticker       TEXT PRIMARY KEY,
    company_name TEXT NOT NULL DEFAULT '',
    notes        TEXT NOT NULL DEFAULT '',
    added_at     INTEGER NOT NULL
);
CREATE TABLE search_history (
    ticker       TEXT PRIMARY KEY,
    company_name TEXT NOT NULL DEFAULT '',
    search_count INTEGER NOT NULL DEFAULT 1,
    searched_at  INTEGER NOT NULL
);
`

// stubUpstream returns the configured payload (or error) from every method
// and counts calls per endpoint.
type stubUpstream struct {
	response json.RawMessage
	err      error
	calls    map[string]int
	lastArgs map[string]interface{}
}

func newStubUpstream(response string) *stubUpstream {
	return &stubUpstream{
		response: json.RawMessage(response),
		calls:    make(map[string]int),
		lastArgs: make(map[string]interface{}),
	}
}

func (u *stubUpstream) record(name string, args interface{}) (json.RawMessage, error) {
	u.calls[name]++
	u.lastArgs[name] = args
	if u.err != nil {
		return nil, u.err
	}
	return u.response, nil
}

func (u *stubUpstream) HealthCheck(ctx context.Context) (json.RawMessage, error) {
	return u.record("health", nil)
}
func (u *stubUpstream) GetStockAnalysis(ctx context.Context, ticker string) (json.RawMessage, error) {
	return u.record("analysis", ticker)
}
func (u *stubUpstream) GetStockNews(ctx context.Context, ticker string, maxItems int) (json.RawMessage, error) {
	return u.record("news", maxItems)
}
func (u *stubUpstream) GetHistoricalPrices(ctx context.Context, ticker, period, interval string) (json.RawMessage, error) {
	return u.record("history", []string{ticker, period, interval})
}
func (u *stubUpstream) GetMarketCondition(ctx context.Context) (json.RawMessage, error) {
	return u.record("condition", nil)
}
func (u *stubUpstream) GetRegimeForecast(ctx context.Context, days, simulations int, includePaths bool) (json.RawMessage, error) {
	return u.record("forecast", []int{days, simulations})
}
func (u *stubUpstream) GetShortTermPrediction(ctx context.Context, days int) (json.RawMessage, error) {
	return u.record("short_term", days)
}
func (u *stubUpstream) GetAllRegimes(ctx context.Context) (json.RawMessage, error) {
	return u.record("regimes", nil)
}
func (u *stubUpstream) GetRegimeHistory(ctx context.Context, daysBack int) (json.RawMessage, error) {
	return u.record("regime_history", daysBack)
}
func (u *stubUpstream) QueryAgent(ctx context.Context, query, threadID string) (json.RawMessage, error) {
	return u.record("agent", []string{query, threadID})
}
func (u *stubUpstream) SearchTicker(ctx context.Context, query string) (json.RawMessage, error) {
	return u.record("search", query)
}

type stubKeepAlive struct {
	triggered int
	err       error
}

func (k *stubKeepAlive) Trigger() error {
	k.triggered++
	return k.err
}

type testHarness struct {
	server    *Server
	upstream  *stubUpstream
	tracker   *analytics.HealthTracker
	keepAlive *stubKeepAlive
	cacheRepo *cache.Repository
	bus       *events.Bus
}

func newTestServer(t *testing.T, upstream *stubUpstream) *testHarness {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Port:    0,
		DevMode: true,
		Cache: config.CacheConfig{
			StockAnalysisTTL: 300 * time.Second,
			MarketNewsTTL:    600 * time.Second,
			PriceHistoryTTL:  time.Hour,
			MarketRegimeTTL:  time.Hour,
			DefaultTTL:       300 * time.Second,
		},
	}

	bus := events.NewBus(zerolog.Nop())
	repo := cache.NewRepository(db)
	tracker := analytics.NewHealthTracker(bus, zerolog.Nop())
	keepAlive := &stubKeepAlive{}

	srv := New(Config{
		Cfg:        cfg,
		Log:        zerolog.Nop(),
		Cache:      services.NewCacheService(repo, cfg.Cache, bus, zerolog.Nop()),
		CacheStats: repo,
		Upstream:   upstream,
		Tracker:    tracker,
		Watchlist:  watchlist.NewRepository(db, zerolog.Nop()),
		History:    searchhistory.NewRepository(db, zerolog.Nop()),
		KeepAlive:  keepAlive,
		Bus:        bus,
	})

	return &testHarness{
		server:    srv,
		upstream:  upstream,
		tracker:   tracker,
		keepAlive: keepAlive,
		cacheRepo: repo,
		bus:       bus,
	}
}

func (h *testHarness) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	h.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (bool, string, map[string]interface{}) {
	t.Helper()

	var envelope struct {
		Success bool                   `json:"success"`
		Message string                 `json:"message"`
		Data    map[string]interface{} `json:"data"`
		Error   string                 `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))

	if envelope.Success {
		return true, envelope.Message, envelope.Data
	}
	return false, envelope.Error, envelope.Data
}

var errUpstream502 = &analytics.UpstreamError{StatusCode: 500, Detail: "model crashed"}
var errUpstream404 = &analytics.UpstreamError{StatusCode: 404, Detail: "ticker not found"}
var errTimeout = fmt.Errorf("%w after 60s", analytics.ErrUpstreamTimeout)

func TestHealthEndpoint(t *testing.T) {
	h := newTestServer(t, newStubUpstream(`{}`))

	rec := h.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}
