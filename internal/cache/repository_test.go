package cache

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSchema mirrors the cache.db schema from internal/database.
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
CREATE INDEX idx_stock_cache_expires ON stock_cache(expires_at);

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
CREATE INDEX idx_market_regime_date ON market_regime(date);
CREATE INDEX idx_market_regime_expires ON market_regime(expires_at);
`

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsertStockAndFindFresh(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	payload := json.RawMessage(`{"company_name":"Apple Inc.","score":0.82}`)
	entry, err := repo.UpsertStock("AAPL", EndpointAnalysis, payload, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", entry.Ticker)
	assert.InDelta(t, time.Now().Add(time.Hour).Unix(), entry.ExpiresAt.Unix(), 5)

	found, err := repo.FindFreshStock("AAPL", EndpointAnalysis)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.JSONEq(t, string(payload), string(found.Data))
}

func TestFindFreshStockCaseInsensitive(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	_, err := repo.UpsertStock("AAPL", EndpointAnalysis, json.RawMessage(`{"a":1}`), time.Hour)
	require.NoError(t, err)

	lower, err := repo.FindFreshStock("aapl", EndpointAnalysis)
	require.NoError(t, err)
	require.NotNil(t, lower)

	upper, err := repo.FindFreshStock("AAPL", EndpointAnalysis)
	require.NoError(t, err)
	require.NotNil(t, upper)
	assert.Equal(t, upper.Data, lower.Data)
}

func TestFindFreshStockMissOnEmpty(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	found, err := repo.FindFreshStock("MSFT", EndpointNews)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestFindFreshStockIgnoresExpired(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	// Negative TTL writes an already-expired row.
	_, err := repo.UpsertStock("AAPL", EndpointAnalysis, json.RawMessage(`{"a":1}`), -time.Minute)
	require.NoError(t, err)

	found, err := repo.FindFreshStock("AAPL", EndpointAnalysis)
	require.NoError(t, err)
	assert.Nil(t, found, "expired row must behave like an absent one")

	// The row itself is still physically present until a sweep runs.
	var count int
	require.NoError(t, repo.db.QueryRow("SELECT COUNT(*) FROM stock_cache").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestUpsertStockOverwrites(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	_, err := repo.UpsertStock("AAPL", EndpointAnalysis, json.RawMessage(`{"version":1}`), time.Minute)
	require.NoError(t, err)
	second, err := repo.UpsertStock("aapl", EndpointAnalysis, json.RawMessage(`{"version":2}`), time.Hour)
	require.NoError(t, err)

	var count int
	require.NoError(t, repo.db.QueryRow("SELECT COUNT(*) FROM stock_cache").Scan(&count))
	assert.Equal(t, 1, count, "same key must leave exactly one live row")

	found, err := repo.FindFreshStock("AAPL", EndpointAnalysis)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.JSONEq(t, `{"version":2}`, string(found.Data))
	assert.Equal(t, second.ExpiresAt.Unix(), found.ExpiresAt.Unix())
}

func TestUpsertStockKeysAreIndependent(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	_, err := repo.UpsertStock("AAPL", EndpointAnalysis, json.RawMessage(`{"kind":"analysis"}`), time.Hour)
	require.NoError(t, err)
	_, err = repo.UpsertStock("AAPL", EndpointNews, json.RawMessage(`{"kind":"news"}`), time.Hour)
	require.NoError(t, err)

	analysis, err := repo.FindFreshStock("AAPL", EndpointAnalysis)
	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.JSONEq(t, `{"kind":"analysis"}`, string(analysis.Data))

	news, err := repo.FindFreshStock("AAPL", EndpointNews)
	require.NoError(t, err)
	require.NotNil(t, news)
	assert.JSONEq(t, `{"kind":"news"}`, string(news.Data))
}

func TestInsertRegimeAppendsAndLatestWins(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	base := time.Now().Add(-time.Hour)
	for i, label := range []string{"Bear Correction", "Sideways", "Bull Momentum"} {
		_, err := repo.InsertRegime(RegimeEntry{
			Date:        base.Add(time.Duration(i) * 10 * time.Second),
			RegimeID:    i,
			RegimeLabel: label,
			SpxPrice:    5000 + float64(i),
			VixLevel:    18 - float64(i),
		}, time.Hour)
		require.NoError(t, err)
	}

	var count int
	require.NoError(t, repo.db.QueryRow("SELECT COUNT(*) FROM market_regime").Scan(&count))
	assert.Equal(t, 3, count, "regime domain appends, never upserts")

	latest, err := repo.FindLatestRegime()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "Bull Momentum", latest.RegimeLabel)
	assert.Equal(t, 2, latest.RegimeID)
}

func TestFindLatestRegimeSkipsExpired(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	// Freshest by date, but already expired.
	_, err := repo.InsertRegime(RegimeEntry{
		Date:        time.Now(),
		RegimeLabel: "Bull Momentum",
	}, -time.Minute)
	require.NoError(t, err)

	// Older date, still fresh.
	_, err = repo.InsertRegime(RegimeEntry{
		Date:        time.Now().Add(-time.Hour),
		RegimeLabel: "Sideways",
	}, time.Hour)
	require.NoError(t, err)

	latest, err := repo.FindLatestRegime()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "Sideways", latest.RegimeLabel)
}

func TestFindLatestRegimeEmpty(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	latest, err := repo.FindLatestRegime()
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestDeleteTicker(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	_, err := repo.UpsertStock("AAPL", EndpointAnalysis, json.RawMessage(`{}`), time.Hour)
	require.NoError(t, err)
	_, err = repo.UpsertStock("AAPL", EndpointNews, json.RawMessage(`{}`), time.Hour)
	require.NoError(t, err)
	_, err = repo.UpsertStock("MSFT", EndpointAnalysis, json.RawMessage(`{}`), time.Hour)
	require.NoError(t, err)

	deleted, err := repo.DeleteTicker("aapl")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	gone, err := repo.FindFreshStock("AAPL", EndpointAnalysis)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := repo.FindFreshStock("MSFT", EndpointAnalysis)
	require.NoError(t, err)
	assert.NotNil(t, kept, "other tickers must be untouched")
}

func TestDeleteExpiredSweep(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	_, err := repo.UpsertStock("AAPL", EndpointAnalysis, json.RawMessage(`{}`), -time.Minute)
	require.NoError(t, err)
	_, err = repo.UpsertStock("MSFT", EndpointAnalysis, json.RawMessage(`{}`), time.Hour)
	require.NoError(t, err)
	_, err = repo.InsertRegime(RegimeEntry{RegimeLabel: "Sideways"}, -time.Minute)
	require.NoError(t, err)

	stockDeleted, regimeDeleted, err := repo.DeleteExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stockDeleted)
	assert.Equal(t, int64(1), regimeDeleted)

	kept, err := repo.FindFreshStock("MSFT", EndpointAnalysis)
	require.NoError(t, err)
	assert.NotNil(t, kept)

	// Sweep is idempotent: a second run deletes nothing.
	stockDeleted, regimeDeleted, err = repo.DeleteExpired()
	require.NoError(t, err)
	assert.Zero(t, stockDeleted)
	assert.Zero(t, regimeDeleted)
}

func TestDeleteAllRegimes(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	for i := 0; i < 3; i++ {
		_, err := repo.InsertRegime(RegimeEntry{RegimeLabel: "Sideways"}, time.Hour)
		require.NoError(t, err)
	}

	deleted, err := repo.DeleteAllRegimes()
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	latest, err := repo.FindLatestRegime()
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestCleanupJob(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	_, err := repo.UpsertStock("AAPL", EndpointAnalysis, json.RawMessage(`{}`), -time.Minute)
	require.NoError(t, err)

	job := NewCleanupJob(repo, zerolog.Nop())
	assert.Equal(t, "cache_cleanup", job.Name())
	require.NoError(t, job.Run())

	var count int
	require.NoError(t, repo.db.QueryRow("SELECT COUNT(*) FROM stock_cache").Scan(&count))
	assert.Zero(t, count)
}
