package database

// schemas maps database names to their bootstrap SQL. Every statement is
// idempotent (IF NOT EXISTS) so Migrate can run on every startup.
var schemas = map[string]string{
	"cache": cacheSchema,
	"app":   appSchema,
}

// cacheSchema holds the two independent response-cache domains.
//
// stock_cache is keyed by (ticker, endpoint) and upserted: at most one live
// row per key. market_regime is append-only: every successful market
// condition fetch inserts a new row and lookups take the freshest
// non-expired one, so a short regime history accumulates between sweeps.
const cacheSchema = `
CREATE TABLE IF NOT EXISTS stock_cache (
    ticker     TEXT    NOT NULL,
    endpoint   TEXT    NOT NULL,
    data       TEXT    NOT NULL,
    expires_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (ticker, endpoint)
);
CREATE INDEX IF NOT EXISTS idx_stock_cache_expires ON stock_cache(expires_at);

CREATE TABLE IF NOT EXISTS market_regime (
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
CREATE INDEX IF NOT EXISTS idx_market_regime_date ON market_regime(date);
CREATE INDEX IF NOT EXISTS idx_market_regime_expires ON market_regime(expires_at);
`

// appSchema holds user-facing data that survives cache sweeps.
const appSchema = `
CREATE TABLE IF NOT EXISTS watchlist (
    ticker       TEXT PRIMARY KEY,
    company_name TEXT NOT NULL DEFAULT '',
    notes        TEXT NOT NULL DEFAULT '',
    added_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS search_history (
    ticker       TEXT PRIMARY KEY,
    company_name TEXT NOT NULL DEFAULT '',
    search_count INTEGER NOT NULL DEFAULT 1,
    searched_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_search_history_time ON search_history(searched_at);
`
