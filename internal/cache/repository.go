// Package cache provides persistent TTL caching for analytics service
// responses. Payloads are stored as JSON blobs with expiration timestamps
// and replayed verbatim on hit.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Repository provides cache operations over cache.db.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new cache repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// normalizeTicker uppercases tickers so lookups are case-insensitive.
func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// FindFreshStock returns the entry for (ticker, endpoint) only while
// expires_at is in the future. An expired row behaves exactly like an
// absent one; eviction is the sweep's job, not the reader's.
// Returns nil, nil when there is no fresh entry.
func (r *Repository) FindFreshStock(ticker, endpoint string) (*StockEntry, error) {
	now := time.Now().Unix()

	row := r.db.QueryRow(
		`SELECT ticker, endpoint, data, expires_at, created_at, updated_at
		 FROM stock_cache
		 WHERE ticker = ? AND endpoint = ? AND expires_at > ?`,
		normalizeTicker(ticker), endpoint, now,
	)

	var e StockEntry
	var data string
	var expiresAt, createdAt, updatedAt int64
	err := row.Scan(&e.Ticker, &e.Endpoint, &data, &expiresAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query stock cache: %w", err)
	}

	e.Data = json.RawMessage(data)
	e.ExpiresAt = time.Unix(expiresAt, 0)
	e.CreatedAt = time.Unix(createdAt, 0)
	e.UpdatedAt = time.Unix(updatedAt, 0)
	return &e, nil
}

// UpsertStock stores data for (ticker, endpoint) with expiration = now + ttl,
// replacing any previous row for the same key. At most one live row per key.
func (r *Repository) UpsertStock(ticker, endpoint string, data json.RawMessage, ttl time.Duration) (*StockEntry, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("refusing to cache empty payload for %s/%s", ticker, endpoint)
	}

	now := time.Now()
	expiresAt := now.Add(ttl)

	_, err := r.db.Exec(
		`INSERT INTO stock_cache (ticker, endpoint, data, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(ticker, endpoint) DO UPDATE SET
		     data = excluded.data,
		     expires_at = excluded.expires_at,
		     updated_at = excluded.updated_at`,
		normalizeTicker(ticker), endpoint, string(data), expiresAt.Unix(), now.Unix(), now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert stock cache: %w", err)
	}

	return &StockEntry{
		Ticker:    normalizeTicker(ticker),
		Endpoint:  endpoint,
		Data:      data,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// InsertRegime appends a market regime snapshot with expiration = now + ttl.
func (r *Repository) InsertRegime(entry RegimeEntry, ttl time.Duration) (*RegimeEntry, error) {
	now := time.Now()
	entry.ExpiresAt = now.Add(ttl)
	entry.CreatedAt = now
	if entry.Date.IsZero() {
		entry.Date = now
	}
	if len(entry.Features) == 0 {
		entry.Features = json.RawMessage("{}")
	}
	if len(entry.Payload) == 0 {
		entry.Payload = json.RawMessage("{}")
	}

	characteristics, err := json.Marshal(entry.Characteristics)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal regime characteristics: %w", err)
	}

	result, err := r.db.Exec(
		`INSERT INTO market_regime
		     (date, regime_id, regime_label, spx_price, vix_level, characteristics, features, payload, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Date.Unix(), entry.RegimeID, entry.RegimeLabel, entry.SpxPrice, entry.VixLevel,
		string(characteristics), string(entry.Features), string(entry.Payload), entry.ExpiresAt.Unix(), entry.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert market regime: %w", err)
	}

	entry.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get regime row id: %w", err)
	}

	return &entry, nil
}

// FindLatestRegime returns the freshest non-expired regime snapshot ordered
// by date descending. Returns nil, nil when no fresh snapshot exists.
func (r *Repository) FindLatestRegime() (*RegimeEntry, error) {
	now := time.Now().Unix()

	row := r.db.QueryRow(
		`SELECT id, date, regime_id, regime_label, spx_price, vix_level,
		        characteristics, features, payload, expires_at, created_at
		 FROM market_regime
		 WHERE expires_at > ?
		 ORDER BY date DESC, id DESC
		 LIMIT 1`,
		now,
	)

	var e RegimeEntry
	var date, expiresAt, createdAt int64
	var characteristics, features, payload string
	err := row.Scan(&e.ID, &date, &e.RegimeID, &e.RegimeLabel, &e.SpxPrice, &e.VixLevel,
		&characteristics, &features, &payload, &expiresAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query market regime: %w", err)
	}

	if err := json.Unmarshal([]byte(characteristics), &e.Characteristics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal regime characteristics: %w", err)
	}
	e.Features = json.RawMessage(features)
	e.Payload = json.RawMessage(payload)
	e.Date = time.Unix(date, 0)
	e.ExpiresAt = time.Unix(expiresAt, 0)
	e.CreatedAt = time.Unix(createdAt, 0)
	return &e, nil
}

// DeleteTicker removes all endpoint entries for a ticker.
// Returns the number of rows deleted.
func (r *Repository) DeleteTicker(ticker string) (int64, error) {
	result, err := r.db.Exec(
		"DELETE FROM stock_cache WHERE ticker = ?",
		normalizeTicker(ticker),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache for %s: %w", ticker, err)
	}
	return result.RowsAffected()
}

// DeleteAllRegimes removes every regime snapshot, expired or not.
// Returns the number of rows deleted.
func (r *Repository) DeleteAllRegimes() (int64, error) {
	result, err := r.db.Exec("DELETE FROM market_regime")
	if err != nil {
		return 0, fmt.Errorf("failed to clear market regime cache: %w", err)
	}
	return result.RowsAffected()
}

// DeleteExpired removes all rows in both domains whose expires_at has
// passed. Deleting by predicate makes the sweep idempotent, so a scheduled
// run and a manual run can overlap safely.
// Returns (stock rows deleted, regime rows deleted).
func (r *Repository) DeleteExpired() (int64, int64, error) {
	now := time.Now().Unix()

	stockResult, err := r.db.Exec("DELETE FROM stock_cache WHERE expires_at <= ?", now)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete expired stock cache: %w", err)
	}
	stockDeleted, err := stockResult.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get stock rows affected: %w", err)
	}

	regimeResult, err := r.db.Exec("DELETE FROM market_regime WHERE expires_at <= ?", now)
	if err != nil {
		return stockDeleted, 0, fmt.Errorf("failed to delete expired regimes: %w", err)
	}
	regimeDeleted, err := regimeResult.RowsAffected()
	if err != nil {
		return stockDeleted, 0, fmt.Errorf("failed to get regime rows affected: %w", err)
	}

	return stockDeleted, regimeDeleted, nil
}

// Stats returns row counts per table for the system status endpoint.
func (r *Repository) Stats() (map[string]int64, error) {
	stats := make(map[string]int64, 2)
	for _, table := range []string{"stock_cache", "market_regime"} {
		var count int64
		if err := r.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s rows: %w", table, err)
		}
		stats[table] = count
	}
	return stats, nil
}
