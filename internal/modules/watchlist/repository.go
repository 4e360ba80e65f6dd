// Package watchlist stores the tickers a user tracks. Items live in app.db
// and survive cache sweeps: clearing cached analyses never touches the
// watchlist.
package watchlist

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Repository handles watchlist database operations against app.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "watchlist").Logger(),
	}
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Add inserts a ticker, or refreshes its metadata when already present.
// Adding an existing ticker is not an error.
func (r *Repository) Add(ticker, companyName, notes string) (*Item, error) {
	ticker = normalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}

	now := time.Now()
	_, err := r.db.Exec(`
		INSERT INTO watchlist (ticker, company_name, notes, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			company_name = CASE WHEN excluded.company_name != '' THEN excluded.company_name ELSE watchlist.company_name END,
			notes = CASE WHEN excluded.notes != '' THEN excluded.notes ELSE watchlist.notes END
	`, ticker, companyName, notes, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to add %s to watchlist: %w", ticker, err)
	}

	return r.Get(ticker)
}

// Get returns one item, or nil when the ticker is not tracked.
func (r *Repository) Get(ticker string) (*Item, error) {
	ticker = normalizeTicker(ticker)

	var item Item
	var addedAt int64
	err := r.db.QueryRow(`
		SELECT ticker, company_name, notes, added_at
		FROM watchlist WHERE ticker = ?
	`, ticker).Scan(&item.Ticker, &item.CompanyName, &item.Notes, &addedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist item %s: %w", ticker, err)
	}

	item.AddedAt = time.Unix(addedAt, 0)
	return &item, nil
}

// List returns all items, most recently added first.
func (r *Repository) List() ([]Item, error) {
	rows, err := r.db.Query(`
		SELECT ticker, company_name, notes, added_at
		FROM watchlist ORDER BY added_at DESC, ticker ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var item Item
		var addedAt int64
		if err := rows.Scan(&item.Ticker, &item.CompanyName, &item.Notes, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist row: %w", err)
		}
		item.AddedAt = time.Unix(addedAt, 0)
		items = append(items, item)
	}
	return items, rows.Err()
}

// Remove deletes a ticker. Returns false when it was not tracked.
func (r *Repository) Remove(ticker string) (bool, error) {
	ticker = normalizeTicker(ticker)

	result, err := r.db.Exec("DELETE FROM watchlist WHERE ticker = ?", ticker)
	if err != nil {
		return false, fmt.Errorf("failed to remove %s from watchlist: %w", ticker, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpdateNotes replaces the notes for a tracked ticker. Returns false when
// the ticker is not tracked.
func (r *Repository) UpdateNotes(ticker, notes string) (bool, error) {
	ticker = normalizeTicker(ticker)

	result, err := r.db.Exec("UPDATE watchlist SET notes = ? WHERE ticker = ?", notes, ticker)
	if err != nil {
		return false, fmt.Errorf("failed to update notes for %s: %w", ticker, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
