// Package searchhistory records which tickers were looked up, so the
// frontend can offer recent searches. One row per ticker; repeat lookups
// bump the count and the timestamp.
package searchhistory

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one remembered search.
type Entry struct {
	Ticker      string    `json:"ticker"`
	CompanyName string    `json:"company_name,omitempty"`
	SearchCount int       `json:"search_count"`
	SearchedAt  time.Time `json:"searched_at"`
}

// Repository handles search history database operations against app.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "search_history").Logger(),
	}
}

// Record notes one search for a ticker, creating the row or bumping its
// count and timestamp. An empty company name never blanks a stored one.
func (r *Repository) Record(ticker, companyName string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return fmt.Errorf("ticker is required")
	}

	_, err := r.db.Exec(`
		INSERT INTO search_history (ticker, company_name, search_count, searched_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			company_name = CASE WHEN excluded.company_name != '' THEN excluded.company_name ELSE search_history.company_name END,
			search_count = search_history.search_count + 1,
			searched_at = excluded.searched_at
	`, ticker, companyName, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record search for %s: %w", ticker, err)
	}
	return nil
}

// Recent returns the most recently searched tickers, newest first.
func (r *Repository) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(`
		SELECT ticker, company_name, search_count, searched_at
		FROM search_history ORDER BY searched_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list search history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var entry Entry
		var searchedAt int64
		if err := rows.Scan(&entry.Ticker, &entry.CompanyName, &entry.SearchCount, &searchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan search history row: %w", err)
		}
		entry.SearchedAt = time.Unix(searchedAt, 0)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Clear wipes the whole history.
func (r *Repository) Clear() (int64, error) {
	result, err := r.db.Exec("DELETE FROM search_history")
	if err != nil {
		return 0, fmt.Errorf("failed to clear search history: %w", err)
	}
	return result.RowsAffected()
}
