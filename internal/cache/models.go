package cache

import (
	"encoding/json"
	"time"
)

// Endpoint kinds for the stock cache domain. Each kind carries its own TTL
// because the underlying data has different volatility.
const (
	EndpointAnalysis = "analysis"
	EndpointNews     = "news"
	EndpointHistory  = "history"
)

// StockEntry is one cached upstream response for a (ticker, endpoint) pair.
type StockEntry struct {
	Ticker    string          `json:"ticker"`
	Endpoint  string          `json:"endpoint"`
	Data      json.RawMessage `json:"data"`
	ExpiresAt time.Time       `json:"expires_at"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RegimeCharacteristics describes the behavior profile of a market regime.
type RegimeCharacteristics struct {
	ExpectedReturn     float64 `json:"expected_return"`
	ExpectedVolatility float64 `json:"expected_volatility"`
	AverageDuration    float64 `json:"average_duration"`
	RiskLevel          string  `json:"risk_level"`
	Trend              string  `json:"trend"`
}

// RegimeEntry is one market regime snapshot. Unlike StockEntry this domain
// is append-only: lookups take the freshest non-expired row by date.
// Payload holds the upstream response exactly as received; cache hits
// replay it untouched, while the typed fields feed queries and history.
type RegimeEntry struct {
	ID              int64                 `json:"id"`
	Date            time.Time             `json:"date"`
	RegimeID        int                   `json:"regime_id"`
	RegimeLabel     string                `json:"regime_label"`
	SpxPrice        float64               `json:"spx_price"`
	VixLevel        float64               `json:"vix_level"`
	Characteristics RegimeCharacteristics `json:"characteristics"`
	Features        json.RawMessage       `json:"features"`
	Payload         json.RawMessage       `json:"payload"`
	ExpiresAt       time.Time             `json:"expires_at"`
	CreatedAt       time.Time             `json:"created_at"`
}
