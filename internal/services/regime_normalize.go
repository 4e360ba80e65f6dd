package services

import (
	"encoding/json"
	"time"

	"github.com/JastejS28/AlphaSharp/internal/cache"
)

// rawRegime captures every field-name variant the analytics service has
// been observed to emit for the market condition payload. The aliases are
// collapsed here, once, so nothing downstream ever probes alternate names.
type rawRegime struct {
	Date time.Time `json:"date"`

	RegimeID      *int   `json:"regime_id"`
	RegimeIDAlt   *int   `json:"regimeId"`
	CurrentRegime string `json:"current_regime"`
	RegimeName    string `json:"regime_name"`
	RegimeLabel   string `json:"regimeLabel"`

	SpxPrice    *float64 `json:"spx_price"`
	SpxPriceAlt *float64 `json:"spxPrice"`

	VixLevel    *float64 `json:"vix_level"`
	VixLevelAlt *float64 `json:"vixLevel"`
	Vix         *float64 `json:"vix"`

	Characteristics *rawCharacteristics `json:"characteristics"`
	Features        json.RawMessage     `json:"features"`
}

type rawCharacteristics struct {
	ExpectedReturn     *float64 `json:"expected_return"`
	ExpectedReturnAlt  *float64 `json:"expectedReturn"`
	ExpectedVol        *float64 `json:"expected_volatility"`
	ExpectedVolAlt     *float64 `json:"expectedVolatility"`
	AverageDuration    *float64 `json:"average_duration"`
	AverageDurationAlt *float64 `json:"averageDuration"`
	RiskLevel          string   `json:"risk_level"`
	RiskLevelAlt       string   `json:"riskLevel"`
	Trend              string   `json:"trend"`
}

func firstInt(candidates ...*int) int {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return 0
}

func firstFloat(candidates ...*float64) float64 {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return 0
}

func firstString(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// NormalizeRegime converts a raw market condition payload into the
// canonical regime row. Unparseable payloads degrade to a labeled-Unknown
// row rather than an error. Payload always carries the upstream response
// verbatim so cache hits replay exactly what a miss would have returned.
func NormalizeRegime(data json.RawMessage) cache.RegimeEntry {
	entry := cache.RegimeEntry{
		Date:        time.Now(),
		RegimeLabel: "Unknown",
		Features:    json.RawMessage("{}"),
		Payload:     json.RawMessage("{}"),
	}
	if len(data) > 0 && json.Valid(data) {
		entry.Payload = data
	}

	var raw rawRegime
	if err := json.Unmarshal(data, &raw); err != nil {
		return entry
	}

	if !raw.Date.IsZero() {
		entry.Date = raw.Date
	}
	entry.RegimeID = firstInt(raw.RegimeID, raw.RegimeIDAlt)
	if label := firstString(raw.CurrentRegime, raw.RegimeName, raw.RegimeLabel); label != "" {
		entry.RegimeLabel = label
	}
	entry.SpxPrice = firstFloat(raw.SpxPrice, raw.SpxPriceAlt)
	entry.VixLevel = firstFloat(raw.VixLevel, raw.VixLevelAlt, raw.Vix)

	if c := raw.Characteristics; c != nil {
		entry.Characteristics = cache.RegimeCharacteristics{
			ExpectedReturn:     firstFloat(c.ExpectedReturn, c.ExpectedReturnAlt),
			ExpectedVolatility: firstFloat(c.ExpectedVol, c.ExpectedVolAlt),
			AverageDuration:    firstFloat(c.AverageDuration, c.AverageDurationAlt),
			RiskLevel:          firstString(c.RiskLevel, c.RiskLevelAlt),
			Trend:              c.Trend,
		}
	}

	if len(raw.Features) > 0 {
		entry.Features = raw.Features
	}

	return entry
}
