package cache

import "time"

// Default TTLs per cached data kind. Volatility differs: regime
// classification is stable for about an hour, analysis for minutes,
// news for about ten minutes. Overridable via environment configuration.
const (
	TTLAnalysis = 5 * time.Minute
	TTLNews     = 10 * time.Minute
	TTLHistory  = time.Hour
	TTLRegime   = time.Hour

	// TTLDefault applies when an endpoint kind is unrecognized. Writes
	// never fail on an unknown kind; they just expire quickly.
	TTLDefault = 5 * time.Minute
)
