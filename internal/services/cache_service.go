// Package services provides the policy layer between request handlers and
// the persistence and client packages.
package services

import (
	"encoding/json"
	"time"

	"github.com/JastejS28/AlphaSharp/internal/cache"
	"github.com/JastejS28/AlphaSharp/internal/config"
	"github.com/JastejS28/AlphaSharp/internal/events"
	"github.com/rs/zerolog"
)

// CacheStore defines the contract the cache service needs from the store.
// Satisfied by *cache.Repository; tests inject failing stubs.
type CacheStore interface {
	FindFreshStock(ticker, endpoint string) (*cache.StockEntry, error)
	UpsertStock(ticker, endpoint string, data json.RawMessage, ttl time.Duration) (*cache.StockEntry, error)
	InsertRegime(entry cache.RegimeEntry, ttl time.Duration) (*cache.RegimeEntry, error)
	FindLatestRegime() (*cache.RegimeEntry, error)
	DeleteTicker(ticker string) (int64, error)
	DeleteAllRegimes() (int64, error)
	DeleteExpired() (int64, int64, error)
}

// StockCacheResult is the outcome of a stock cache lookup. A store error is
// reported exactly like a miss: caching is an optimization, never a reason
// to fail a request.
type StockCacheResult struct {
	Hit       bool
	Data      json.RawMessage
	ExpiresAt time.Time
}

// RegimeCacheResult is the outcome of a market regime cache lookup.
type RegimeCacheResult struct {
	Hit       bool
	Entry     *cache.RegimeEntry
	ExpiresAt time.Time
}

// CacheService encodes the caching policy: TTL per endpoint kind, hit/miss
// decisions, and invalidation. Handlers never hardcode TTLs.
type CacheService struct {
	store CacheStore
	cfg   config.CacheConfig
	bus   *events.Bus
	log   zerolog.Logger
}

// NewCacheService creates a new cache service.
// bus is optional - if nil, cache-clear events are not emitted.
func NewCacheService(store CacheStore, cfg config.CacheConfig, bus *events.Bus, log zerolog.Logger) *CacheService {
	return &CacheService{
		store: store,
		cfg:   cfg,
		bus:   bus,
		log:   log.With().Str("service", "cache").Logger(),
	}
}

// ttlFor selects the TTL for an endpoint kind, falling back to the default
// for unrecognized kinds rather than failing the write.
func (s *CacheService) ttlFor(endpoint string) time.Duration {
	switch endpoint {
	case cache.EndpointAnalysis:
		return s.cfg.StockAnalysisTTL
	case cache.EndpointNews:
		return s.cfg.MarketNewsTTL
	case cache.EndpointHistory:
		return s.cfg.PriceHistoryTTL
	default:
		return s.cfg.DefaultTTL
	}
}

// GetStockCache looks up cached data for (ticker, endpoint).
func (s *CacheService) GetStockCache(ticker, endpoint string) StockCacheResult {
	entry, err := s.store.FindFreshStock(ticker, endpoint)
	if err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Str("endpoint", endpoint).Msg("Cache retrieval error")
		return StockCacheResult{}
	}
	if entry == nil {
		s.log.Debug().Str("ticker", ticker).Str("endpoint", endpoint).Msg("Cache MISS")
		return StockCacheResult{}
	}

	s.log.Debug().Str("ticker", ticker).Str("endpoint", endpoint).Msg("Cache HIT")
	return StockCacheResult{
		Hit:       true,
		Data:      entry.Data,
		ExpiresAt: entry.ExpiresAt,
	}
}

// SetStockCache stores data for (ticker, endpoint) with the policy TTL and
// returns the expiration time.
func (s *CacheService) SetStockCache(ticker, endpoint string, data json.RawMessage) (time.Time, error) {
	ttl := s.ttlFor(endpoint)

	entry, err := s.store.UpsertStock(ticker, endpoint, data, ttl)
	if err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Str("endpoint", endpoint).Msg("Cache storage error")
		return time.Time{}, err
	}

	s.log.Debug().
		Str("ticker", ticker).
		Str("endpoint", endpoint).
		Dur("ttl", ttl).
		Msg("Cache SET")
	return entry.ExpiresAt, nil
}

// GetMarketRegimeCache returns the freshest non-expired regime snapshot.
func (s *CacheService) GetMarketRegimeCache() RegimeCacheResult {
	entry, err := s.store.FindLatestRegime()
	if err != nil {
		s.log.Error().Err(err).Msg("Market regime cache error")
		return RegimeCacheResult{}
	}
	if entry == nil {
		s.log.Debug().Msg("Market regime cache MISS")
		return RegimeCacheResult{}
	}

	s.log.Debug().Msg("Market regime cache HIT")
	return RegimeCacheResult{
		Hit:       true,
		Entry:     entry,
		ExpiresAt: entry.ExpiresAt,
	}
}

// SetMarketRegimeCache normalizes a raw market condition payload into the
// canonical regime row and appends it with the regime TTL.
func (s *CacheService) SetMarketRegimeCache(data json.RawMessage) (time.Time, error) {
	entry := NormalizeRegime(data)

	stored, err := s.store.InsertRegime(entry, s.cfg.MarketRegimeTTL)
	if err != nil {
		s.log.Error().Err(err).Msg("Market regime cache storage error")
		return time.Time{}, err
	}

	s.log.Debug().Dur("ttl", s.cfg.MarketRegimeTTL).Msg("Market regime cache SET")
	return stored.ExpiresAt, nil
}

// ClearStockCache removes all endpoint entries for a ticker. Used when a
// user forces a refresh of one symbol.
func (s *CacheService) ClearStockCache(ticker string) (int64, error) {
	deleted, err := s.store.DeleteTicker(ticker)
	if err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Msg("Cache clear error")
		return 0, err
	}

	s.log.Info().Str("ticker", ticker).Int64("deleted", deleted).Msg("Cache cleared for ticker")
	return deleted, nil
}

// ClearMarketRegimeCache removes all regime rows. Used for the operator
// "force refresh market data" action.
func (s *CacheService) ClearMarketRegimeCache() (int64, error) {
	deleted, err := s.store.DeleteAllRegimes()
	if err != nil {
		s.log.Error().Err(err).Msg("Market regime cache clear error")
		return 0, err
	}

	s.log.Info().Int64("deleted", deleted).Msg("Market regime cache cleared")
	if s.bus != nil {
		s.bus.Emit(events.MarketCacheCleared, map[string]interface{}{"deleted": deleted})
	}
	return deleted, nil
}

// ClearExpiredCache sweeps expired rows from both domains. The store-level
// sweep job uses the same predicate deletes, so running both is safe.
func (s *CacheService) ClearExpiredCache() (int64, error) {
	stockDeleted, regimeDeleted, err := s.store.DeleteExpired()
	if err != nil {
		s.log.Error().Err(err).Msg("Expired cache cleanup error")
		return 0, err
	}

	total := stockDeleted + regimeDeleted
	s.log.Info().Int64("deleted", total).Msg("Expired cache cleared")
	return total, nil
}
