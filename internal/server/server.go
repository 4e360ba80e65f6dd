// Package server provides the HTTP server and routing for the gateway.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/JastejS28/AlphaSharp/internal/clients/analytics"
	"github.com/JastejS28/AlphaSharp/internal/config"
	"github.com/JastejS28/AlphaSharp/internal/events"
	"github.com/JastejS28/AlphaSharp/internal/modules/searchhistory"
	"github.com/JastejS28/AlphaSharp/internal/modules/watchlist"
	"github.com/JastejS28/AlphaSharp/internal/reliability"
	"github.com/JastejS28/AlphaSharp/internal/services"
)

// Upstream is the analytics surface the handlers call. Satisfied by
// *analytics.Client; tests stub it.
type Upstream interface {
	HealthCheck(ctx context.Context) (json.RawMessage, error)
	GetStockAnalysis(ctx context.Context, ticker string) (json.RawMessage, error)
	GetStockNews(ctx context.Context, ticker string, maxItems int) (json.RawMessage, error)
	GetHistoricalPrices(ctx context.Context, ticker, period, interval string) (json.RawMessage, error)
	GetMarketCondition(ctx context.Context) (json.RawMessage, error)
	GetRegimeForecast(ctx context.Context, days, simulations int, includePaths bool) (json.RawMessage, error)
	GetShortTermPrediction(ctx context.Context, days int) (json.RawMessage, error)
	GetAllRegimes(ctx context.Context) (json.RawMessage, error)
	GetRegimeHistory(ctx context.Context, daysBack int) (json.RawMessage, error)
	QueryAgent(ctx context.Context, query, threadID string) (json.RawMessage, error)
	SearchTicker(ctx context.Context, query string) (json.RawMessage, error)
}

// KeepAliveTrigger lets the manual trigger endpoint fire a ping.
type KeepAliveTrigger interface {
	Trigger() error
}

// CacheStats exposes row counts for the system status endpoint.
type CacheStats interface {
	Stats() (map[string]int64, error)
}

// BackupManager is the backup surface for the system endpoints. Optional.
type BackupManager interface {
	CreateAndUploadBackup(ctx context.Context) error
	ListBackups(ctx context.Context) ([]reliability.BackupInfo, error)
}

// Config holds everything the server needs.
type Config struct {
	Cfg        *config.Config
	Log        zerolog.Logger
	Cache      *services.CacheService
	CacheStats CacheStats
	Upstream   Upstream
	Tracker    *analytics.HealthTracker
	Watchlist  *watchlist.Repository
	History    *searchhistory.Repository
	KeepAlive  KeepAliveTrigger
	Backups    BackupManager
	Bus        *events.Bus
}

// Server is the HTTP server.
type Server struct {
	router     *chi.Mux
	server     *http.Server
	log        zerolog.Logger
	cfg        *config.Config
	cache      *services.CacheService
	cacheStats CacheStats
	upstream   Upstream
	tracker    *analytics.HealthTracker
	watchlist  *watchlist.Repository
	history    *searchhistory.Repository
	keepAlive  KeepAliveTrigger
	backups    BackupManager
	bus        *events.Bus
	startedAt  time.Time
}

// New creates the server and wires all routes.
func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		cfg:        cfg.Cfg,
		cache:      cfg.Cache,
		cacheStats: cfg.CacheStats,
		upstream:   cfg.Upstream,
		tracker:    cfg.Tracker,
		watchlist:  cfg.Watchlist,
		history:    cfg.History,
		keepAlive:  cfg.KeepAlive,
		backups:    cfg.Backups,
		bus:        cfg.Bus,
		startedAt:  time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler: s.router,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	allowedOrigins := []string{"*"}
	if s.cfg.FrontendURL != "" {
		allowedOrigins = []string{s.cfg.FrontendURL}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !s.cfg.DevMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/stocks", func(r chi.Router) {
			r.Get("/search", s.handleSearchTicker)
			r.Get("/recent", s.handleRecentSearches)
			r.Get("/{ticker}/analysis", s.handleStockAnalysis)
			r.Get("/{ticker}/news", s.handleStockNews)
			r.Get("/{ticker}/history", s.handleHistoricalPrices)
		})

		r.Route("/market", func(r chi.Router) {
			r.Get("/condition", s.handleMarketCondition)
			r.Get("/forecast", s.handleRegimeForecast)
			r.Get("/forecast/short-term", s.handleShortTermPrediction)
			r.Get("/regimes", s.handleAllRegimes)
			r.Get("/history", s.handleRegimeHistory)
			r.Get("/status", s.handleUpstreamStatus)
			r.Delete("/cache", s.handleClearMarketCache)
		})

		r.Post("/agent/query", s.handleAgentQuery)

		r.Route("/watchlist", func(r chi.Router) {
			r.Get("/", s.handleWatchlistList)
			r.Post("/", s.handleWatchlistAdd)
			r.Put("/{ticker}", s.handleWatchlistUpdateNotes)
			r.Delete("/{ticker}", s.handleWatchlistRemove)
		})

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
			r.Get("/status/stream", s.handleStatusStream)
			r.Post("/keepalive", s.handleKeepAliveTrigger)
			r.Get("/backups", s.handleListBackups)
			r.Post("/backup", s.handleRunBackup)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the chi mux for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
