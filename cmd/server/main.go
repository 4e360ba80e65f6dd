// Package main is the entry point for the AlphaSharp backend gateway.
// The gateway fronts a slow, cold-starting analytics service: it caches
// upstream responses in SQLite, tracks upstream warm-up state, and keeps
// the upstream awake during US market hours.
//
// Startup sequence:
//  1. Load configuration from environment variables
//  2. Initialize structured logging
//  3. Open databases (cache.db for response caches, app.db for user data)
//  4. Wire repositories, services, and the analytics client
//  5. Register scheduled jobs (keep-alive, cache cleanup, backups)
//  6. Start the HTTP server and wait for a shutdown signal
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/JastejS28/AlphaSharp/internal/cache"
	"github.com/JastejS28/AlphaSharp/internal/clients/analytics"
	"github.com/JastejS28/AlphaSharp/internal/config"
	"github.com/JastejS28/AlphaSharp/internal/database"
	"github.com/JastejS28/AlphaSharp/internal/events"
	"github.com/JastejS28/AlphaSharp/internal/modules/searchhistory"
	"github.com/JastejS28/AlphaSharp/internal/modules/watchlist"
	"github.com/JastejS28/AlphaSharp/internal/reliability"
	"github.com/JastejS28/AlphaSharp/internal/scheduler"
	"github.com/JastejS28/AlphaSharp/internal/server"
	"github.com/JastejS28/AlphaSharp/internal/services"
	"github.com/JastejS28/AlphaSharp/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting AlphaSharp")

	// Two-database architecture:
	// - cache.db: ephemeral upstream response caches (rebuildable, speed profile)
	// - app.db:   user data (watchlist, search history, durability profile)
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	appDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "app.db"),
		Profile: database.ProfileStandard,
		Name:    "app",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open app database")
	}
	defer appDB.Close()

	if err := cacheDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate cache database")
	}
	if err := appDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate app database")
	}
	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases ready")

	// Event bus carries internal notifications (upstream warm-up, cache
	// clears, backup completions) to handlers and websocket subscribers.
	bus := events.NewBus(log)

	// Cache layer
	cacheRepo := cache.NewRepository(cacheDB.Conn())
	cacheService := services.NewCacheService(cacheRepo, cfg.Cache, bus, log)

	// Analytics upstream client with cold-start tracking.
	// The tracker latches warm on the first successful response and feeds
	// the /api/market/status and /api/system/status endpoints.
	tracker := analytics.NewHealthTracker(bus, log)
	analyticsClient := analytics.NewClient(cfg.Analytics, tracker, log)

	// User data repositories
	watchlistRepo := watchlist.NewRepository(appDB.Conn(), log)
	historyRepo := searchhistory.NewRepository(appDB.Conn(), log)

	// Scheduled jobs
	sched := scheduler.New(log)

	keepAlive := scheduler.NewKeepAliveJob(analyticsClient, cfg.KeepAlive, log)
	if cfg.KeepAlive.Enabled {
		schedule := fmt.Sprintf("@every %s", cfg.KeepAlive.Interval)
		if err := sched.AddJob(schedule, keepAlive); err != nil {
			log.Fatal().Err(err).Msg("Failed to register keep-alive job")
		}
	} else {
		log.Info().Msg("Keep-alive disabled")
	}

	// Expired cache rows are invisible to reads; the sweep reclaims space.
	cleanup := cache.NewCleanupJob(cacheRepo, log)
	if err := sched.AddJob("0 0 * * * *", cleanup); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache cleanup job")
	}

	// Optional S3 backups of the data directory
	var backupService *reliability.BackupService
	if cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(context.Background(), cfg.Backup, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup storage client")
		}
		backupService = reliability.NewBackupService(
			s3Client,
			[]*database.DB{cacheDB, appDB},
			cfg.DataDir,
			cfg.Backup.RetentionDays,
			bus,
			log,
		)
		backupJob := reliability.NewBackupJob(backupService, log)
		if err := sched.AddJob("0 0 3 * * *", backupJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
		log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Backups enabled")
	}

	sched.Start()
	defer sched.Stop()

	srvCfg := server.Config{
		Cfg:        cfg,
		Log:        log,
		Cache:      cacheService,
		CacheStats: cacheRepo,
		Upstream:   analyticsClient,
		Tracker:    tracker,
		Watchlist:  watchlistRepo,
		History:    historyRepo,
		KeepAlive:  keepAlive,
		Bus:        bus,
	}
	if backupService != nil {
		srvCfg.Backups = backupService
	}
	srv := server.New(srvCfg)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started")

	// Warm the upstream shortly after boot so the first user request
	// does not eat the full cold-start delay.
	if cfg.KeepAlive.Enabled {
		keepAlive.StartInitialPing(5 * time.Second)
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
