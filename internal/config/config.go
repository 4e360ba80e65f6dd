// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port        int
	DataDir     string // Base directory for all databases (always absolute)
	LogLevel    string
	DevMode     bool
	FrontendURL string // Allowed CORS origin for the SPA

	Analytics AnalyticsConfig
	Cache     CacheConfig
	KeepAlive KeepAliveConfig
	Backup    BackupConfig
}

// AnalyticsConfig holds settings for the external analytics service
type AnalyticsConfig struct {
	BaseURL         string
	Timeout         time.Duration // Default per-request timeout
	ForecastTimeout time.Duration // Monte Carlo forecasts run upstream and are slow
	HistoryTimeout  time.Duration
}

// CacheConfig holds TTLs per cached data kind
type CacheConfig struct {
	StockAnalysisTTL time.Duration
	MarketNewsTTL    time.Duration
	PriceHistoryTTL  time.Duration
	MarketRegimeTTL  time.Duration
	DefaultTTL       time.Duration
}

// KeepAliveConfig holds keep-alive scheduler settings
type KeepAliveConfig struct {
	Enabled  bool
	Interval time.Duration
	// Active window: weekdays, [StartHour, EndHour) in Timezone
	Timezone  string
	StartHour int
	EndHour   int
}

// BackupConfig holds S3 backup settings for the data directory
type BackupConfig struct {
	Enabled         bool
	Bucket          string
	Endpoint        string // S3-compatible endpoint URL (empty for AWS)
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		Port:        getEnvAsInt("PORT", 5000),
		DataDir:     absDataDir,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DevMode:     getEnvAsBool("DEV_MODE", false),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		Analytics: AnalyticsConfig{
			BaseURL:         getEnv("ANALYTICS_API_URL", "http://localhost:8000"),
			Timeout:         getEnvAsDuration("ANALYTICS_API_TIMEOUT", 60*time.Second),
			ForecastTimeout: getEnvAsDuration("ANALYTICS_FORECAST_TIMEOUT", 120*time.Second),
			HistoryTimeout:  getEnvAsDuration("ANALYTICS_HISTORY_TIMEOUT", 30*time.Second),
		},
		Cache: CacheConfig{
			StockAnalysisTTL: getEnvAsDuration("CACHE_STOCK_ANALYSIS_TTL", 300*time.Second),
			MarketNewsTTL:    getEnvAsDuration("CACHE_MARKET_NEWS_TTL", 600*time.Second),
			PriceHistoryTTL:  getEnvAsDuration("CACHE_PRICE_HISTORY_TTL", 3600*time.Second),
			MarketRegimeTTL:  getEnvAsDuration("CACHE_MARKET_REGIME_TTL", 3600*time.Second),
			DefaultTTL:       300 * time.Second,
		},
		KeepAlive: KeepAliveConfig{
			Enabled:   getEnvAsBool("ENABLE_KEEP_ALIVE", false),
			Interval:  time.Duration(getEnvAsInt("KEEP_ALIVE_INTERVAL", 13)) * time.Minute,
			Timezone:  getEnv("KEEP_ALIVE_TIMEZONE", "America/New_York"),
			StartHour: getEnvAsInt("KEEP_ALIVE_START_HOUR", 9),
			EndHour:   getEnvAsInt("KEEP_ALIVE_END_HOUR", 18),
		},
		Backup: BackupConfig{
			Enabled:         getEnvAsBool("ENABLE_BACKUPS", false),
			Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
			Region:          getEnv("BACKUP_S3_REGION", "auto"),
			AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 14),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Analytics.BaseURL == "" {
		return fmt.Errorf("ANALYTICS_API_URL is required")
	}
	if c.KeepAlive.StartHour < 0 || c.KeepAlive.EndHour > 24 || c.KeepAlive.StartHour >= c.KeepAlive.EndHour {
		return fmt.Errorf("invalid keep-alive window: start=%d end=%d", c.KeepAlive.StartHour, c.KeepAlive.EndHour)
	}
	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("BACKUP_S3_BUCKET is required when backups are enabled")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvAsDuration parses plain integers as seconds ("300"), otherwise
// falls back to Go duration syntax ("5m").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	return fallback
}
