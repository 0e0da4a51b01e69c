package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Search    SearchConfig
	Cache     CacheConfig
	Retailers []RetailerConfig
	Scraper   ScraperConfig
	Breaker   BreakerConfig
	Savings   SavingsConfig
	Basket    BasketConfig
	Database  DatabaseConfig
	Events    EventsConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig selects log level and output format
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// SearchConfig tunes the aggregation pipeline
type SearchConfig struct {
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
	ConnectorTimeout    time.Duration `mapstructure:"connector_timeout"`
	MaxCacheEntries     int           `mapstructure:"max_cache_entries"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
	MaxFetchPerRetailer int           `mapstructure:"max_fetch_per_retailer"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string `mapstructure:"type"` // "memory" or "redis"
	RedisURL string `mapstructure:"redis_url"`
}

// RetailerConfig describes one retailer connector
type RetailerConfig struct {
	ID            string  `mapstructure:"id"`
	BaseURL       string  `mapstructure:"base_url"`
	Token         string  `mapstructure:"token"`
	SearchPath    string  `mapstructure:"search_path"`
	SlotsPath     string  `mapstructure:"slots_path"`
	ImageBaseURL  string  `mapstructure:"image_base_url"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
	Enabled       *bool   `mapstructure:"enabled"`
}

// IsEnabled reports whether the retailer is on; unset means enabled
func (r RetailerConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// ScraperConfig is the shared scraper service used by retailers without their own endpoint
type ScraperConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

// BreakerConfig tunes the per-retailer circuit breaker
type BreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	OpenTimeout  time.Duration `mapstructure:"open_timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

// SavingsConfig tunes alternative suggestions
type SavingsConfig struct {
	CandidateSize  int     `mapstructure:"candidate_size"`
	MaxSuggestions int     `mapstructure:"max_suggestions"`
	MinPriceDelta  float64 `mapstructure:"min_price_delta"`
	Concurrency    int     `mapstructure:"concurrency"`
	CleanQuery     bool    `mapstructure:"clean_query"`
}

// BasketConfig selects the basket and template store
type BasketConfig struct {
	Store string        `mapstructure:"store"` // "memory" or "redis"
	TTL   time.Duration `mapstructure:"ttl"`
}

// DatabaseConfig configures the price history database
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "none", "postgres" or "sqlite"
	DSN    string `mapstructure:"dsn"`
}

// EventsConfig configures the analytics event sink
type EventsConfig struct {
	File   string `mapstructure:"file"`
	Buffer int    `mapstructure:"buffer"`
}

// RateLimitConfig holds inbound rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute, 0 disables
	Burst int `mapstructure:"burst"`
}

var retailerIDPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/boodschap/")

	// BOODSCHAP_SEARCH_CACHE_TTL maps to search.cache_ttl
	v.SetEnvPrefix("BOODSCHAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:8501", "http://localhost:3000"})
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Search defaults
	v.SetDefault("search.cache_ttl", "60s")
	v.SetDefault("search.connector_timeout", "8s")
	v.SetDefault("search.max_cache_entries", 10000)
	v.SetDefault("search.sweep_interval", "5m")
	v.SetDefault("search.max_fetch_per_retailer", 200)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")

	// Retailers default to the shared scraper service
	v.SetDefault("retailers", []map[string]any{
		{"id": "ah", "rate_per_second": 5, "burst": 5},
		{"id": "jumbo", "rate_per_second": 5, "burst": 5},
		{"id": "dirk", "rate_per_second": 5, "burst": 5},
		{
			"id":              "picnic",
			"rate_per_second": 2,
			"burst":           2,
			"slots_path":      "/delivery-slots",
			"image_base_url":  "https://storefront-prod.nl.picnicinternational.com/static/images",
		},
	})
	v.SetDefault("scraper.base_url", "http://localhost:8090")
	v.SetDefault("scraper.token", "")

	// Breaker defaults
	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", "60s")
	v.SetDefault("breaker.open_timeout", "30s")
	v.SetDefault("breaker.failure_ratio", 0.5)
	v.SetDefault("breaker.min_requests", 5)

	// Savings defaults
	v.SetDefault("savings.candidate_size", 20)
	v.SetDefault("savings.max_suggestions", 3)
	v.SetDefault("savings.min_price_delta", 0.01)
	v.SetDefault("savings.concurrency", 4)
	v.SetDefault("savings.clean_query", false)

	v.SetDefault("basket.store", "memory")
	v.SetDefault("basket.ttl", "720h") // 30 days

	v.SetDefault("database.driver", "none")
	v.SetDefault("database.dsn", "")

	v.SetDefault("events.file", "")
	v.SetDefault("events.buffer", 256)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 120)
	v.SetDefault("ratelimit.burst", 20)
}

// validate validates the configuration
func validate(config *Config) error {
	enabled := 0
	seen := make(map[string]bool, len(config.Retailers))
	for _, r := range config.Retailers {
		if r.ID == "" {
			return fmt.Errorf("retailer id is required")
		}
		if !retailerIDPattern.MatchString(r.ID) {
			return fmt.Errorf("retailer id must be lowercase, got: %s", r.ID)
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate retailer id: %s", r.ID)
		}
		seen[r.ID] = true
		if r.IsEnabled() {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one enabled retailer is required")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}
	if config.Basket.Store != "memory" && config.Basket.Store != "redis" {
		return fmt.Errorf("basket store must be 'memory' or 'redis', got: %s", config.Basket.Store)
	}
	if config.UsesRedis() && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type or basket store is 'redis'")
	}

	switch config.Database.Driver {
	case "none":
	case "postgres", "sqlite":
		if config.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for driver %s", config.Database.Driver)
		}
	default:
		return fmt.Errorf("database driver must be 'none', 'postgres' or 'sqlite', got: %s", config.Database.Driver)
	}

	if config.Search.CacheTTL <= 0 {
		return fmt.Errorf("search cache ttl must be positive, got: %s", config.Search.CacheTTL)
	}
	if config.Log.Format != "json" && config.Log.Format != "console" {
		return fmt.Errorf("log format must be 'json' or 'console', got: %s", config.Log.Format)
	}

	return nil
}

// UsesRedis reports whether any component needs the redis connection
func (c *Config) UsesRedis() bool {
	return c.Cache.Type == "redis" || c.Basket.Store == "redis"
}

// EnabledRetailers returns enabled retailers with scraper fallbacks applied
func (c *Config) EnabledRetailers() []RetailerConfig {
	out := make([]RetailerConfig, 0, len(c.Retailers))
	for _, r := range c.Retailers {
		if !r.IsEnabled() {
			continue
		}
		if r.BaseURL == "" {
			r.BaseURL = strings.TrimRight(c.Scraper.BaseURL, "/") + "/" + r.ID
		}
		if r.Token == "" {
			r.Token = c.Scraper.Token
		}
		out = append(out, r)
	}
	return out
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
