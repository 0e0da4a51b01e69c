package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/boodschap/backend/config"
	httpDelivery "github.com/boodschap/backend/internal/delivery/http"
	"github.com/boodschap/backend/internal/domain"
	"github.com/boodschap/backend/internal/infrastructure/cache"
	"github.com/boodschap/backend/internal/infrastructure/connector"
	"github.com/boodschap/backend/internal/infrastructure/database"
	"github.com/boodschap/backend/internal/infrastructure/events"
	"github.com/boodschap/backend/internal/infrastructure/logging"
	"github.com/boodschap/backend/internal/infrastructure/metrics"
	"github.com/boodschap/backend/internal/infrastructure/retailer"
	"github.com/boodschap/backend/internal/infrastructure/store"
	"github.com/boodschap/backend/internal/usecase"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "boodschap: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadEnvFile(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.New(logging.Options{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})
	logger.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("cache", cfg.Cache.Type).
		Str("basket_store", cfg.Basket.Store).
		Str("database", cfg.Database.Driver).
		Msg("starting boodschap backend")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Retailer connectors behind timeouts and circuit breakers
	var connectors []domain.Connector
	for _, r := range cfg.EnabledRetailers() {
		connectors = append(connectors, retailer.New(retailer.Config{
			ID:            domain.RetailerID(r.ID),
			BaseURL:       r.BaseURL,
			Token:         r.Token,
			SearchPath:    r.SearchPath,
			SlotsPath:     r.SlotsPath,
			ImageBaseURL:  r.ImageBaseURL,
			RatePerSecond: r.RatePerSecond,
			Burst:         r.Burst,
		}, logger))
		logger.Info().Str("retailer", r.ID).Str("base_url", r.BaseURL).Bool("slots", r.SlotsPath != "").Msg("retailer enabled")
	}
	gateway, err := connector.NewGateway(connectors, connector.Config{
		Timeout: cfg.Search.ConnectorTimeout,
		Breaker: connector.BreakerConfig{
			MaxRequests:  cfg.Breaker.MaxRequests,
			Interval:     cfg.Breaker.Interval,
			OpenTimeout:  cfg.Breaker.OpenTimeout,
			FailureRatio: cfg.Breaker.FailureRatio,
			MinRequests:  cfg.Breaker.MinRequests,
		},
	}, m, logger)
	if err != nil {
		return fmt.Errorf("build connector gateway: %w", err)
	}

	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient, err = database.NewRedis(ctx, cfg.Cache.RedisURL, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
	}

	// Search result cache
	var searchCache domain.SearchCache
	if cfg.Cache.Type == "redis" {
		searchCache = cache.NewRedisCache(redisClient)
	} else {
		memoryCache := cache.NewMemoryCache(cache.MemoryOptions{
			SweepInterval: cfg.Search.SweepInterval,
			MaxEntries:    cfg.Search.MaxCacheEntries,
		})
		defer memoryCache.Close()
		searchCache = memoryCache
	}

	// Baskets and templates
	var baskets domain.BasketStore
	var templates domain.TemplateStore
	if cfg.Basket.Store == "redis" {
		baskets = store.NewRedisBasketStore(redisClient, cfg.Basket.TTL)
		templates = store.NewRedisTemplateStore(redisClient)
	} else {
		baskets = store.NewMemoryBasketStore()
		templates = store.NewMemoryTemplateStore()
	}

	// Optional price history
	var history domain.PriceHistoryRepository
	if cfg.Database.Driver != database.DriverNone {
		db, err := database.OpenGorm(cfg.Database.Driver, cfg.Database.DSN, cfg.IsProduction(), logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := database.CloseGorm(db); err != nil {
				logger.Error().Err(err).Msg("error closing database")
			}
		}()
		repo := store.NewPriceHistoryRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate price history: %w", err)
		}
		history = repo
	}

	// Analytics events
	sinks := events.MultiSink{events.NewLogSink(logger)}
	if cfg.Events.File != "" {
		fileSink, err := events.NewFileSink(cfg.Events.File, cfg.Events.Buffer, m, logger)
		if err != nil {
			return fmt.Errorf("open event file: %w", err)
		}
		defer fileSink.Close()
		sinks = append(sinks, fileSink)
	}

	// Usecase layer
	classifier := usecase.NewHealthClassifier(nil)
	searchOpts := []usecase.SearchOption{
		usecase.WithEvents(sinks),
		usecase.WithSearchMetrics(m),
		usecase.WithLogger(logger),
	}
	if history != nil {
		searchOpts = append(searchOpts, usecase.WithPriceHistory(history))
	}
	searchService := usecase.NewSearchService(
		gateway,
		searchCache,
		usecase.NewNormalizer(classifier),
		usecase.SearchServiceConfig{
			CacheTTL:            cfg.Search.CacheTTL,
			MaxFetchPerRetailer: cfg.Search.MaxFetchPerRetailer,
		},
		searchOpts...,
	)
	basketService := usecase.NewBasketService(baskets, templates, sinks, logger)
	savingsService := usecase.NewSavingsService(searchService, baskets, classifier, sinks, logger, usecase.SavingsConfig{
		CandidateSize:  cfg.Savings.CandidateSize,
		MaxSuggestions: cfg.Savings.MaxSuggestions,
		MinPriceDelta:  decimal.NewFromFloat(cfg.Savings.MinPriceDelta),
		Concurrency:    cfg.Savings.Concurrency,
		CleanQuery:     cfg.Savings.CleanQuery,
	})

	handler := httpDelivery.NewHandler(httpDelivery.Services{
		Search:   searchService,
		Baskets:  basketService,
		Savings:  savingsService,
		History:  history,
		Breakers: gateway,
	}, logger)
	router := httpDelivery.SetupRouter(cfg, handler, logger, m, m.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	return shutdown(server, cfg.Server.ShutdownTimeout, logger)
}

func shutdown(server *http.Server, timeout time.Duration, logger zerolog.Logger) error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger.Info().Dur("timeout", timeout).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
