package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"collections/internal/adapters/config"
	"collections/internal/adapters/dataservice"
	"collections/internal/adapters/errors/noop"
	"collections/internal/adapters/errors/sentry"
	"collections/internal/adapters/kafka"
	"collections/internal/adapters/redis"
	"collections/internal/api"
	"collections/internal/api/collections"
	"collections/internal/api/health"
	"collections/internal/events"
	"collections/internal/metrics"
	"collections/internal/services/browser"
	"collections/pkg/errors"
	"collections/pkg/logger"
	"collections/pkg/options"
	"collections/pkg/templates"
)

var version = "dev"

func main() {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	if err := initLogger(cfg); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// Initialize error tracker
	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	client, err := dataservice.New(dataservice.Config{
		BaseURL:   cfg.DataService.BaseURL,
		APIKey:    cfg.DataService.APIKey,
		Timeout:   cfg.DataService.Timeout,
		RateLimit: cfg.DataService.RateLimit,
		Burst:     cfg.DataService.Burst,
		PageSize:  cfg.DataService.PageSize,
		Retry:     dataservice.DefaultRetryConfig(),
	}, log)
	if err != nil {
		log.Fatalf("Failed to create data service client: %v", err)
	}

	cache, redisClient := initEntityCache(cfg, log)
	producer := initProducer(cfg, log)

	var eventProducer events.Producer
	if producer != nil {
		eventProducer = producer
	}

	resolver := options.NewResolver(options.ResolverConfig{
		Cache:    cache,
		Timeout:  cfg.Search.ResolveTimeout,
		Observer: metrics.ResolverObserver{},
	}, log)

	svc := browser.NewService(
		client,
		resolver,
		templates.NewCopy(templates.Get(), cfg.App.DefaultLocale, log),
		events.NewPublisher(eventProducer, log.Component("events")),
		browser.Config{
			PageSize:       cfg.DataService.PageSize,
			SearchDelay:    cfg.Search.Debounce,
			TextDelay:      cfg.Search.TextDebounce,
			RequestTimeout: cfg.Search.RequestTimeout,
		},
		log,
	)

	checks := []health.Check{{Name: "data_service", Ping: client.Ping}}
	if redisClient != nil {
		checks = append(checks, health.Check{Name: "redis", Ping: redisClient.Health, Optional: true})
	}

	server := api.NewServer(
		api.ServerConfig{
			Port:         cfg.HTTP.Port,
			ServiceName:  cfg.App.Name,
			Version:      version,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
		health.New(log, cfg.App.Name, version, checks...),
		collections.New(svc, collections.Config{
			BasePath:       cfg.HTTP.CollectionsPath,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
		}, log),
		log,
	)

	log.Info("System initialized successfully")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := server.Start(); err != nil {
			log.ErrorWithContext(ctx, err, map[string]string{"component": "http"})
			cancel()
		}
	}()

	// Wait for shutdown signal
	waitForShutdown(ctx, cancel, cfg, server, producer, redisClient, errorTracker, log)
}

// loadConfig loads application configuration from environment
func loadConfig() (*config.Config, error) {
	return config.Load()
}

// initLogger initializes structured logging
func initLogger(cfg *config.Config) error {
	return logger.Init(cfg.App.LogLevel, cfg.App.Env)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// initEntityCache shares resolved selections through Redis when enabled.
// Without Redis every instance keeps its own memory cache.
func initEntityCache(cfg *config.Config, log *logger.Logger) (options.Cache, *redis.Client) {
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(cfg.Redis)
		if err == nil {
			cache := redis.NewEntityCache(client)
			metrics.RegisterCustomCollector(metrics.NewCustomCollector(log, cache))
			log.Infof("Entity cache on Redis at %s", cfg.Redis.Addr())
			return cache, client
		}
		log.Warnf("Redis unavailable, using memory cache: %v", err)
	}

	cache := options.NewMemoryCache()
	metrics.RegisterCustomCollector(metrics.NewCustomCollector(log, cache))
	return cache, nil
}

// initProducer creates the navigation event producer, nil when disabled
func initProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	if !cfg.Kafka.Enabled() {
		log.Info("Navigation events disabled")
		return nil
	}
	log.Infof("Publishing navigation events to %v", kafka.Topics())
	return kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers, Async: true}, log)
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	cfg *config.Config,
	server *api.Server,
	producer *kafka.Producer,
	redisClient *redis.Client,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case <-ctx.Done():
	}
	log.Info("Shutting down...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP shutdown: %v", err)
	}
	cancel()

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Warnf("Failed to close Kafka producer: %v", err)
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Warnf("Failed to close Redis: %v", err)
		}
	}

	// Flush error tracker
	if errorTracker != nil {
		if err := errorTracker.Flush(shutdownCtx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
