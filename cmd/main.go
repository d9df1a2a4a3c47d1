package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ads-api/internal/config"
	"ads-api/internal/delivery/router"
	"ads-api/internal/infrastructure/cache"
	"ads-api/internal/infrastructure/metrics"
	"ads-api/internal/repository"
	"ads-api/internal/service"
	"ads-api/internal/validation"
	"ads-api/pkg/database"
	"ads-api/pkg/logger"
	"ads-api/pkg/utils"

	redisClient "github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func main() {
	cfg := config.MustLoadConfig()

	loggers, err := logger.SetupLogger(cfg.Logger.Level)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	loggers.InfoLogger.Info("Logger initialized")

	db, dialect, cleanupDB := setupDatabase(cfg, loggers)
	defer cleanupDB()

	advertisementCache, cleanupRedis := setupRedis(cfg, loggers)
	defer cleanupRedis()

	tracerProvider := setupTracer(cfg, loggers)
	defer shutdownTracer(tracerProvider, loggers)

	registry := metrics.NewRegistry()
	handlerMetrics := metrics.NewHandlerMetrics(registry)
	serviceMetrics := metrics.NewServiceMetrics(registry)
	repositoryMetrics := metrics.NewRepositoryMetrics(registry)
	loggers.InfoLogger.Info("Prometheus metrics initialized")

	adRepo := repository.NewSQLAdvertisementRepository(db, dialect, advertisementCache, cfg.Redis.TTL, repositoryMetrics)
	adService := service.NewAdvertisementService(adRepo, validation.New(), serviceMetrics)
	loggers.InfoLogger.Info("Service and repository layers initialized")

	r := router.NewRouter(adService, loggers, handlerMetrics, registry)
	loggers.InfoLogger.Info("Router and routes initialized")

	server := startServer(cfg, r, loggers)

	waitForShutdown(server, loggers)
}

func setupDatabase(cfg *config.Config, loggers *logger.Loggers) (*sql.DB, database.Dialect, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, target, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.FallbackURL, repository.EnsureSchema, loggers)
	if err != nil {
		loggers.ErrorLogger.Error("Failed to connect to database", utils.Err(err))
		os.Exit(1)
	}
	loggers.InfoLogger.Info("Connected to database", "target", target.String(), "dialect", string(target.Dialect))

	cleanup := func() {
		if err := db.Close(); err != nil {
			loggers.ErrorLogger.Error("Failed to close database connection", utils.Err(err))
		}
	}

	return db, target.Dialect, cleanup
}

// setupRedis returns a no-op cache unless a Redis address is configured.
func setupRedis(cfg *config.Config, loggers *logger.Loggers) (cache.Cache, func()) {
	if cfg.Redis.Addr == "" {
		loggers.InfoLogger.Info("Redis not configured, caching disabled")
		return cache.NewNoopCache(), func() {}
	}

	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		loggers.ErrorLogger.Error("Failed to connect to Redis", utils.Err(err))
		os.Exit(1)
	}
	loggers.InfoLogger.Info("Connected to Redis", "addr", cfg.Redis.Addr)

	cleanup := func() {
		if err := rdb.Close(); err != nil {
			loggers.ErrorLogger.Error("Failed to close Redis client", utils.Err(err))
		}
	}

	return cache.NewRedisCache(rdb), cleanup
}

func setupTracer(cfg *config.Config, loggers *logger.Loggers) *sdktrace.TracerProvider {
	tracerProvider, err := metrics.InitTracer(
		context.Background(),
		cfg.Tracing.ServiceName,
		cfg.Tracing.Environment,
		cfg.Tracing.Version,
		cfg.Tracing.Endpoint,
	)
	if err != nil {
		loggers.ErrorLogger.Error("Failed to initialize span exporter, tracing stays local", utils.Err(err))
	}
	loggers.InfoLogger.Info("OpenTelemetry Tracer initialized", "exporting", cfg.Tracing.Endpoint != "" && err == nil)
	return tracerProvider
}

func shutdownTracer(tp *sdktrace.TracerProvider, loggers *logger.Loggers) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tp.Shutdown(ctx); err != nil {
		loggers.ErrorLogger.Error("Failed to shut down tracer provider", utils.Err(err))
	}
}

func startServer(cfg *config.Config, handler http.Handler, loggers *logger.Loggers) *http.Server {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.Timeout,
		WriteTimeout: cfg.HTTP.Timeout,
		IdleTimeout:  4 * cfg.HTTP.Timeout,
	}

	go func() {
		loggers.InfoLogger.Info("Starting server", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggers.ErrorLogger.Error("Failed to start server", utils.Err(err))
			os.Exit(1)
		}
	}()

	return server
}

func waitForShutdown(server *http.Server, loggers *logger.Loggers) {
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	<-shutdownCh
	loggers.InfoLogger.Info("Shutdown signal received, shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		loggers.ErrorLogger.Error("Server forced to shutdown", utils.Err(err))
	} else {
		loggers.InfoLogger.Info("Server shutdown gracefully")
	}
}
