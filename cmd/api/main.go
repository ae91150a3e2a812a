package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/linkregistry/internal/config"
	"github.com/SergeiKhy/linkregistry/internal/handler"
	"github.com/SergeiKhy/linkregistry/internal/middleware"
	"github.com/SergeiKhy/linkregistry/internal/repository"
	"github.com/SergeiKhy/linkregistry/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	startedAt := time.Now()

	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Подключение к БД (postgres)
	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.StoreTimeout)
	err = db.EnsureSchema(ctx)
	cancel()
	if err != nil {
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}
	logger.Info("Connected to PostgreSQL")

	// Redis опционален: без него редиректы идут напрямую в БД
	cacheRepo := repository.NewNoopCacheRepository()
	if cfg.Redis.Enabled() {
		redisDB, err := repository.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() { _ = redisDB.Close() }()
		cacheRepo = repository.NewCacheRepository(redisDB)
		logger.Info("Connected to Redis", zap.Duration("ttl", cfg.Redis.TTL))
	} else {
		logger.Info("Redis is not configured, link cache disabled")
	}

	linkRepo := repository.NewLinkRepository(db)

	generator, err := service.NewCodeGenerator()
	if err != nil {
		logger.Fatal("Failed to init code generator", zap.Error(err))
	}

	// Процессор кликов (Worker Pool)
	clickProcessor := service.NewClickProcessor(linkRepo, logger, service.ClickProcessorConfig{
		Workers:        cfg.Clicks.Workers,
		BufferSize:     cfg.Clicks.BufferSize,
		MaxRetries:     cfg.Clicks.MaxRetries,
		AttemptTimeout: cfg.App.StoreTimeout,
	})
	clickProcessor.Start()

	registry := service.NewLinkRegistry(linkRepo, cacheRepo, generator, clickProcessor, logger, service.RegistryConfig{
		CacheTTL:     cfg.Redis.TTL,
		StoreTimeout: cfg.App.StoreTimeout,
	})

	// Middleware
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	})
	defer rateLimiter.Stop()

	var apiKeyMiddleware gin.HandlerFunc
	if len(cfg.Auth.APIKeys) > 0 {
		apiKeyMiddleware = middleware.RequireAPIKey(cfg.Auth.APIKeys)
		logger.Info("API key authentication enabled", zap.Int("keys_count", len(cfg.Auth.APIKeys)))
	}

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(registry, rateLimiter, apiKeyMiddleware, logger, handler.RouterConfig{
		Version:   cfg.App.Version,
		BaseURL:   cfg.App.BaseURL,
		StartedAt: startedAt,
		Clicks:    clickProcessor,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port), zap.String("version", cfg.App.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Сначала перестаём принимать запросы, затем дописываем клики, пулы закрываются в defer
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	clickProcessor.Stop()

	logger.Info("Server exited")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
