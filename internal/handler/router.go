package handler

import (
	"time"

	"github.com/SergeiKhy/linkregistry/internal/middleware"
	"github.com/SergeiKhy/linkregistry/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Version string
	BaseURL string
	// StartedAt момент старта процесса для uptime в /healthz
	StartedAt time.Time
	// Clicks источник статистики очереди кликов для /healthz
	Clicks service.ClickProcessor
}

func NewRouter(
	registry service.LinkRegistry,
	rateLimiter *middleware.RateLimiter,
	apiKeyMiddleware gin.HandlerFunc,
	logger *zap.Logger,
	config RouterConfig,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.StartedAt.IsZero() {
		config.StartedAt = time.Now()
	}

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Logger(logger),
		middleware.Metrics(),
	)

	// Служебные эндпоинты не ограничиваются
	router.GET("/healthz", HealthCheck(config.Version, config.StartedAt, config.Clicks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limited := router.Group("/")
	if rateLimiter != nil {
		limited.Use(rateLimiter.Middleware())
	}

	linkHandler := NewLinkHandler(registry, config.BaseURL, logger)

	// API v.1
	v1 := limited.Group("/api/v1")
	{
		// API ключ только для управления ссылками
		if apiKeyMiddleware != nil {
			v1.Use(apiKeyMiddleware)
		}

		v1.POST("/links", linkHandler.CreateLink)
		v1.GET("/links", linkHandler.ListLinks)
		v1.GET("/links/:code", linkHandler.GetLink)
		v1.DELETE("/links/:code", linkHandler.DeleteLink)
	}

	// Редирект без API key проверки
	limited.GET("/:code", linkHandler.Redirect)

	return router
}
