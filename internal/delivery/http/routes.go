package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/boodschap/backend/config"
)

// SetupRouter creates and configures the Gin router.
// metricsHandler may be nil, in which case /metrics is not mounted.
func SetupRouter(cfg *config.Config, handler *Handler, logger zerolog.Logger, recorder RequestRecorder, metricsHandler http.Handler) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware(logger))
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger, recorder))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP, cfg.RateLimit.Burst, logger))
	v1.Use(SessionMiddleware())
	{
		v1.GET("/retailers", handler.ListRetailers)
		v1.GET("/search", handler.Search)
		v1.GET("/delivery/slots", handler.DeliverySlots)
		v1.GET("/price-history/:retailer/:productId", handler.PriceHistory)

		basket := v1.Group("/basket", RequireSession())
		{
			basket.GET("", handler.GetBasket)
			basket.DELETE("", handler.ClearBasket)
			basket.POST("/items", handler.AddBasketItem)
			basket.DELETE("/items/:retailer/:productId", handler.RemoveBasketItem)
			basket.GET("/savings", handler.BasketSavings)
			basket.GET("/alternatives/:retailer/:productId", handler.LineAlternatives)

			basket.GET("/templates", handler.ListTemplates)
			basket.POST("/templates", handler.SaveTemplate)
			basket.POST("/templates/:id/apply", handler.ApplyTemplate)
			basket.DELETE("/templates/:id", handler.DeleteTemplate)
		}
	}

	return router
}
