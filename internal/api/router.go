package api

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	ServiceName    string
	AllowedOrigins []string
}

func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	if err := registerValidators(h.catalog); err != nil {
		logger.Panic("Failed to register request validators", zap.Error(err))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	// otelgin goes first so later middleware sees the request span.
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(LoggerMiddleware(logger))
	router.Use(MetricsMiddleware())
	router.Use(CORSMiddleware(cfg.AllowedOrigins))

	router.GET("/health", h.Health)
	router.GET("/metrics", PrometheusHandler())

	router.GET("/config/products", h.ListProducts)
	router.POST("/auth/google", h.GoogleAuth)

	authed := router.Group("/", h.AuthMiddleware())
	authed.POST("/orders/preview", h.PreviewOrder)
	authed.POST("/orders", h.CreateOrder)
	authed.POST("/checkout", h.Checkout)
	authed.GET("/orders/me", RequireUser(), h.ListMyOrders)
	authed.GET("/orders/:id", h.GetOrder)
	authed.POST("/payments/:id/confirm", h.ConfirmPayment)
	authed.GET("/auth/me", RequireUser(), h.Me)

	return router
}
