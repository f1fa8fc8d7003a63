package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mnuel1/chat-fieldiq/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares.
func New(programs *handlers.ProgramHandler, analytics *handlers.AnalyticsHandler, chat *handlers.ChatHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	api := r.Group("/api")

	api.POST("/feed-programs", programs.Start)
	api.GET("/feed-programs/farmer/:id/active", programs.GetActive)
	api.GET("/feed-programs/farmer/:id/feed-product/active", programs.ActiveFeedProduct)
	api.PUT("/feed-programs/farmer/:id/complete", programs.Complete)
	api.PUT("/feed-programs/farmer/:id/incomplete", programs.Incomplete)

	api.POST("/feed-calculation-log", programs.CreateFeedCalculation)
	api.GET("/feed-calculation-log/farmer/:id", programs.GetFeedCalculation)
	api.PUT("/feed-calculation-log/farmer/:id", programs.UpdateFeedCalculation)

	api.GET("/growth-performance/farmer/:id", analytics.GrowthPerformance)
	api.GET("/feed-intake-behavior/farmer/:id", analytics.FeedIntakeBehavior)
	api.GET("/health-watch/farmer/:id", analytics.HealthWatch)

	api.POST("/chat-ai", chat.Turn)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
