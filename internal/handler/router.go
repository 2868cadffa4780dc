package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tastetrail/internal/middleware"
)

// NewRouter wires the HTTP surface.
func NewRouter(log *zap.Logger, ranking *RankingHandler, analytics *AnalyticsHandler, imports *ImportHandler, ops *OpsHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	{
		v1.POST("/rankings", ranking.Submit)
		v1.GET("/dishes/:id/summary", analytics.DishSummary)
		v1.POST("/imports", imports.Create)
		v1.GET("/imports/:id", imports.Get)

		opsGroup := v1.Group("/ops")
		{
			opsGroup.GET("/outbox/depth", ops.OutboxDepth)
			opsGroup.GET("/deadletters/depth", ops.DeadLetterDepth)
			opsGroup.GET("/breakers", ops.Breakers)
		}
	}

	return router
}
