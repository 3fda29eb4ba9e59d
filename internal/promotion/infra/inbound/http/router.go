package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterPromotionRoutes(r *gin.Engine, handler *PromotionHandler) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	promotions := r.Group("/promotions")
	{
		promotions.GET("", handler.ListPromotions)
		promotions.PUT("/:id", handler.UpsertPromotion)
	}

	r.GET("/applications", handler.ListApplications)
	r.GET("/processed-events/:id", handler.GetProcessedEvent)
	r.GET("/outbox", handler.ListOutbox)
	r.POST("/events/transaction-posted", handler.InjectTransactionPosted)
}
