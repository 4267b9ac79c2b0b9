package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter wires middleware and routes. Call gin.SetMode before it.
func SetupRouter(h *Handler, log *zap.Logger) *gin.Engine {
	r := gin.New()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	{
		api.POST("/transactions", h.SubmitTransaction)

		accounts := api.Group("/accounts")
		{
			accounts.GET("", h.ListAccounts)
			accounts.GET("/:client", h.GetAccount)
		}

		api.GET("/stats", h.GetStats)

		snapshots := api.Group("/snapshots")
		{
			snapshots.POST("", h.ExportSnapshot)
			snapshots.GET("/:run_no", h.GetSnapshot)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
