package api

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api")
	{
		api.GET("/health", h.health)
		api.GET("/items", h.listItemsHandler)
		api.GET("/items/:id", h.itemHandler)
		api.GET("/items/:id/qr.png", h.qrHandler)
	}
	r.GET("/item-image", h.itemImageHandler)
	r.GET("/"+strings.Trim(h.CompositePath, "/")+"/:file", h.compositeHandler)
}

// NewEngine returns a gin engine with panic recovery, slog request
// logging and the item image routes.
func NewEngine(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	RegisterRoutes(r, h)
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}
