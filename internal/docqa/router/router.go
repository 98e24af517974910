// Package router provides QA service routing.
package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/imezh/RAG-agent/internal/docqa/handler"
)

// Register registers the QA service routes on the engine.
func Register(engine *gin.Engine, qaHandler *handler.QAHandler) {
	logger.Info("Registering QA routes...")

	engine.Use(gin.Recovery())
	engine.Use(requestID())
	engine.Use(accessLog())

	engine.GET("/healthz", qaHandler.Healthz)
	engine.GET("/metrics", qaHandler.Metrics)

	v1 := engine.Group("/v1")
	{
		qa := v1.Group("/qa")
		{
			qa.POST("/query", qaHandler.Query)
			qa.POST("/index/directory", qaHandler.IndexDirectory)
			qa.GET("/stats", qaHandler.Stats)
		}
	}

	logger.Info("HTTP routes registered")
}

// requestID assigns a request ID when the client did not send one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// accessLog logs one structured line per request. Health and metrics
// probes are skipped to keep the log readable.
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		logger.Infow("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"request_id", c.GetString("request_id"),
		)
	}
}
