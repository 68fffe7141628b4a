package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/common"
)

// New builds the HTTP engine with middleware and routes wired. health
// is called by /healthz to verify the database is reachable.
func New(batchH *BatchHandler, aliasH *AliasHandler, health func(context.Context) error, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLog(logger))

	r.GET("/healthz", func(c *gin.Context) {
		if err := health(c.Request.Context()); err != nil {
			fail(c, http.StatusServiceUnavailable, "database unreachable")
			return
		}
		success(c, gin.H{"status": "ok"})
	})

	RegisterRoutes(r, batchH, aliasH)
	return r
}

func RegisterRoutes(r *gin.Engine, batchH *BatchHandler, aliasH *AliasHandler) {
	api := r.Group("/api/v1")
	{
		batches := api.Group("/batches")
		{
			batches.POST("", batchH.Create)
			batches.GET("", batchH.List)
			batches.GET("/:id", batchH.Get)
			batches.GET("/:id/export", batchH.Export)
			batches.PATCH("/:id/fields/:key", batchH.PatchField)
			batches.POST("/:id/review", batchH.MarkReviewed)
			batches.POST("/:id/commit", batchH.Commit)
			batches.POST("/:id/reject", batchH.Reject)
			batches.DELETE("/:id", batchH.Delete)
		}
		api.POST("/diagnose", batchH.Diagnose)
		aliases := api.Group("/aliases")
		{
			aliases.GET("", aliasH.List)
			aliases.PATCH("/:id", aliasH.Patch)
		}
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), id))
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func requestLog(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http.request",
			"request_id", common.RequestIDFromContext(c.Request.Context()),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}
