package handler

import (
	"context"
	"net/http"
	"time"

	"shortlink-core/internal/cache"
	"shortlink-core/internal/recorder"

	"github.com/gin-gonic/gin"
)

// Pinger 可以做存活检查的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler 健康检查
type HealthHandler struct {
	storage  Pinger
	cache    *cache.ResolutionCache
	recorder *recorder.Recorder
}

func NewHealthHandler(storage Pinger, resolution *cache.ResolutionCache, rec *recorder.Recorder) *HealthHandler {
	return &HealthHandler{storage: storage, cache: resolution, recorder: rec}
}

// HealthCheck GET /health，存储不可用时返回 503，Redis 不可用只标记为降级
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{"storage": "up", "cache": "up"}
	overall := "healthy"

	if err := h.storage.Ping(ctx); err != nil {
		checks["storage"] = err.Error()
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	if err := h.cache.HealthCheck(ctx); err != nil {
		checks["cache"] = err.Error()
		if status == http.StatusOK {
			overall = "degraded"
		}
	}

	c.JSON(status, gin.H{
		"status":    overall,
		"checks":    checks,
		"cache":     h.cache.Stats(),
		"recorder":  h.recorder.Stats(),
		"timestamp": time.Now(),
	})
}
