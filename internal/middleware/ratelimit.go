package middleware

import (
	"strconv"
	"strings"

	apperrors "shortlink-core/internal/errors"
	"shortlink-core/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

const (
	HeaderRemaining  = "X-Rate-Limit-Remaining"
	HeaderRetryAfter = "X-Rate-Limit-Retry-After-Seconds"
)

// RateLimit 按客户端限流的中间件，每个 limiter 持有自己策略下的全部令牌桶
func RateLimit(limiter *ratelimit.Limiter, skipPaths []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 跳过特定路径
		for _, path := range skipPaths {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}

		d := limiter.TryAcquire(ratelimit.ClientKey(c.Request))
		if !d.Allowed {
			secs := strconv.FormatInt(d.RetryAfterSeconds(), 10)
			c.Header(HeaderRetryAfter, secs)
			c.Header("Retry-After", secs)
			status, body := apperrors.NewBody(apperrors.ErrRateLimited, c.Request.URL.Path)
			c.AbortWithStatusJSON(status, body)
			return
		}

		// 多个限流器串联时报告最小的剩余额度
		remaining := d.Remaining
		if prev, err := strconv.Atoi(c.Writer.Header().Get(HeaderRemaining)); err == nil && prev < remaining {
			remaining = prev
		}
		c.Header(HeaderRemaining, strconv.Itoa(remaining))
		c.Next()
	}
}

// Passthrough 限流关闭时使用
func Passthrough() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
	}
}
