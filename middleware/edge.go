package middleware

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MrEthical07/bizAuth"
)

// EdgeLimiter counts requests per client IP. *bizAuth.Engine implements it.
type EdgeLimiter interface {
	CheckEdgeRate(ctx context.Context, ip string) error
}

// EdgeLimit rejects a client that exceeded its request budget with 429 and a
// Retry-After header.
func EdgeLimit(limiter EdgeLimiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		if err := limiter.CheckEdgeRate(c.Request.Context(), c.ClientIP()); err != nil {
			if e, ok := bizAuth.AsError(err); ok && e.Kind == bizAuth.KindRateLimited && e.WaitMinutes > 0 {
				c.Header("Retry-After", strconv.Itoa(e.WaitMinutes*60))
			}
			AbortWithError(c, logger, err)
			return
		}
		c.Next()
	}
}
