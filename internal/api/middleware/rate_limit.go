package middleware

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"recipe-bot/internal/core/ratelimit"
	"recipe-bot/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit 以來源 IP 為身分的滑動視窗限流
func RateLimit(gate *ratelimit.Gate) gin.HandlerFunc {
	return rateLimit(gate, time.Now)
}

func rateLimit(gate *ratelimit.Gate, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !gate.Admit("ip:"+ip, now()) {
			common.LogInfo("Rate limit exceeded",
				zap.String("code", common.ErrCodeAdmissionDenied),
				zap.String("ip", ip),
				zap.String("path", c.Request.URL.Path),
			)

			retryAfter := int(math.Ceil(gate.Span().Seconds()))
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"code":        common.ErrCodeAdmissionDenied,
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}
