package middleware

import (
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/LedMarketing/OpenManus/models"
	"github.com/LedMarketing/OpenManus/ratelimit"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit admits each request through the per-IP fixed-window gate.
//
// Rejections answer 429 with {success:false, error, retryAfter} and a
// Retry-After header. Every response carries X-RateLimit-Limit,
// X-RateLimit-Remaining and X-RateLimit-Reset. Reject logs are sampled.
func RateLimit(gate *ratelimit.FixedWindow) gin.HandlerFunc {
	logRejects := &rate.Sometimes{First: 1, Interval: 10 * time.Second}
	var rejected atomic.Int64

	return func(c *gin.Context) {
		ip := c.ClientIP()
		d := gate.Admit(ip)

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(gate.Limit()))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			n := rejected.Add(1)
			logRejects.Do(func() {
				slog.Warn("rate limit exceeded",
					"ip", ip,
					"path", c.Request.URL.Path,
					"retryAfter", d.RetryAfterSeconds(),
					"rejectedTotal", n,
				)
			})

			secs := d.RetryAfterSeconds()
			h.Set("Retry-After", strconv.Itoa(secs))
			appErr := models.RateLimitedError(d.RetryAfter)
			c.AbortWithStatusJSON(appErr.Status(), models.ErrorResponse{
				Success:    false,
				Error:      appErr.Message,
				RetryAfter: secs,
			})
			return
		}

		c.Next()
	}
}
