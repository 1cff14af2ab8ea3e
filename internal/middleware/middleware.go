package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"ticket-gate/internal/logger"
	"ticket-gate/internal/utils"
)

func EnhancedLogger(log *logger.Logger) gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		duration := param.Latency.String()
		status := fmt.Sprintf("%d", param.StatusCode)

		if param.StatusCode >= 500 {
			log.Error("API", fmt.Sprintf("%s %s - %s (%s) - ERROR: %s",
				param.Method, param.Path, status, duration, strings.TrimSpace(param.ErrorMessage)))
		} else if param.StatusCode >= 400 {
			log.Warn("API", fmt.Sprintf("%s %s - %s (%s) - Client Error",
				param.Method, param.Path, status, duration))
		} else {
			log.LogAPI(param.Method, param.Path, status, duration)
		}

		log.Debug("REQUEST", fmt.Sprintf("IP: %s, UserAgent: %s",
			param.ClientIP, param.Request.UserAgent()))

		// Output goes through our logger only.
		return ""
	})
}

// Recovery turns a panic into the same JSON error shape the API uses
// everywhere else.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error("PANIC", fmt.Sprintf("Recovered from panic on %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, utils.ErrorResponse("Internal server error"))
	})
}

func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RateLimit caps the whole API at rps requests per second. The PIN
// throttle in Redis is per client and sits behind this.
func RateLimit(log *logger.Logger, rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	retryAfter := time.Duration(float64(time.Second) / rps)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			log.LogSecurity("RATE_LIMIT", fmt.Sprintf("Rate limit exceeded for IP: %s", c.ClientIP()))
			c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, utils.ErrorResponse("Rate limit exceeded"))
			return
		}
		c.Next()
	}
}

func SecurityHeaders(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")

		// Organizer PINs travel in the body; flag anything arriving through a proxy.
		if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" && strings.HasPrefix(c.Request.URL.Path, "/api/check-in") {
			log.LogSecurity("PROXY_REQUEST", "Check-in via proxy from: "+fwd)
		}

		c.Next()
	}
}
