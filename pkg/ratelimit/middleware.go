package ratelimit

import (
	"net/http"
	"strconv"
	"strings"

	"bookingtms/internal/shared/utils/response"
	"bookingtms/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Middleware enforces the per-client limit of the route class. Widget routes are
// counted per client and widget, so one busy venue page cannot starve another.
func Middleware(rateLimiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		limitType := getRateLimitType(c.Request.Method, c.FullPath())

		result := rateLimiter.IsAllowed(c.Request.Context(), clientIP, c.Param("widgetKey"), limitType)

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime, 10))

		if !result.Allowed {
			logger.GetDefault().LogRateLimitExceeded(c.Request.Context(), clientIP, c.FullPath())
			c.Header("Retry-After", strconv.FormatInt(result.RetryAfterSeconds(rateLimiter.now()), 10))
			response.RespondJSON(c, response.StatusError, http.StatusTooManyRequests,
				"Rate limit exceeded", nil, map[string]interface{}{
					"limit":      result.Limit,
					"reset_time": result.ResetTime,
				})
			c.Abort()
			return
		}

		c.Next()
	}
}

// getRateLimitType maps a route pattern to its limit class
func getRateLimitType(method, path string) RateLimitType {
	switch {
	case path == "":
		// unmatched routes
		return RateLimitTypeDefault

	case strings.HasPrefix(path, "/health"),
		strings.HasPrefix(path, "/ping"):
		return RateLimitTypeHealth

	case strings.Contains(path, "/admin/"):
		return RateLimitTypeAdmin

	// Booking submission is the write path customers can hammer
	case strings.HasSuffix(path, "/bookings") && method == http.MethodPost:
		return RateLimitTypeBookingCritical

	// Booking lookups and availability polling
	case strings.Contains(path, "/bookings"),
		strings.Contains(path, "/availability"):
		return RateLimitTypeBooking

	// Widget config, embed pages and loader
	case strings.Contains(path, "/widgets/"),
		strings.HasPrefix(path, "/embed"):
		return RateLimitTypePublic

	default:
		return RateLimitTypeDefault
	}
}
