package embedkey

import (
	"errors"
	"net/http"

	"bookingtms/internal/shared/utils/response"
	"bookingtms/internal/widgetconfig"
	"bookingtms/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequireEmbedKey resolves the embed key in the given path parameter and stores the widget in the context.
// Malformed keys are rejected with 400 without a store lookup, unknown keys with 404.
func RequireEmbedKey(resolver Resolver, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param(param)

		widget, err := resolver.Resolve(c.Request.Context(), key)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidEmbedKey):
				logger.GetDefault().LogEmbedKeyRejected(c.Request.Context(), "malformed", c.ClientIP())
				response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid widget key", nil, err.Error())
			case errors.Is(err, ErrEmbedKeyNotFound):
				logger.GetDefault().LogEmbedKeyRejected(c.Request.Context(), "unknown", c.ClientIP())
				response.RespondJSON(c, "error", http.StatusNotFound, "Widget not found", nil, err.Error())
			default:
				logger.GetDefault().LogHTTPError(c, err, http.StatusServiceUnavailable)
				response.RespondJSON(c, "error", http.StatusServiceUnavailable, "Widget lookup failed", nil, "please retry later")
			}
			c.Abort()
			return
		}

		c.Set(widgetconfig.ContextKeyWidget, widget)
		c.Next()
	}
}
