package middleware

import (
	"log/slog"
	"net/http"

	"github.com/LedMarketing/OpenManus/models"
	"github.com/gin-gonic/gin"
)

// Recovery turns a handler panic into the 500 error envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.Error("panic recovered",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"panic", recovered,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error:   "internal server error",
		})
	})
}
