package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/LedMarketing/OpenManus/models"
	"github.com/gin-gonic/gin"
)

// respondError writes the {success:false, error} envelope for err.
// Unknown errors become a generic 500; the cause is only logged.
func respondError(c *gin.Context, err error) {
	appErr := models.AsAppError(err)
	status := appErr.Status()

	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"path", c.Request.URL.Path,
			"code", appErr.Code,
			"error", err,
		)
	}

	body := models.ErrorResponse{Success: false, Error: appErr.Message}
	if appErr.Code == models.ErrCodeRateLimited {
		body.RetryAfter = int(appErr.RetryAfter.Seconds())
	}
	c.JSON(status, body)
}

// bindJSON decodes the request body, reporting malformed input as a
// ValidationError.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, models.ValidationError("request body too large"))
			return false
		}
		respondError(c, models.ValidationError("invalid request body: "+err.Error()))
		return false
	}
	return true
}

// NotFound answers unmatched routes.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Success: false,
			Error:   "route not found",
		})
	}
}
