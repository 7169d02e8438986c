package handler

import (
	"net/http"

	"github.com/LedMarketing/OpenManus/history"
	"github.com/LedMarketing/OpenManus/models"
	"github.com/gin-gonic/gin"
)

// GetHistory returns a handler for GET /api/history/:session.
func GetHistory(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := history.NormalizeID(c.Param("session"))
		if !ok {
			respondError(c, models.ValidationError("invalid session id"))
			return
		}

		exchanges, found := store.Get(id)
		if !found {
			respondError(c, models.NewAppError(models.ErrCodeNotFound, "session not found", nil))
			return
		}

		c.JSON(http.StatusOK, models.HistoryResponse{
			Success:   true,
			SessionID: id,
			History:   exchanges,
		})
	}
}

// DeleteHistory returns a handler for DELETE /api/history/:session.
func DeleteHistory(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := history.NormalizeID(c.Param("session"))
		if !ok {
			respondError(c, models.ValidationError("invalid session id"))
			return
		}
		store.Delete(id)
		c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
	}
}
