package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"office-service/internal/service"
)

// OfficeHandler exposes read-only room state for debugging and admin views.
type OfficeHandler struct {
	office *service.OfficeService
	logger *zap.Logger
}

func NewOfficeHandler(office *service.OfficeService, logger *zap.Logger) *OfficeHandler {
	return &OfficeHandler{office: office, logger: logger}
}

// GetRoom returns the current player list of a workspace office room.
func (h *OfficeHandler) GetRoom(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("workspaceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "BAD_REQUEST", "message": "Invalid workspace ID"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"players": h.office.Snapshot(workspaceID)})
}
