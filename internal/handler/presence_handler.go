package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"office-service/internal/repository"
	"office-service/internal/service"
)

// PresenceHandler exposes the online set over REST for the team roster and
// dashboard badges.
type PresenceHandler struct {
	presence *service.PresenceService
	repo     *repository.PresenceRepository
	logger   *zap.Logger
}

func NewPresenceHandler(presence *service.PresenceService, repo *repository.PresenceRepository, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{
		presence: presence,
		repo:     repo,
		logger:   logger,
	}
}

// GetOnlineUsers returns the workspace's online user IDs.
func (h *PresenceHandler) GetOnlineUsers(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("workspaceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "BAD_REQUEST", "message": "Invalid workspace ID"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": h.presence.Snapshot(workspaceID)})
}

// GetUserStatus returns one user's online flag, with the last-seen time
// from the database when they are offline.
func (h *PresenceHandler) GetUserStatus(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("workspaceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "BAD_REQUEST", "message": "Invalid workspace ID"},
		})
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "BAD_REQUEST", "message": "Invalid user ID"},
		})
		return
	}

	online := h.presence.IsOnline(workspaceID, userID)
	resp := gin.H{"online": online}

	if !online {
		if presence, err := h.repo.GetUserStatus(userID); err == nil {
			resp["lastSeen"] = presence.LastSeen
		}
	}

	c.JSON(http.StatusOK, resp)
}
