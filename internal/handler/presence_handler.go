package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatat123/studioo-backend-sub000/internal/hub"
)

// PresenceHandler exposes the hub's live presence over REST for clients
// that are not holding a WebSocket, like dashboards and the project list.
type PresenceHandler struct {
	hub    *hub.Hub
	logger *zap.Logger
}

func NewPresenceHandler(h *hub.Hub, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{
		hub:    h,
		logger: logger,
	}
}

// GetOnlineUsers returns every identity with a live connection, optionally
// filtered to those located in a project.
func (h *PresenceHandler) GetOnlineUsers(c *gin.Context) {
	var projectID *uuid.UUID
	if raw := c.Query("projectId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   gin.H{"code": "BAD_REQUEST", "message": "Invalid project ID"},
			})
			return
		}
		projectID = &id
	}

	c.JSON(http.StatusOK, h.hub.Tracker().Online(projectID))
}

// GetUserStatus returns one identity's live presence snapshot.
func (h *PresenceHandler) GetUserStatus(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "BAD_REQUEST", "message": "Invalid user ID"},
		})
		return
	}

	presence, ok := h.hub.Tracker().Snapshot(userID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   gin.H{"code": "NOT_FOUND", "message": "User presence not found"},
		})
		return
	}

	c.JSON(http.StatusOK, presence)
}
