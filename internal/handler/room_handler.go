package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gatat123/studioo-backend-sub000/internal/hub"
	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

// RoomHandler answers occupancy queries against the live room registry.
type RoomHandler struct {
	hub    *hub.Hub
	logger *zap.Logger
}

func NewRoomHandler(h *hub.Hub, logger *zap.Logger) *RoomHandler {
	return &RoomHandler{
		hub:    h,
		logger: logger,
	}
}

// GetMembers returns the current members of a topic in join order.
func (h *RoomHandler) GetMembers(c *gin.Context) {
	raw := c.Param("topic")
	if _, _, err := model.ParseTopic(raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "BAD_REQUEST", "message": "Invalid topic"},
		})
		return
	}
	topic := model.Topic(raw)

	c.JSON(http.StatusOK, gin.H{
		"topic":   topic.String(),
		"count":   h.hub.Registry().MemberCount(topic),
		"members": h.hub.Registry().Members(topic),
	})
}
