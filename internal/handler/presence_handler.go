package handler

import (
	"Circlet/internal/model"
	"net/http"

	"github.com/gin-gonic/gin"
)

// PresenceReader answers who is connected right now.
type PresenceReader interface {
	IsOnline(userID string) bool
	OnlineUsers() []string
}

type PresenceHandler interface {
	GetOnlineUsers(c *gin.Context)
	GetOnlineStatus(c *gin.Context)
}

type presenceHandler struct {
	presence PresenceReader
}

func NewPresenceHandler(presence PresenceReader) PresenceHandler {
	return &presenceHandler{presence: presence}
}

func (h *presenceHandler) GetOnlineUsers(c *gin.Context) {
	users := h.presence.OnlineUsers()
	respond(c, http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	}, "Online users retrieved successfully")
}

func (h *presenceHandler) GetOnlineStatus(c *gin.Context) {
	userID := c.Param("userId")
	respond(c, http.StatusOK, model.OnlineStatus{
		UserID:   userID,
		IsOnline: h.presence.IsOnline(userID),
	}, "Online status retrieved successfully")
}
