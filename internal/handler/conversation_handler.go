package handler

import (
	"Circlet/internal/apperr"
	"Circlet/internal/auth"
	"Circlet/internal/model"
	"Circlet/internal/service"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// MessageSender is the realtime half of messaging: storing and fanning out.
type MessageSender interface {
	Send(ctx context.Context, senderID string, req model.SendMessageRequest) (*model.MessageView, error)
	MarkRead(ctx context.Context, conversationID, readerID string) error
}

type ConversationHandler interface {
	SendMessage(c *gin.Context)
	MarkRead(c *gin.Context)
	GetMessages(c *gin.Context)
}

type conversationHandler struct {
	relay   MessageSender
	service service.ConversationService
}

func NewConversationHandler(relay MessageSender, service service.ConversationService) ConversationHandler {
	return &conversationHandler{
		relay:   relay,
		service: service,
	}
}

func (h *conversationHandler) SendMessage(c *gin.Context) {
	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.BadRequest("invalid message: %v", err))
		return
	}

	msg, err := h.relay.Send(c.Request.Context(), auth.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, msg, "Message sent")
}

func (h *conversationHandler) MarkRead(c *gin.Context) {
	conversationID := c.Param("conversationId")
	if err := h.relay.MarkRead(c.Request.Context(), conversationID, auth.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"conversationId": conversationID}, "Messages marked as read")
}

func (h *conversationHandler) GetMessages(c *gin.Context) {
	page, err := pageParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	msgs, err := h.service.Messages(c.Request.Context(), auth.UserID(c), c.Param("conversationId"), page)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, msgs, "Messages retrieved successfully")
}
