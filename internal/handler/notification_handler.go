package handler

import (
	"Circlet/internal/apperr"
	"Circlet/internal/auth"
	"Circlet/internal/db"
	"Circlet/internal/hub"
	"Circlet/internal/model"
	"Circlet/internal/repo"
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultNotificationPageSize = 20

// NotificationService is implemented by hub.NotificationDispatcher.
type NotificationService interface {
	Notify(ctx context.Context, in hub.NotifyInput) (*model.NotificationView, error)
	NotifyPostInteraction(ctx context.Context, typ model.NotificationType, senderID, recipientID, postID, commentID, content string) (*model.NotificationView, error)
	List(ctx context.Context, recipientID string, q repo.NotificationQuery) (*db.PaginatedResult[model.Notification], error)
	Stats(ctx context.Context, recipientID string) (*model.NotificationStats, error)
	UnreadCount(ctx context.Context, recipientID string) (int64, error)
	MarkRead(ctx context.Context, notificationID, recipientID string) error
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	Delete(ctx context.Context, notificationID, recipientID string) error
}

type NotificationHandler interface {
	List(c *gin.Context)
	UnreadCount(c *gin.Context)
	Stats(c *gin.Context)
	Create(c *gin.Context)
	MarkRead(c *gin.Context)
	MarkAllRead(c *gin.Context)
	Delete(c *gin.Context)
}

type notificationHandler struct {
	notifications NotificationService
}

func NewNotificationHandler(notifications NotificationService) NotificationHandler {
	return &notificationHandler{notifications: notifications}
}

// List supports ?page=, ?pageSize=, ?type= and ?unread=true.
func (h *notificationHandler) List(c *gin.Context) {
	page, err := pageParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	pageSize, err := strconv.ParseInt(c.DefaultQuery("pageSize", strconv.Itoa(defaultNotificationPageSize)), 10, 64)
	if err != nil || pageSize < 1 || pageSize > 100 {
		respondError(c, apperr.BadRequest("pageSize must be between 1 and 100"))
		return
	}

	query := repo.NotificationQuery{
		Page:       page,
		PageSize:   pageSize,
		Type:       model.NotificationType(c.Query("type")),
		UnreadOnly: c.Query("unread") == "true",
	}

	result, err := h.notifications.List(c.Request.Context(), auth.UserID(c), query)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result, "Notifications retrieved successfully")
}

func (h *notificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.notifications.UnreadCount(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, model.UnreadCountEvent{UnreadCount: count}, "Unread count retrieved successfully")
}

func (h *notificationHandler) Stats(c *gin.Context) {
	stats, err := h.notifications.Stats(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, stats, "Notification stats retrieved successfully")
}

// Create raises a notification from the caller. Call notifications are
// server-only. Post interactions with a postId get their text and preview
// built by the dispatcher.
func (h *notificationHandler) Create(c *gin.Context) {
	var req model.NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.BadRequest("invalid notification: %v", err))
		return
	}
	if !req.Type.Valid() {
		respondError(c, apperr.BadRequest("unknown notification type %q", req.Type))
		return
	}
	if !req.Type.UserRaisable() {
		respondError(c, apperr.Forbidden("%s notifications cannot be created through the API", req.Type))
		return
	}

	ctx := c.Request.Context()
	senderID := auth.UserID(c)

	var (
		view *model.NotificationView
		err  error
	)
	if req.Type.PostInteraction() && req.Metadata.PostID != "" {
		view, err = h.notifications.NotifyPostInteraction(ctx, req.Type, senderID, req.RecipientID,
			req.Metadata.PostID, req.Metadata.CommentID, req.Content)
	} else {
		if req.Message == "" {
			respondError(c, apperr.BadRequest("message is required"))
			return
		}
		view, err = h.notifications.Notify(ctx, hub.NotifyInput{
			Type:        req.Type,
			SenderID:    senderID,
			RecipientID: req.RecipientID,
			Message:     req.Message,
			Metadata:    req.Metadata,
		})
	}
	if err != nil {
		respondError(c, err)
		return
	}
	if view == nil {
		respond(c, http.StatusOK, nil, "Notification suppressed")
		return
	}
	respond(c, http.StatusCreated, view, "Notification created")
}

func (h *notificationHandler) MarkRead(c *gin.Context) {
	id := c.Param("id")
	if err := h.notifications.MarkRead(c.Request.Context(), id, auth.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, model.NotificationAckEvent{NotificationID: id, Success: true}, "Notification marked as read")
}

func (h *notificationHandler) MarkAllRead(c *gin.Context) {
	marked, err := h.notifications.MarkAllRead(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, model.AllNotificationsReadEvent{Success: true, MarkedCount: marked}, "All notifications marked as read")
}

func (h *notificationHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.notifications.Delete(c.Request.Context(), id, auth.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, model.NotificationAckEvent{NotificationID: id, Success: true}, "Notification deleted")
}
