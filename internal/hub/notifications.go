package hub

import (
	"Circlet/internal/apperr"
	"Circlet/internal/db"
	"Circlet/internal/event"
	"Circlet/internal/metrics"
	"Circlet/internal/model"
	"Circlet/internal/repo"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const previewLength = 100

// NotifyInput describes one notification to create.
type NotifyInput struct {
	Type        model.NotificationType
	SenderID    string
	RecipientID string
	Message     string
	Metadata    model.NotificationMetadata
}

// NotificationDispatcher persists notifications and pushes them, with a
// fresh unread count, to the recipient's live endpoints.
type NotificationDispatcher struct {
	hub    *Hub
	repo   repo.NotificationRepository
	logger *zap.Logger
}

func NewNotificationDispatcher(h *Hub, notifications repo.NotificationRepository) *NotificationDispatcher {
	return &NotificationDispatcher{
		hub:    h,
		repo:   notifications,
		logger: h.logger.With(zap.String("component", "notifications")),
	}
}

func IsNotificationEvent(name string) bool {
	switch name {
	case event.EventMarkNotificationRead, event.EventMarkAllNotificationsRead, event.EventGetUnreadCount,
		event.EventDeleteNotification, event.EventSubscribeNotifications, event.EventUnsubscribeNotifications:
		return true
	default:
		return false
	}
}

// Notify creates a notification. Notifying yourself is a no-op and returns nil, nil.
func (d *NotificationDispatcher) Notify(ctx context.Context, in NotifyInput) (*model.NotificationView, error) {
	if in.SenderID == in.RecipientID {
		return nil, nil
	}
	if !in.Type.Valid() {
		return nil, apperr.BadRequest("unknown notification type %q", in.Type)
	}

	n := model.Notification{
		ID:          primitive.NewObjectID(),
		Type:        in.Type,
		SenderID:    in.SenderID,
		RecipientID: in.RecipientID,
		Message:     in.Message,
		Metadata:    in.Metadata,
		CreatedAt:   d.hub.now(),
	}
	if _, err := d.repo.Create(ctx, &n); err != nil {
		return nil, apperr.Upstream(err, "failed to store notification")
	}
	metrics.Notifications.WithLabelValues(string(n.Type)).Inc()

	view, err := d.repo.FindWithSender(ctx, n.ID.Hex())
	if err != nil {
		d.logger.Warn("notification sender not joined", zap.String("notification_id", n.ID.Hex()), zap.Error(err))
		view = &model.NotificationView{Notification: n}
	}

	if d.hub.IsOnline(in.RecipientID) {
		d.hub.emitToUser(in.RecipientID, event.EventNewNotification, model.NotificationEvent{Notification: view})
		d.pushUnreadCount(ctx, in.RecipientID)
	}
	d.hub.emitToRoom(NotificationRoom(in.RecipientID), event.EventNotificationCreated,
		model.NotificationEvent{Notification: view}, "")

	d.logger.Debug("notification dispatched",
		zap.String("notification_id", n.ID.Hex()),
		zap.String("type", string(n.Type)),
		zap.String("recipient_id", n.RecipientID),
	)
	return view, nil
}

// NotifyPostInteraction notifies a post's author about a like, comment, reply or share.
func (d *NotificationDispatcher) NotifyPostInteraction(ctx context.Context, typ model.NotificationType, senderID, recipientID, postID, commentID, content string) (*model.NotificationView, error) {
	return d.Notify(ctx, NotifyInput{
		Type:        typ,
		SenderID:    senderID,
		RecipientID: recipientID,
		Message:     interactionMessage(typ),
		Metadata: model.NotificationMetadata{
			PostID:         postID,
			CommentID:      commentID,
			ContentPreview: preview(content),
		},
	})
}

func interactionMessage(typ model.NotificationType) string {
	switch typ {
	case model.NotificationLike:
		return "liked your post"
	case model.NotificationComment:
		return "commented on your post"
	case model.NotificationReply:
		return "replied to your comment"
	case model.NotificationShare:
		return "shared your post"
	case model.NotificationMention:
		return "mentioned you"
	case model.NotificationTag:
		return "tagged you in a post"
	default:
		return "interacted with your post"
	}
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "..."
}

func (d *NotificationDispatcher) MarkRead(ctx context.Context, notificationID, recipientID string) error {
	if err := d.repo.MarkRead(ctx, notificationID, recipientID, d.hub.now()); err != nil {
		return storeError(err, "notification not found", "failed to mark notification read")
	}
	d.pushUnreadCount(ctx, recipientID)
	return nil
}

func (d *NotificationDispatcher) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	marked, err := d.repo.MarkAllRead(ctx, recipientID, d.hub.now())
	if err != nil {
		return 0, apperr.Upstream(err, "failed to mark notifications read")
	}
	d.pushUnreadCount(ctx, recipientID)
	return marked, nil
}

func (d *NotificationDispatcher) Delete(ctx context.Context, notificationID, recipientID string) error {
	if err := d.repo.Delete(ctx, notificationID, recipientID); err != nil {
		return storeError(err, "notification not found", "failed to delete notification")
	}
	d.pushUnreadCount(ctx, recipientID)
	return nil
}

// UnreadCount always queries the store.
func (d *NotificationDispatcher) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	count, err := d.repo.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, apperr.Upstream(err, "failed to count unread notifications")
	}
	return count, nil
}

func (d *NotificationDispatcher) List(ctx context.Context, recipientID string, q repo.NotificationQuery) (*db.PaginatedResult[model.Notification], error) {
	if q.Type != "" && !q.Type.Valid() {
		return nil, apperr.BadRequest("unknown notification type %q", q.Type)
	}
	result, err := d.repo.List(ctx, recipientID, q)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to list notifications")
	}
	return result, nil
}

func (d *NotificationDispatcher) Stats(ctx context.Context, recipientID string) (*model.NotificationStats, error) {
	stats, err := d.repo.Stats(ctx, recipientID)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to load notification stats")
	}
	return stats, nil
}

// pushUnreadCount sends a freshly queried count to every endpoint of recipientID.
func (d *NotificationDispatcher) pushUnreadCount(ctx context.Context, recipientID string) {
	count, err := d.UnreadCount(ctx, recipientID)
	if err != nil {
		d.logger.Warn("unread count not refreshed", zap.String("user_id", recipientID), zap.Error(err))
		return
	}
	d.hub.emitToUser(recipientID, event.EventUnreadCountUpdated, model.UnreadCountEvent{UnreadCount: count})
}

func (d *NotificationDispatcher) HandleEvent(ctx context.Context, c *Connection, ev event.WsEvent) error {
	userID := c.UserID()

	var err error
	switch ev.Event {
	case event.EventMarkNotificationRead:
		var ref model.NotificationRefPayload
		if err = d.hub.decode(ev, &ref); err == nil {
			if err = d.MarkRead(ctx, ref.NotificationID, userID); err == nil {
				d.hub.reply(c, event.EventNotificationMarkedRead, model.NotificationAckEvent{NotificationID: ref.NotificationID, Success: true})
			}
		}
	case event.EventMarkAllNotificationsRead:
		var marked int64
		if marked, err = d.MarkAllRead(ctx, userID); err == nil {
			d.hub.reply(c, event.EventAllNotificationsMarkedRead, model.AllNotificationsReadEvent{Success: true, MarkedCount: marked})
		}
	case event.EventDeleteNotification:
		var ref model.NotificationRefPayload
		if err = d.hub.decode(ev, &ref); err == nil {
			if err = d.Delete(ctx, ref.NotificationID, userID); err == nil {
				d.hub.reply(c, event.EventNotificationDeleted, model.NotificationAckEvent{NotificationID: ref.NotificationID, Success: true})
			}
		}
	case event.EventGetUnreadCount:
		var count int64
		if count, err = d.UnreadCount(ctx, userID); err == nil {
			d.hub.reply(c, event.EventUnreadCount, model.UnreadCountEvent{UnreadCount: count})
		}
	case event.EventSubscribeNotifications:
		d.hub.rooms.Join(c, NotificationRoom(userID))
	case event.EventUnsubscribeNotifications:
		d.hub.rooms.Leave(c, NotificationRoom(userID))
	}

	if err != nil {
		d.hub.replyError(c, event.EventNotificationError, err, ev.Event)
	}
	return err
}

// storeError maps repo.ErrNotFound to NOT_FOUND and anything else to an upstream failure.
func storeError(err error, notFound, failed string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return apperr.NotFound("%s", notFound)
	}
	return apperr.Upstream(err, failed)
}
