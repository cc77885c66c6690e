package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotificationLike          NotificationType = "like"
	NotificationComment       NotificationType = "comment"
	NotificationReply         NotificationType = "reply"
	NotificationShare         NotificationType = "share"
	NotificationFriendRequest NotificationType = "friend_request"
	NotificationFriendAccept  NotificationType = "friend_accept"
	NotificationMention       NotificationType = "mention"
	NotificationTag           NotificationType = "tag"
	NotificationIncomingCall  NotificationType = "incoming_call"
	NotificationMissedCall    NotificationType = "missed_call"
	NotificationNewContent    NotificationType = "new_content"
)

var notificationTypes = map[NotificationType]struct{}{
	NotificationLike:          {},
	NotificationComment:       {},
	NotificationReply:         {},
	NotificationShare:         {},
	NotificationFriendRequest: {},
	NotificationFriendAccept:  {},
	NotificationMention:       {},
	NotificationTag:           {},
	NotificationIncomingCall:  {},
	NotificationMissedCall:    {},
	NotificationNewContent:    {},
}

// Valid reports whether t belongs to the closed set of notification types.
func (t NotificationType) Valid() bool {
	_, ok := notificationTypes[t]
	return ok
}

// PostInteraction reports whether t is raised by someone acting on a post.
func (t NotificationType) PostInteraction() bool {
	switch t {
	case NotificationLike, NotificationComment, NotificationReply,
		NotificationShare, NotificationMention, NotificationTag:
		return true
	default:
		return false
	}
}

// UserRaisable reports whether a client may create a notification of type t.
// Call notifications only come from the call manager.
func (t NotificationType) UserRaisable() bool {
	switch t {
	case NotificationFriendRequest, NotificationFriendAccept, NotificationNewContent:
		return true
	default:
		return t.PostInteraction()
	}
}

// NotificationMetadata references the subject entity. Only the fields relevant
// to the notification type are set.
type NotificationMetadata struct {
	PostID         string `json:"postId,omitempty" bson:"post_id,omitempty"`
	CommentID      string `json:"commentId,omitempty" bson:"comment_id,omitempty"`
	CallID         string `json:"callId,omitempty" bson:"call_id,omitempty"`
	CallType       string `json:"callType,omitempty" bson:"call_type,omitempty"`
	ConversationID string `json:"conversationId,omitempty" bson:"conversation_id,omitempty"`
	ContentPreview string `json:"contentPreview,omitempty" bson:"content_preview,omitempty"`
}

// Notification represents a notification document in MongoDB
type Notification struct {
	ID          primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Type        NotificationType     `json:"type" bson:"type"`
	SenderID    string               `json:"senderId" bson:"sender_id"`
	RecipientID string               `json:"recipientId" bson:"recipient_id"`
	Message     string               `json:"message" bson:"message"`
	Metadata    NotificationMetadata `json:"metadata" bson:"metadata"`
	IsRead      bool                 `json:"isRead" bson:"is_read"`
	ReadAt      *time.Time           `json:"readAt,omitempty" bson:"read_at,omitempty"`
	CreatedAt   time.Time            `json:"createdAt" bson:"created_at"`
}

// NotificationView is a notification joined with its sender's profile.
type NotificationView struct {
	Notification `bson:",inline"`
	Sender       *UserInfo `json:"sender,omitempty" bson:"sender,omitempty"`
}

type NotificationTypeStat struct {
	Type   NotificationType `json:"type" bson:"_id"`
	Total  int64            `json:"total" bson:"total"`
	Unread int64            `json:"unread" bson:"unread"`
}

type NotificationStats struct {
	Total  int64                  `json:"total"`
	Unread int64                  `json:"unread"`
	ByType []NotificationTypeStat `json:"byType"`
}

// -----------------------------------------------------------------
// Payloads
// -----------------------------------------------------------------

// NotifyRequest raises a notification through the REST API. Post interactions
// carrying metadata.postId get their message and preview from Content; every
// other request must carry Message.
type NotifyRequest struct {
	Type        NotificationType     `json:"type" binding:"required"`
	RecipientID string               `json:"recipientId" binding:"required"`
	Message     string               `json:"message" binding:"max=500"`
	Content     string               `json:"content"`
	Metadata    NotificationMetadata `json:"metadata"`
}

type NotificationRefPayload struct {
	NotificationID string `json:"notificationId" validate:"required"`
}

type NotificationEvent struct {
	Notification *NotificationView `json:"notification"`
}

type NotificationAckEvent struct {
	NotificationID string `json:"notificationId"`
	Success        bool   `json:"success"`
}

type AllNotificationsReadEvent struct {
	Success     bool  `json:"success"`
	MarkedCount int64 `json:"markedCount"`
}

type UnreadCountEvent struct {
	UnreadCount int64 `json:"unreadCount"`
}
