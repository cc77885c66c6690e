package event

import (
	"encoding/json"
	"fmt"
)

// WsEvent is the envelope for every frame in either direction.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New marshals payload into an envelope named name.
func New(name string, payload any) (WsEvent, error) {
	if payload == nil {
		return WsEvent{Event: name}, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return WsEvent{}, fmt.Errorf("marshal %s payload: %w", name, err)
	}

	return WsEvent{Event: name, Payload: raw}, nil
}

// Decode unmarshals the payload into v. An absent payload decodes as {}.
func (e WsEvent) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// Presence - Server to Client
const (
	EventUserStatusChange = "user_status_change"
)

// Messaging - Client to Server
const (
	EventTypingStart      = "typing_start"
	EventTypingStop       = "typing_stop"
	EventMarkMessagesRead = "mark_messages_read"
	EventSendMessage      = "send_message"
)

// Messaging - Server to Client
const (
	EventNewMessage   = "new_message"
	EventMessagesRead = "messages_read"
	EventUserTyping   = "user_typing"
	EventMessageError = "message_error"
)

// Notifications - Client to Server
const (
	EventMarkNotificationRead     = "mark_notification_read"
	EventMarkAllNotificationsRead = "mark_all_notifications_read"
	EventGetUnreadCount           = "get_unread_count"
	EventDeleteNotification       = "delete_notification"
	EventSubscribeNotifications   = "subscribe_notifications"
	EventUnsubscribeNotifications = "unsubscribe_notifications"
)

// Notifications - Server to Client
const (
	EventNewNotification            = "new_notification"
	EventNotificationCreated        = "notification_created"
	EventNotificationMarkedRead     = "notification_marked_read"
	EventAllNotificationsMarkedRead = "all_notifications_marked_read"
	EventUnreadCountUpdated         = "unread_count_updated"
	EventUnreadCount                = "unread_count"
	EventNotificationDeleted        = "notification_deleted"
	EventNotificationError          = "notification_error"
)
