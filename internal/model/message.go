package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
	MessageTypeFile  = "file"
)

// Message represents a chat message in MongoDB. Only ReadBy changes after insert.
type Message struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ConversationID primitive.ObjectID `json:"conversationId" bson:"conversation_id"`
	SenderID       string             `json:"senderId" bson:"sender_id"`
	Content        string             `json:"content" bson:"content"`
	Type           string             `json:"type" bson:"type"`
	ReadBy         []string           `json:"readBy" bson:"read_by"`
	CreatedAt      time.Time          `json:"createdAt" bson:"created_at"`
}

// IsReadBy reports whether userID is in the read-by set.
func (m *Message) IsReadBy(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// MessageView is a message as broadcast, with the sender's profile attached.
type MessageView struct {
	Message
	Sender *UserInfo `json:"sender,omitempty"`
}

// -----------------------------------------------------------------
// WebSocket / REST payloads
// -----------------------------------------------------------------

type SendMessageRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
	Content        string `json:"content" validate:"required,max=5000"`
	Type           string `json:"type,omitempty" validate:"omitempty,oneof=text image video file"`
}

type ConversationRefPayload struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

type NewMessageEvent struct {
	ConversationID string       `json:"conversationId"`
	Message        *MessageView `json:"message"`
}

type MessagesReadEvent struct {
	ConversationID string    `json:"conversationId"`
	ReadBy         string    `json:"readBy"`
	ReadAt         time.Time `json:"readAt"`
}

type UserTypingEvent struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

// ErrorPayload represents an error response sent to client via WebSocket
type ErrorPayload struct {
	Code    string `json:"code"`
	Error   string `json:"error"`
	Context string `json:"context,omitempty"`
}
