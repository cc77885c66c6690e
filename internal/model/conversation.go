package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation represents a chat conversation in MongoDB.
// UnreadCounts holds exactly one entry per participant.
type Conversation struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Participants  []string           `json:"participants" bson:"participants"`
	UnreadCounts  []UnreadCount      `json:"unreadCounts" bson:"unread_counts"`
	LastMessage   *LastMessage       `json:"lastMessage,omitempty" bson:"last_message,omitempty"`
	LastMessageAt *time.Time         `json:"lastMessageAt,omitempty" bson:"last_message_at,omitempty"`
	CreatedAt     time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updated_at"`
}

// UnreadCount is one participant's unread counter
type UnreadCount struct {
	UserID string `json:"userId" bson:"user_id"`
	Count  int64  `json:"count" bson:"count"`
}

// LastMessage stores the most recent message preview
type LastMessage struct {
	MessageID string    `json:"messageId" bson:"message_id"`
	Content   string    `json:"content" bson:"content"`
	SenderID  string    `json:"senderId" bson:"sender_id"`
	Type      string    `json:"type" bson:"type"`
	SentAt    time.Time `json:"sentAt" bson:"sent_at"`
}

// NewConversation builds a conversation with a zeroed counter per participant.
func NewConversation(participants []string, now time.Time) Conversation {
	counts := make([]UnreadCount, 0, len(participants))
	for _, p := range participants {
		counts = append(counts, UnreadCount{UserID: p})
	}
	return Conversation{
		Participants: participants,
		UnreadCounts: counts,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// UnreadFor returns userID's counter, 0 when the user has no entry.
func (c *Conversation) UnreadFor(userID string) int64 {
	for _, uc := range c.UnreadCounts {
		if uc.UserID == userID {
			return uc.Count
		}
	}
	return 0
}
