package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CallStatus string

const (
	CallStatusRinging  CallStatus = "ringing"
	CallStatusActive   CallStatus = "active"
	CallStatusRejected CallStatus = "rejected"
	CallStatusMissed   CallStatus = "missed"
	CallStatusEnded    CallStatus = "ended"
)

// Terminal reports whether no further transition is possible.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusRejected, CallStatusMissed, CallStatusEnded:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is allowed.
// ringing -> ended covers a caller hanging up before the call is answered.
func (s CallStatus) CanTransition(to CallStatus) bool {
	switch s {
	case CallStatusRinging:
		return to == CallStatusActive || to == CallStatusRejected ||
			to == CallStatusMissed || to == CallStatusEnded
	case CallStatusActive:
		return to == CallStatusEnded
	default:
		return false
	}
}

// Call is the durable mirror of a call attempt (calls collection).
type Call struct {
	ID             primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	CallID         string             `json:"callId" bson:"call_id"`
	CallerID       string             `json:"callerId" bson:"caller_id"`
	RecipientID    string             `json:"recipientId" bson:"recipient_id"`
	CallType       string             `json:"callType" bson:"call_type"` // "audio" or "video"
	ConversationID string             `json:"conversationId,omitempty" bson:"conversation_id,omitempty"`
	Status         CallStatus         `json:"status" bson:"status"`
	Participants   []string           `json:"participants" bson:"participants"`
	CreatedAt      time.Time          `json:"createdAt" bson:"created_at"`
	AnsweredAt     *time.Time         `json:"answeredAt,omitempty" bson:"answered_at,omitempty"`
	EndedAt        *time.Time         `json:"endedAt,omitempty" bson:"ended_at,omitempty"`
	Duration       int64              `json:"duration" bson:"duration"` // seconds
	EndReason      string             `json:"endReason,omitempty" bson:"end_reason,omitempty"`
	EndedBy        string             `json:"endedBy,omitempty" bson:"ended_by,omitempty"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updated_at"`
}

// HasParticipant reports whether userID is the caller, the recipient or a joined participant.
func (c *Call) HasParticipant(userID string) bool {
	if c.CallerID == userID || c.RecipientID == userID {
		return true
	}
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------
// WebSocket Event Payloads - Client to Server
// -----------------------------------------------------------------

type CallInitiatePayload struct {
	RecipientID    string `json:"recipientId" validate:"required"`
	CallType       string `json:"callType" validate:"required,oneof=audio video"`
	ConversationID string `json:"conversationId,omitempty"`
}

type CallAcceptPayload struct {
	CallID string `json:"callId" validate:"required"`
}

type CallRejectPayload struct {
	CallID string `json:"callId" validate:"required"`
	Reason string `json:"reason,omitempty"`
}

type CallEndPayload struct {
	CallID string `json:"callId" validate:"required"`
	Reason string `json:"reason,omitempty"`
}

type CallLookupPayload struct {
	CallID string `json:"callId" validate:"required"`
}

// SignalPayload carries an opaque WebRTC blob (offer, answer or ICE candidate).
type SignalPayload struct {
	CallID      string         `json:"callId" validate:"required"`
	RecipientID string         `json:"recipientId" validate:"required"`
	Offer       map[string]any `json:"offer,omitempty"`
	Answer      map[string]any `json:"answer,omitempty"`
	Candidate   map[string]any `json:"candidate,omitempty"`
}

// -----------------------------------------------------------------
// WebSocket Event Payloads - Server to Client
// -----------------------------------------------------------------

// CallIncomingEvent is sent to every recipient endpoint
type CallIncomingEvent struct {
	CallID         string    `json:"callId"`
	CallerID       string    `json:"callerId"`
	RecipientID    string    `json:"recipientId"`
	CallType       string    `json:"callType"`
	ConversationID string    `json:"conversationId,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	CallerInfo     *UserInfo `json:"callerInfo,omitempty"`
}

type CallInitiatedEvent struct {
	CallID          string `json:"callId"`
	RecipientOnline bool   `json:"recipientOnline"`
}

type CallAcceptedEvent struct {
	CallID        string    `json:"callId"`
	RecipientID   string    `json:"recipientId"`
	RecipientInfo *UserInfo `json:"recipientInfo,omitempty"`
}

type CallRejectedEvent struct {
	CallID      string `json:"callId"`
	RecipientID string `json:"recipientId"`
	Reason      string `json:"reason"`
}

type CallEndedEvent struct {
	CallID   string `json:"callId"`
	EndedBy  string `json:"endedBy"`
	Reason   string `json:"reason"`
	Duration int64  `json:"duration"` // seconds
}

type CallFailedEvent struct {
	CallID  string `json:"callId"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type CallErrorEvent struct {
	CallID string `json:"callId,omitempty"`
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
}

type CallInfoEvent struct {
	CallID   string `json:"callId"`
	CallData *Call  `json:"callData"`
}

type ActiveCallStatusEvent struct {
	HasActiveCall bool  `json:"hasActiveCall"`
	CallData      *Call `json:"callData"`
}

// SignalForwardEvent is what the named recipient receives for a relayed blob.
type SignalForwardEvent struct {
	CallID     string         `json:"callId"`
	Offer      map[string]any `json:"offer,omitempty"`
	Answer     map[string]any `json:"answer,omitempty"`
	Candidate  map[string]any `json:"candidate,omitempty"`
	CallerID   string         `json:"callerId,omitempty"`
	AnswererID string         `json:"answererId,omitempty"`
	SenderID   string         `json:"senderId,omitempty"`
}
