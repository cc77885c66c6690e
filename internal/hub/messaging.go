package hub

import (
	"Circlet/internal/apperr"
	"Circlet/internal/event"
	"Circlet/internal/model"
	"Circlet/internal/repo"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MessageRelay persists chat messages and fans them out to conversation rooms.
type MessageRelay struct {
	hub           *Hub
	conversations repo.ConversationRepository
	messages      repo.MessageRepository
	logger        *zap.Logger
}

func NewMessageRelay(h *Hub, conversations repo.ConversationRepository, messages repo.MessageRepository) *MessageRelay {
	return &MessageRelay{
		hub:           h,
		conversations: conversations,
		messages:      messages,
		logger:        h.logger.With(zap.String("component", "messaging")),
	}
}

func IsMessagingEvent(name string) bool {
	switch name {
	case event.EventSendMessage, event.EventMarkMessagesRead, event.EventTypingStart, event.EventTypingStop:
		return true
	default:
		return false
	}
}

func (m *MessageRelay) HandleEvent(ctx context.Context, c *Connection, ev event.WsEvent) error {
	var err error
	switch ev.Event {
	case event.EventSendMessage:
		var req model.SendMessageRequest
		if err = m.hub.decode(ev, &req); err == nil {
			_, err = m.Send(ctx, c.UserID(), req)
		}
	case event.EventMarkMessagesRead:
		var ref model.ConversationRefPayload
		if err = m.hub.decode(ev, &ref); err == nil {
			err = m.MarkRead(ctx, ref.ConversationID, c.UserID())
		}
	case event.EventTypingStart, event.EventTypingStop:
		var ref model.ConversationRefPayload
		if err = m.hub.decode(ev, &ref); err == nil {
			m.Typing(c, ref.ConversationID, ev.Event == event.EventTypingStart)
		}
	}

	if err != nil {
		m.hub.replyError(c, event.EventMessageError, err, ev.Event)
	}
	return err
}

// conversationFor loads a conversation and checks userID belongs to it.
func (m *MessageRelay) conversationFor(ctx context.Context, conversationID, userID string) (*model.Conversation, error) {
	conv, err := m.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperr.NotFound("conversation %s not found", conversationID)
		}
		return nil, apperr.Upstream(err, "failed to load conversation")
	}
	if !conv.HasParticipant(userID) {
		return nil, apperr.Forbidden("not a participant of this conversation")
	}
	return conv, nil
}

// Send stores a message and broadcasts new_message to the conversation room.
// Only the insert is fatal; the conversation summary and unread counters are
// updated best effort.
func (m *MessageRelay) Send(ctx context.Context, senderID string, req model.SendMessageRequest) (*model.MessageView, error) {
	if err := m.hub.validate.Struct(req); err != nil {
		return nil, apperr.BadRequest("invalid message: %v", err)
	}
	if req.Type == "" {
		req.Type = model.MessageTypeText
	}

	conv, err := m.conversationFor(ctx, req.ConversationID, senderID)
	if err != nil {
		return nil, err
	}

	msg := model.Message{
		ID:             primitive.NewObjectID(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        req.Content,
		Type:           req.Type,
		ReadBy:         []string{senderID},
		CreatedAt:      m.hub.now(),
	}
	if _, err := m.messages.InsertMessage(ctx, &msg); err != nil {
		return nil, apperr.Upstream(err, "failed to store message")
	}

	conversationID := conv.ID.Hex()
	logger := m.logger.With(zap.String("conversation_id", conversationID), zap.String("message_id", msg.ID.Hex()))

	if err := m.conversations.UpdateLastMessage(ctx, conversationID, model.LastMessage{
		MessageID: msg.ID.Hex(),
		Content:   msg.Content,
		SenderID:  senderID,
		Type:      msg.Type,
		SentAt:    msg.CreatedAt,
	}); err != nil {
		logger.Warn("last message not updated", zap.Error(err))
	}

	others := make([]string, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		if p != senderID {
			others = append(others, p)
		}
	}
	if len(others) > 0 {
		if err := m.conversations.IncrementUnread(ctx, conversationID, others); err != nil {
			logger.Warn("unread counters not incremented", zap.Error(err))
		}
	}

	// conversations created after connect have no room membership yet
	room := ConversationRoom(conversationID)
	for _, p := range conv.Participants {
		for _, ep := range m.hub.registry.Resolve(p) {
			m.hub.rooms.Join(ep, room)
		}
	}

	view := &model.MessageView{Message: msg, Sender: m.hub.userInfo(ctx, senderID)}
	delivered := m.hub.emitToRoom(room, event.EventNewMessage, model.NewMessageEvent{
		ConversationID: conversationID,
		Message:        view,
	}, "")

	logger.Debug("message relayed", zap.String("sender_id", senderID), zap.Int("delivered", delivered))
	return view, nil
}

// MarkRead adds readerID to every unread message from others, resets the
// reader's counter and tells the rest of the room. Repeating it is harmless.
func (m *MessageRelay) MarkRead(ctx context.Context, conversationID, readerID string) error {
	conv, err := m.conversationFor(ctx, conversationID, readerID)
	if err != nil {
		return err
	}
	conversationID = conv.ID.Hex()

	marked, err := m.messages.MarkRead(ctx, conversationID, readerID)
	if err != nil {
		return apperr.Upstream(err, "failed to mark messages read")
	}

	if err := m.conversations.ResetUnread(ctx, conversationID, readerID); err != nil {
		m.logger.Warn("unread counter not reset",
			zap.String("conversation_id", conversationID),
			zap.String("user_id", readerID),
			zap.Error(err),
		)
	}

	m.hub.emitToRoom(ConversationRoom(conversationID), event.EventMessagesRead, model.MessagesReadEvent{
		ConversationID: conversationID,
		ReadBy:         readerID,
		ReadAt:         m.hub.now(),
	}, readerID)

	m.logger.Debug("messages marked read",
		zap.String("conversation_id", conversationID),
		zap.String("user_id", readerID),
		zap.Int64("marked", marked),
	)
	return nil
}

// Typing relays a typing indicator. Nothing is sent unless the endpoint is in the room.
func (m *MessageRelay) Typing(ep Endpoint, conversationID string, typing bool) bool {
	room := ConversationRoom(conversationID)
	if !m.hub.rooms.IsMember(ep.ID(), room) {
		return false
	}

	m.hub.emitToRoom(room, event.EventUserTyping, model.UserTypingEvent{
		UserID:         ep.UserID(),
		ConversationID: conversationID,
		IsTyping:       typing,
	}, ep.UserID())
	return true
}
