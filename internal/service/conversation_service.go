package service

import (
	"Circlet/internal/apperr"
	"Circlet/internal/db"
	"Circlet/internal/model"
	"Circlet/internal/repo"
	"context"
	"errors"
)

type ConversationService interface {
	Messages(ctx context.Context, userID, conversationID string, page int64) (*db.PaginatedResult[model.Message], error)
}

type conversationService struct {
	conversations repo.ConversationRepository
	messages      repo.MessageRepository
}

func NewConversationService(conversations repo.ConversationRepository, messages repo.MessageRepository) ConversationService {
	return &conversationService{
		conversations: conversations,
		messages:      messages,
	}
}

// Messages pages through a conversation, newest first. Only participants may read it.
func (s *conversationService) Messages(ctx context.Context, userID, conversationID string, page int64) (*db.PaginatedResult[model.Message], error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperr.NotFound("conversation %s not found", conversationID)
		}
		return nil, apperr.Upstream(err, "failed to load conversation")
	}
	if !conv.HasParticipant(userID) {
		return nil, apperr.Forbidden("not a participant of this conversation")
	}

	result, err := s.messages.FilterMessage(ctx, conversationID, page)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to load messages")
	}
	return result, nil
}
