package repo

import (
	"Circlet/internal/db"
	"Circlet/internal/model"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type ConversationRepository interface {
	GetByID(ctx context.Context, conversationID string) (*model.Conversation, error)
	FindByParticipant(ctx context.Context, userID string) ([]model.Conversation, error)
	UpdateLastMessage(ctx context.Context, conversationID string, last model.LastMessage) error
	IncrementUnread(ctx context.Context, conversationID string, userIDs []string) error
	ResetUnread(ctx context.Context, conversationID string, userID string) error
}

type conversationRepository struct {
	mongoRepo *db.Repository[model.Conversation]
	logger    *zap.Logger
}

func NewConversationRepository(repo *db.Repository[model.Conversation], logger *zap.Logger) ConversationRepository {
	return &conversationRepository{
		mongoRepo: repo,
		logger:    logger.With(zap.String("repo", "conversations")),
	}
}

// GetByID returns ErrNotFound when no conversation has that id.
func (r *conversationRepository) GetByID(ctx context.Context, conversationID string) (*model.Conversation, error) {
	oid, err := objectID(conversationID)
	if err != nil {
		return nil, ErrNotFound
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	var conversation *model.Conversation
	err = withRetry(ctx, r.logger, "conversation.get", func(ctx context.Context) error {
		var findErr error
		conversation, findErr = r.mongoRepo.FindOne(ctx, bson.M{"_id": oid})
		return findErr
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.Debug("conversation not found", zap.String("conversation_id", conversationID))
			return nil, ErrNotFound
		}
		r.logger.Error("failed to fetch conversation",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}

	return conversation, nil
}

func (r *conversationRepository) FindByParticipant(ctx context.Context, userID string) ([]model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("participants", userID).Build()
	opts := options.Find().SetSort(bson.M{"last_message_at": -1})

	var conversations []model.Conversation
	err := withRetry(ctx, r.logger, "conversation.by_participant", func(ctx context.Context) error {
		var findErr error
		conversations, findErr = r.mongoRepo.FindAll(ctx, filter, opts)
		return findErr
	})
	if err != nil {
		r.logger.Error("failed to query conversations", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to get conversations: %w", err)
	}

	r.logger.Debug("conversations retrieved",
		zap.String("user_id", userID),
		zap.Int("count", len(conversations)),
	)
	return conversations, nil
}

func (r *conversationRepository) UpdateLastMessage(ctx context.Context, conversationID string, last model.LastMessage) error {
	oid, err := objectID(conversationID)
	if err != nil {
		return err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	return withRetry(ctx, r.logger, "conversation.last_message", func(ctx context.Context) error {
		_, err := r.mongoRepo.Update(ctx, bson.M{"_id": oid}, bson.M{
			"last_message":    last,
			"last_message_at": last.SentAt,
			"updated_at":      time.Now().UTC(),
		})
		return err
	})
}

// IncrementUnread adds exactly one to the counter of each listed participant.
func (r *conversationRepository) IncrementUnread(ctx context.Context, conversationID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	oid, err := objectID(conversationID)
	if err != nil {
		return err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"elem.user_id": bson.M{"$in": userIDs}}},
	})

	// Not retried: a timed-out $inc may already have been applied.
	_, err = r.mongoRepo.UpdateRaw(ctx, bson.M{"_id": oid},
		bson.M{"$inc": bson.M{"unread_counts.$[elem].count": 1}}, opts)
	if err != nil {
		r.logger.Error("failed to increment unread counters",
			zap.String("conversation_id", conversationID),
			zap.Strings("user_ids", userIDs),
			zap.Error(err),
		)
		return fmt.Errorf("increment unread: %w", err)
	}
	return nil
}

func (r *conversationRepository) ResetUnread(ctx context.Context, conversationID string, userID string) error {
	oid, err := objectID(conversationID)
	if err != nil {
		return err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"elem.user_id": userID}},
	})

	return withRetry(ctx, r.logger, "conversation.reset_unread", func(ctx context.Context) error {
		_, err := r.mongoRepo.UpdateRaw(ctx, bson.M{"_id": oid},
			bson.M{"$set": bson.M{"unread_counts.$[elem].count": 0}}, opts)
		return err
	})
}
