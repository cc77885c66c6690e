package repo

import (
	"Circlet/internal/db"
	"Circlet/internal/model"
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type MessageRepository interface {
	InsertMessage(ctx context.Context, msg *model.Message) (string, error)
	MarkRead(ctx context.Context, conversationID string, readerID string) (int64, error)
	FilterMessage(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error)
}

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

func NewMessageRepository(repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo: repo,
		logger:    logger.With(zap.String("repo", "messages")),
	}
}

// -----------------------------------------------------------------------------
// InsertMessage
// -----------------------------------------------------------------------------

func (m *messageRepository) InsertMessage(ctx context.Context, msg *model.Message) (string, error) {
	if msg == nil {
		return "", ErrInvalidMessage
	}
	if msg.ConversationID.IsZero() {
		return "", ErrInvalidChannelID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}

	insertedID := msg.ID.Hex()
	err := withRetry(ctx, m.logger, "message.insert", insertOnce(m.logger, "message.insert", func(ctx context.Context) error {
		result, err := m.mongoRepo.Create(ctx, *msg)
		if err != nil {
			return err
		}
		if id := insertedHex(result); id != "" {
			insertedID = id
		}
		return nil
	}))
	if err != nil {
		m.logger.Error("failed to insert message after all retries",
			zap.Error(err),
			zap.String("conversation_id", msg.ConversationID.Hex()),
		)
		return "", fmt.Errorf("insert message failed: %w", err)
	}

	m.logger.Debug("message inserted",
		zap.String("inserted_id", insertedID),
		zap.String("conversation_id", msg.ConversationID.Hex()),
	)
	return insertedID, nil
}

// -----------------------------------------------------------------------------
// MarkRead adds readerID to read_by on every message in the conversation the
// reader did not send and has not read yet. Returns the number of messages updated.
// -----------------------------------------------------------------------------

func (m *messageRepository) MarkRead(ctx context.Context, conversationID string, readerID string) (int64, error) {
	fb := db.NewFilter().
		ObjectID("conversation_id", conversationID).
		Ne("sender_id", readerID)
	if err := fb.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	filter := fb.Build()
	filter["read_by"] = bson.M{"$ne": readerID}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var modified int64
	err := withRetry(ctx, m.logger, "message.mark_read", func(ctx context.Context) error {
		res, err := m.mongoRepo.UpdateManyRaw(ctx, filter, bson.M{"$addToSet": bson.M{"read_by": readerID}})
		if err != nil {
			return err
		}
		modified = res.ModifiedCount
		return nil
	})
	if err != nil {
		m.logger.Error("failed to mark messages read",
			zap.String("conversation_id", conversationID),
			zap.String("reader_id", readerID),
			zap.Error(err),
		)
		return 0, fmt.Errorf("mark messages read: %w", err)
	}

	return modified, nil
}

// -----------------------------------------------------------------------------
// FilterMessage
// -----------------------------------------------------------------------------

func (m *messageRepository) FilterMessage(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error) {
	if conversationID == "" {
		return nil, ErrInvalidChannelID
	}

	fb := db.NewFilter().ObjectID("conversation_id", conversationID)
	if err := fb.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	filter := fb.Build()

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	m.logger.Debug("filtering messages",
		zap.String("conversation_id", conversationID),
		zap.Int64("page", page),
	)

	var result *db.PaginatedResult[model.Message]
	err := withRetry(ctx, m.logger, "message.filter", func(ctx context.Context) error {
		var findErr error
		result, findErr = m.mongoRepo.FindWithPagination(ctx, filter, db.PaginationParams{
			Page:     page,
			PageSize: messagesPageSize,
			SortBy:   "created_at",
			SortDesc: true,
		})
		return findErr
	})
	if err != nil {
		return nil, m.handleReadError(err, conversationID)
	}

	m.logger.Debug("messages filtered successfully",
		zap.String("conversation_id", conversationID),
		zap.Int("count", len(result.Data)),
		zap.Int64("total", result.Total),
		zap.Int64("total_pages", result.TotalPages),
	)
	return result, nil
}

func (m *messageRepository) handleReadError(err error, conversationID string) error {
	if errors.Is(err, ErrOperationTimeout) {
		m.logger.Error("read timeout", zap.String("conversation_id", conversationID))
		return err
	}

	if errors.Is(err, context.Canceled) {
		m.logger.Debug("read cancelled", zap.String("conversation_id", conversationID))
		return err
	}

	m.logger.Error("read failed", zap.Error(err), zap.String("conversation_id", conversationID))
	return fmt.Errorf("filter messages failed: %w", err)
}
