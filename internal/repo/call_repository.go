package repo

import (
	"Circlet/internal/db"
	"Circlet/internal/model"
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// CallRepository mirrors call sessions into the calls collection, one
// document per call id.
type CallRepository interface {
	Save(ctx context.Context, call *model.Call) error
	History(ctx context.Context, userID string, page int64) (*db.PaginatedResult[model.Call], error)
}

type callRepository struct {
	mongoRepo *db.Repository[model.Call]
	logger    *zap.Logger
}

func NewCallRepository(repo *db.Repository[model.Call], logger *zap.Logger) CallRepository {
	return &callRepository{
		mongoRepo: repo,
		logger:    logger.With(zap.String("repo", "calls")),
	}
}

func (r *callRepository) Save(ctx context.Context, call *model.Call) error {
	if call == nil || call.CallID == "" {
		return fmt.Errorf("%w: call id is required", ErrInvalidID)
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	err := withRetry(ctx, r.logger, "call.save", func(ctx context.Context) error {
		_, err := r.mongoRepo.Upsert(ctx, bson.M{"call_id": call.CallID}, *call)
		return err
	})
	if err != nil {
		r.logger.Error("failed to mirror call",
			zap.String("call_id", call.CallID),
			zap.String("status", string(call.Status)),
			zap.Error(err),
		)
		return fmt.Errorf("save call: %w", err)
	}
	return nil
}

func (r *callRepository) History(ctx context.Context, userID string, page int64) (*db.PaginatedResult[model.Call], error) {
	filter := db.NewFilter().Or(
		bson.M{"caller_id": userID},
		bson.M{"recipient_id": userID},
	).Build()

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	var result *db.PaginatedResult[model.Call]
	err := withRetry(ctx, r.logger, "call.history", func(ctx context.Context) error {
		var findErr error
		result, findErr = r.mongoRepo.FindWithPagination(ctx, filter, db.PaginationParams{
			Page:     page,
			PageSize: 20,
			SortBy:   "created_at",
			SortDesc: true,
		})
		return findErr
	})
	if err != nil {
		return nil, fmt.Errorf("call history: %w", err)
	}
	return result, nil
}
