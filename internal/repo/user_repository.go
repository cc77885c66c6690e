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
	"go.uber.org/zap"
)

// UserDirectory resolves public profiles for enrichment.
type UserDirectory interface {
	GetUserInfo(ctx context.Context, userID string) (*model.UserInfo, error)
}

type userRepository struct {
	mongoRepo *db.Repository[model.User]
	logger    *zap.Logger
}

func NewUserRepository(repo *db.Repository[model.User], logger *zap.Logger) UserDirectory {
	return &userRepository{
		mongoRepo: repo,
		logger:    logger.With(zap.String("repo", "users")),
	}
}

func (r *userRepository) GetUserInfo(ctx context.Context, userID string) (*model.UserInfo, error) {
	if _, err := objectID(userID); err != nil {
		return nil, ErrNotFound
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	var user *model.User
	err := withRetry(ctx, r.logger, "user.get", func(ctx context.Context) error {
		var findErr error
		user, findErr = r.mongoRepo.FindByID(ctx, userID)
		return findErr
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}

	return user.Info(), nil
}

// SetLastSeen stamps the user's last_seen field after they go offline.
func (r *userRepository) SetLastSeen(ctx context.Context, userID string, at time.Time) error {
	oid, err := objectID(userID)
	if err != nil {
		return err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	return withRetry(ctx, r.logger, "user.last_seen", func(ctx context.Context) error {
		_, err := r.mongoRepo.Update(ctx, bson.M{"_id": oid}, bson.M{"last_seen": at})
		return err
	})
}
