package repo

import (
	"Circlet/internal/db"
	"Circlet/internal/model"
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// NotificationQuery narrows a recipient's notification listing.
type NotificationQuery struct {
	Page       int64
	PageSize   int64
	Type       model.NotificationType
	UnreadOnly bool
}

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) (string, error)
	FindWithSender(ctx context.Context, notificationID string) (*model.NotificationView, error)
	List(ctx context.Context, recipientID string, q NotificationQuery) (*db.PaginatedResult[model.Notification], error)
	MarkRead(ctx context.Context, notificationID string, recipientID string, at time.Time) error
	MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int64, error)
	Delete(ctx context.Context, notificationID string, recipientID string) error
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	Stats(ctx context.Context, recipientID string) (*model.NotificationStats, error)
}

type notificationRepository struct {
	mongoRepo       *db.Repository[model.Notification]
	usersCollection string
	logger          *zap.Logger
}

func NewNotificationRepository(repo *db.Repository[model.Notification], usersCollection string, logger *zap.Logger) NotificationRepository {
	return &notificationRepository{
		mongoRepo:       repo,
		usersCollection: usersCollection,
		logger:          logger.With(zap.String("repo", "notifications")),
	}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) (string, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}

	insertedID := n.ID.Hex()
	err := withRetry(ctx, r.logger, "notification.create", insertOnce(r.logger, "notification.create", func(ctx context.Context) error {
		result, err := r.mongoRepo.Create(ctx, *n)
		if err != nil {
			return err
		}
		if id := insertedHex(result); id != "" {
			insertedID = id
		}
		return nil
	}))
	if err != nil {
		r.logger.Error("failed to create notification",
			zap.String("recipient_id", n.RecipientID),
			zap.String("type", string(n.Type)),
			zap.Error(err),
		)
		return "", fmt.Errorf("create notification: %w", err)
	}
	return insertedID, nil
}

// FindWithSender loads one notification joined with its sender's public profile.
func (r *notificationRepository) FindWithSender(ctx context.Context, notificationID string) (*model.NotificationView, error) {
	oid, err := objectID(notificationID)
	if err != nil {
		return nil, ErrNotFound
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": oid}}},
		{{Key: "$lookup", Value: bson.M{
			"from": r.usersCollection,
			"let":  bson.M{"sid": "$sender_id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{
					"$_id",
					bson.M{"$convert": bson.M{"input": "$$sid", "to": "objectId", "onError": nil, "onNull": nil}},
				}}}},
				bson.M{"$project": bson.M{
					"_id":             bson.M{"$toString": "$_id"},
					"name":            1,
					"profile_picture": 1,
					"username":        1,
				}},
			},
			"as": "sender",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$sender", "preserveNullAndEmptyArrays": true}}},
	}

	var views []model.NotificationView
	err = withRetry(ctx, r.logger, "notification.find_with_sender", func(ctx context.Context) error {
		var aggErr error
		views, aggErr = db.Aggregate[model.NotificationView](ctx, r.mongoRepo, pipeline)
		return aggErr
	})
	if err != nil {
		return nil, fmt.Errorf("load notification: %w", err)
	}
	if len(views) == 0 {
		return nil, ErrNotFound
	}
	return &views[0], nil
}

func (r *notificationRepository) List(ctx context.Context, recipientID string, q NotificationQuery) (*db.PaginatedResult[model.Notification], error) {
	fb := db.NewFilter().Eq("recipient_id", recipientID)
	if q.Type != "" {
		fb.Eq("type", q.Type)
	}
	if q.UnreadOnly {
		fb.Eq("is_read", false)
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	var result *db.PaginatedResult[model.Notification]
	err := withRetry(ctx, r.logger, "notification.list", func(ctx context.Context) error {
		var findErr error
		result, findErr = r.mongoRepo.FindWithPagination(ctx, fb.Build(), db.PaginationParams{
			Page:     q.Page,
			PageSize: q.PageSize,
			SortBy:   "created_at",
			SortDesc: true,
		})
		return findErr
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return result, nil
}

// MarkRead returns ErrNotFound unless the notification exists and belongs to recipientID.
func (r *notificationRepository) MarkRead(ctx context.Context, notificationID string, recipientID string, at time.Time) error {
	oid, err := objectID(notificationID)
	if err != nil {
		return ErrNotFound
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var matched int64
	err = withRetry(ctx, r.logger, "notification.mark_read", func(ctx context.Context) error {
		res, err := r.mongoRepo.Update(ctx,
			bson.M{"_id": oid, "recipient_id": recipientID},
			bson.M{"is_read": true, "read_at": at},
		)
		if err != nil {
			return err
		}
		matched = res.MatchedCount
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if matched == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var modified int64
	err := withRetry(ctx, r.logger, "notification.mark_all_read", func(ctx context.Context) error {
		res, err := r.mongoRepo.UpdateMany(ctx,
			bson.M{"recipient_id": recipientID, "is_read": false},
			bson.M{"is_read": true, "read_at": at},
		)
		if err != nil {
			return err
		}
		modified = res.ModifiedCount
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return modified, nil
}

func (r *notificationRepository) Delete(ctx context.Context, notificationID string, recipientID string) error {
	oid, err := objectID(notificationID)
	if err != nil {
		return ErrNotFound
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var deleted int64
	err = withRetry(ctx, r.logger, "notification.delete", func(ctx context.Context) error {
		res, err := r.mongoRepo.Delete(ctx, bson.M{"_id": oid, "recipient_id": recipientID})
		if err != nil {
			return err
		}
		deleted = res.DeletedCount
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUnread always hits the store.
func (r *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	var count int64
	err := withRetry(ctx, r.logger, "notification.count_unread", func(ctx context.Context) error {
		var countErr error
		count, countErr = r.mongoRepo.Count(ctx, bson.M{"recipient_id": recipientID, "is_read": false})
		return countErr
	})
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (r *notificationRepository) Stats(ctx context.Context, recipientID string) (*model.NotificationStats, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"recipient_id": recipientID}}},
		{{Key: "$group", Value: bson.M{
			"_id":    "$type",
			"total":  bson.M{"$sum": 1},
			"unread": bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$is_read", false}}, 1, 0}}},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	var rows []model.NotificationTypeStat
	err := withRetry(ctx, r.logger, "notification.stats", func(ctx context.Context) error {
		var aggErr error
		rows, aggErr = db.Aggregate[model.NotificationTypeStat](ctx, r.mongoRepo, pipeline)
		return aggErr
	})
	if err != nil {
		return nil, fmt.Errorf("notification stats: %w", err)
	}

	stats := &model.NotificationStats{ByType: rows}
	for _, row := range rows {
		stats.Total += row.Total
		stats.Unread += row.Unread
	}
	return stats, nil
}
