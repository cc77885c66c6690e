package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	ErrNotFound           = errors.New("document not found")
	ErrInvalidID          = errors.New("invalid id")
	ErrInvalidMessage     = errors.New("invalid message: message cannot be nil")
	ErrInvalidChannelID   = errors.New("invalid conversation ID: cannot be empty")
	ErrOperationTimeout   = errors.New("operation timeout exceeded")
	ErrMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
)

const (
	// Timeouts
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	// Retry configuration
	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second

	messagesPageSize = 15
)

func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

func waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}

// withRetry runs fn up to maxRetries times while the error is transient.
func withRetry(ctx context.Context, logger *zap.Logger, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return err
			}
			logger.Warn("retrying store operation",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", maxRetries),
			)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isRetryableError(lastErr) {
			break
		}
	}

	if errors.Is(lastErr, context.DeadlineExceeded) {
		return ErrOperationTimeout
	}
	return lastErr
}

// insertOnce adapts an insert with a fixed _id for withRetry. A duplicate key
// on a later attempt means an earlier one was applied and only its reply was
// lost, so it counts as success.
func insertOnce(logger *zap.Logger, op string, insert func(ctx context.Context) error) func(ctx context.Context) error {
	attempted := false
	return func(ctx context.Context) error {
		err := insert(ctx)
		if err != nil && attempted && mongo.IsDuplicateKeyError(err) {
			logger.Info("insert already applied by an earlier attempt", zap.String("op", op))
			return nil
		}
		attempted = true
		return err
	}
}

func objectID(id string) (primitive.ObjectID, error) {
	if id == "" {
		return primitive.NilObjectID, ErrInvalidID
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

func insertedHex(result *mongo.InsertOneResult) string {
	if result == nil || result.InsertedID == nil {
		return ""
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	if str, ok := result.InsertedID.(string); ok {
		return str
	}
	return ""
}
