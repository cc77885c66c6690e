package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithRetryStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	boom := errors.New("duplicate key")

	err := withRetry(context.Background(), zap.NewNop(), "test", func(ctx context.Context) error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithRetryRetriesNetworkErrors(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	flaky := mongo.CommandError{Code: 6, Message: "connection reset", Labels: []string{"NetworkError"}}

	calls := 0
	err := withRetry(context.Background(), zap.New(core), "message.insert", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return flaky
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	retries := logs.FilterMessage("retrying store operation").All()
	require.Len(t, retries, 2)
	assert.Equal(t, "message.insert", retries[0].ContextMap()["op"])
	assert.Equal(t, int64(3), retries[1].ContextMap()["attempt"])
}

func TestInsertOnceTreatsDuplicateOnRetryAsApplied(t *testing.T) {
	lostReply := mongo.CommandError{Code: 89, Message: "socket timeout", Labels: []string{"NetworkError"}}
	duplicate := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}

	calls := 0
	err := withRetry(context.Background(), zap.NewNop(), "message.insert", insertOnce(zap.NewNop(), "message.insert", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return lostReply
		}
		return duplicate
	}))

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestInsertOnceKeepsFirstAttemptDuplicate(t *testing.T) {
	duplicate := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}

	err := withRetry(context.Background(), zap.NewNop(), "message.insert", insertOnce(zap.NewNop(), "message.insert", func(ctx context.Context) error {
		return duplicate
	}))

	require.Error(t, err)
	assert.True(t, mongo.IsDuplicateKeyError(err))
}

func TestWithRetryReturnsNilOnSuccess(t *testing.T) {
	err := withRetry(context.Background(), zap.NewNop(), "test", func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
}

func TestWaitForRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := waitForRetry(ctx, 3)
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(context.DeadlineExceeded))
	assert.False(t, isRetryableError(errors.New("plain")))
}

func TestObjectID(t *testing.T) {
	oid := primitive.NewObjectID()

	got, err := objectID(oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, oid, got)

	_, err = objectID("")
	require.ErrorIs(t, err, ErrInvalidID)

	_, err = objectID("xyz")
	require.ErrorIs(t, err, ErrInvalidID)
}
