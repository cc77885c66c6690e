package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFilterBuilderCombinesConditions(t *testing.T) {
	id := primitive.NewObjectID()

	filter := NewFilter().
		ObjectID("conversation_id", id.Hex()).
		Ne("sender_id", "u1").
		Eq("type", "like").
		Build()

	assert.Equal(t, id, filter["conversation_id"])
	assert.Equal(t, bson.M{"$ne": "u1"}, filter["sender_id"])
	assert.Equal(t, "like", filter["type"])
}

func TestFilterBuilderRecordsInvalidObjectID(t *testing.T) {
	b := NewFilter().ObjectID("_id", "not-hex").Eq("recipient_id", "u1")

	require.Error(t, b.Err())
	_, present := b.Build()["_id"]
	assert.False(t, present)
	assert.Equal(t, "u1", b.Build()["recipient_id"])
}

func TestFilterBuilderOr(t *testing.T) {
	filter := NewFilter().Or(bson.M{"caller_id": "a"}, bson.M{"recipient_id": "a"}).Build()

	require.Len(t, filter["$or"], 2)
	assert.Equal(t, []bson.M{{"caller_id": "a"}, {"recipient_id": "a"}}, filter["$or"])

	assert.NotContains(t, NewFilter().Or().Build(), "$or")
}
