package hub

import (
	"Circlet/internal/apperr"
	"Circlet/internal/event"
	"Circlet/internal/model"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifySelfIsSuppressed(t *testing.T) {
	f := newFixture(t, Options{})
	alice, _ := f.connect("a1", "alice")

	view, err := f.hub.Notifications().Notify(context.Background(), NotifyInput{
		Type:        model.NotificationLike,
		SenderID:    "alice",
		RecipientID: "alice",
		Message:     "liked your post",
	})
	require.NoError(t, err)
	assert.Nil(t, view)
	assert.Empty(t, f.notifications.all())
	assert.Zero(t, alice.count(event.EventNewNotification))
}

func TestNotifyRejectsUnknownType(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.hub.Notifications().Notify(context.Background(), NotifyInput{
		Type:        "poke",
		SenderID:    "alice",
		RecipientID: "bob",
	})
	require.ErrorIs(t, err, apperr.ErrBadRequest)
	assert.Empty(t, f.notifications.all())
}

func TestNotifyOnlineRecipient(t *testing.T) {
	f := newFixture(t, Options{})
	bob, _ := f.connect("b1", "bob")

	view, err := f.hub.Notifications().Notify(context.Background(), NotifyInput{
		Type:        model.NotificationFriendRequest,
		SenderID:    "alice",
		RecipientID: "bob",
		Message:     "sent you a friend request",
	})
	require.NoError(t, err)
	require.NotNil(t, view)
	require.NotNil(t, view.Sender)
	assert.Equal(t, "alice", view.Sender.ID)

	var pushed model.NotificationEvent
	bob.last(t, event.EventNewNotification, &pushed)
	assert.Equal(t, model.NotificationFriendRequest, pushed.Notification.Type)
	assert.False(t, pushed.Notification.IsRead)

	var count model.UnreadCountEvent
	bob.last(t, event.EventUnreadCountUpdated, &count)
	assert.Equal(t, int64(1), count.UnreadCount)
	assert.Equal(t, 1, bob.count(event.EventNotificationCreated))
}

func TestNotifyOfflineRecipientOnlyPersists(t *testing.T) {
	f := newFixture(t, Options{})

	view, err := f.hub.Notifications().Notify(context.Background(), NotifyInput{
		Type:        model.NotificationMention,
		SenderID:    "alice",
		RecipientID: "bob",
		Message:     "mentioned you",
	})
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Len(t, f.notifications.all(), 1)

	bob, _ := f.connect("b1", "bob")
	assert.Zero(t, bob.count(event.EventNewNotification), "no replay on connect")
}

func TestNotificationMutationsRefreshUnreadCount(t *testing.T) {
	f := newFixture(t, Options{})
	bob, bConn := f.connect("b1", "bob")
	bob2, _ := f.connect("b2", "bob")
	ctx := context.Background()

	first, err := f.hub.Notifications().NotifyPostInteraction(ctx, model.NotificationLike, "alice", "bob", "post1", "", "hello")
	require.NoError(t, err)
	_, err = f.hub.Notifications().NotifyPostInteraction(ctx, model.NotificationComment, "carol", "bob", "post1", "c1", "nice")
	require.NoError(t, err)
	bob.reset()
	bob2.reset()

	f.send(t, bConn, event.EventMarkNotificationRead, model.NotificationRefPayload{NotificationID: first.ID.Hex()})

	var ack model.NotificationAckEvent
	bob.last(t, event.EventNotificationMarkedRead, &ack)
	assert.True(t, ack.Success)
	assert.Zero(t, bob2.count(event.EventNotificationMarkedRead), "the ack goes to the requesting endpoint")

	var count model.UnreadCountEvent
	bob2.last(t, event.EventUnreadCountUpdated, &count)
	assert.Equal(t, int64(1), count.UnreadCount)

	f.send(t, bConn, event.EventMarkAllNotificationsRead, nil)
	var all model.AllNotificationsReadEvent
	bob.last(t, event.EventAllNotificationsMarkedRead, &all)
	assert.Equal(t, int64(1), all.MarkedCount)
	bob2.last(t, event.EventUnreadCountUpdated, &count)
	assert.Zero(t, count.UnreadCount)

	f.send(t, bConn, event.EventDeleteNotification, model.NotificationRefPayload{NotificationID: first.ID.Hex()})
	bob.last(t, event.EventNotificationDeleted, &ack)
	assert.True(t, ack.Success)

	f.send(t, bConn, event.EventDeleteNotification, model.NotificationRefPayload{NotificationID: first.ID.Hex()})
	var errPayload model.ErrorPayload
	bob.last(t, event.EventNotificationError, &errPayload)
	assert.Equal(t, "NOT_FOUND", errPayload.Code)

	f.send(t, bConn, event.EventGetUnreadCount, nil)
	bob.last(t, event.EventUnreadCount, &count)
	assert.Zero(t, count.UnreadCount)
}

func TestNotificationOwnershipIsEnforced(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	view, err := f.hub.Notifications().Notify(ctx, NotifyInput{
		Type: model.NotificationShare, SenderID: "alice", RecipientID: "bob", Message: "shared your post",
	})
	require.NoError(t, err)

	err = f.hub.Notifications().MarkRead(ctx, view.ID.Hex(), "mallory")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	err = f.hub.Notifications().Delete(ctx, view.ID.Hex(), "mallory")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUnsubscribeLeavesNotificationRoom(t *testing.T) {
	f := newFixture(t, Options{})
	bob, bConn := f.connect("b1", "bob")
	notify := func() {
		_, err := f.hub.Notifications().Notify(context.Background(), NotifyInput{
			Type: model.NotificationTag, SenderID: "alice", RecipientID: "bob", Message: "tagged you in a post",
		})
		require.NoError(t, err)
	}

	f.send(t, bConn, event.EventUnsubscribeNotifications, nil)
	notify()
	assert.Zero(t, bob.count(event.EventNotificationCreated))
	assert.Equal(t, 1, bob.count(event.EventNewNotification), "direct pushes still arrive")

	f.send(t, bConn, event.EventSubscribeNotifications, nil)
	notify()
	assert.Equal(t, 1, bob.count(event.EventNotificationCreated))
}

func TestPostInteractionPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))

	long := strings.Repeat("é", 150)
	got := preview(long)
	assert.Equal(t, strings.Repeat("é", 100)+"...", got)

	assert.Equal(t, "liked your post", interactionMessage(model.NotificationLike))
	assert.Equal(t, "commented on your post", interactionMessage(model.NotificationComment))
}
