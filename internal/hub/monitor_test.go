package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorStats(t *testing.T) {
	f := newFixture(t, Options{})
	ms := NewMonitorService(f.hub)

	assert.Equal(t, "idle", ms.GetStats().Status)

	convID := f.conversations.add("alice", "bob")
	caller, aConn := f.connect("a1", "alice")
	f.connect("a2", "alice")
	f.connect("b1", "bob")
	f.initiate(t, aConn, caller, "bob")

	stats := ms.GetStats()
	assert.Equal(t, "healthy", stats.Status)
	assert.Equal(t, 3, stats.Connections.TotalConnections)
	assert.Equal(t, 2, stats.Connections.OnlineUsers)
	assert.Equal(t, 1, stats.Connections.MultiDeviceUsers)
	assert.Equal(t, 1, stats.Calls.TotalActiveCalls)
	assert.Equal(t, 1, stats.Calls.ByStatus["ringing"])
	assert.Len(t, stats.Clients, 3)

	var conv *struct{ members, users int }
	for _, room := range stats.Rooms.RoomDetails {
		if room.Room == ConversationRoom(convID) {
			conv = &struct{ members, users int }{room.Members, room.DistinctUsers}
		}
	}
	require.NotNil(t, conv)
	assert.Equal(t, 3, conv.members)
	assert.Equal(t, 2, conv.users)
}
