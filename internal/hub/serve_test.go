package hub

import (
	"Circlet/internal/event"
	"Circlet/internal/model"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialAs(t *testing.T, srv *httptest.Server, userID string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user=" + userID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func TestStopPersistsCallsEndedByShutdown(t *testing.T) {
	f := newFixture(t, Options{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hub.ServeWS(w, r, r.URL.Query().Get("user"))
	}))
	t.Cleanup(srv.Close)

	alice, _, err := dialAs(t, srv, "alice")
	require.NoError(t, err)
	_, _, err = dialAs(t, srv, "bob")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return f.hub.IsOnline("alice") && f.hub.IsOnline("bob")
	}, 2*time.Second, 10*time.Millisecond)

	ev, err := event.New(event.EventCallInitiate, model.CallInitiatePayload{RecipientID: "bob", CallType: event.CallTypeAudio})
	require.NoError(t, err)
	require.NoError(t, alice.WriteJSON(ev))

	require.Eventually(t, func() bool {
		return len(f.hub.Calls().Snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	callID := f.hub.Calls().Snapshot()[0].CallID

	f.hub.Stop()

	assert.Empty(t, f.hub.Calls().Snapshot())
	assert.False(t, f.hub.IsOnline("alice"))
	assert.False(t, f.hub.IsOnline("bob"))

	last, ok := f.calls.latest(callID)
	require.True(t, ok, "the sweep is persisted before Stop returns")
	assert.Equal(t, model.CallStatusEnded, last.Status)
	assert.Equal(t, event.CallEndReasonPeerDisconnected, last.EndReason)

	_, resp, err := dialAs(t, srv, "carol")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
