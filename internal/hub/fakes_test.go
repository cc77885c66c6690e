package hub

import (
	"Circlet/internal/db"
	"Circlet/internal/event"
	"Circlet/internal/model"
	"Circlet/internal/repo"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// -----------------------------------------------------------------
// Recording endpoint
// -----------------------------------------------------------------

type recorder struct {
	id     string
	userID string

	mu     sync.Mutex
	events []event.WsEvent
}

func newRecorder(id, userID string) *recorder {
	return &recorder{id: id, userID: userID}
}

func (r *recorder) ID() string     { return r.id }
func (r *recorder) UserID() string { return r.userID }

func (r *recorder) Send(ev event.WsEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true
}

func (r *recorder) named(name string) []event.WsEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []event.WsEvent
	for _, ev := range r.events {
		if ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) count(name string) int {
	return len(r.named(name))
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// last decodes the most recent event called name into v.
func (r *recorder) last(t *testing.T, name string, v any) {
	t.Helper()
	evs := r.named(name)
	require.NotEmpty(t, evs, "no %s event received", name)
	require.NoError(t, json.Unmarshal(evs[len(evs)-1].Payload, v))
}

// -----------------------------------------------------------------
// Clock
// -----------------------------------------------------------------

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// -----------------------------------------------------------------
// In-memory repositories
// -----------------------------------------------------------------

type memConversations struct {
	mu    sync.Mutex
	convs map[string]*model.Conversation
	fail  error
}

func (m *memConversations) add(participants ...string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv := model.NewConversation(participants, time.Now())
	conv.ID = primitive.NewObjectID()
	m.convs[conv.ID.Hex()] = &conv
	return conv.ID.Hex()
}

func (m *memConversations) get(id string) *model.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := *m.convs[id]
	cpy.UnreadCounts = append([]model.UnreadCount(nil), cpy.UnreadCounts...)
	return &cpy
}

func (m *memConversations) GetByID(_ context.Context, id string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cpy := *conv
	return &cpy, nil
}

func (m *memConversations) FindByParticipant(_ context.Context, userID string) ([]model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	var out []model.Conversation
	for _, conv := range m.convs {
		if conv.HasParticipant(userID) {
			out = append(out, *conv)
		}
	}
	return out, nil
}

func (m *memConversations) UpdateLastMessage(_ context.Context, id string, last model.LastMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv := m.convs[id]
	conv.LastMessage = &last
	conv.LastMessageAt = &last.SentAt
	return nil
}

func (m *memConversations) IncrementUnread(_ context.Context, id string, userIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv := m.convs[id]
	for i := range conv.UnreadCounts {
		for _, u := range userIDs {
			if conv.UnreadCounts[i].UserID == u {
				conv.UnreadCounts[i].Count++
			}
		}
	}
	return nil
}

func (m *memConversations) ResetUnread(_ context.Context, id string, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv := m.convs[id]
	for i := range conv.UnreadCounts {
		if conv.UnreadCounts[i].UserID == userID {
			conv.UnreadCounts[i].Count = 0
		}
	}
	return nil
}

type memMessages struct {
	mu   sync.Mutex
	msgs []*model.Message
}

func (m *memMessages) InsertMessage(_ context.Context, msg *model.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := *msg
	cpy.ReadBy = append([]string(nil), msg.ReadBy...)
	m.msgs = append(m.msgs, &cpy)
	return cpy.ID.Hex(), nil
}

func (m *memMessages) MarkRead(_ context.Context, conversationID string, readerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, msg := range m.msgs {
		if msg.ConversationID.Hex() != conversationID || msg.SenderID == readerID || msg.IsReadBy(readerID) {
			continue
		}
		msg.ReadBy = append(msg.ReadBy, readerID)
		n++
	}
	return n, nil
}

func (m *memMessages) FilterMessage(_ context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := &db.PaginatedResult[model.Message]{Page: page}
	for _, msg := range m.msgs {
		if msg.ConversationID.Hex() == conversationID {
			result.Data = append(result.Data, *msg)
		}
	}
	result.Total = int64(len(result.Data))
	return result, nil
}

type memNotifications struct {
	mu    sync.Mutex
	items map[string]*model.Notification
}

func (m *memNotifications) all() []model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Notification, 0, len(m.items))
	for _, n := range m.items {
		out = append(out, *n)
	}
	return out
}

func (m *memNotifications) Create(_ context.Context, n *model.Notification) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := *n
	m.items[n.ID.Hex()] = &cpy
	return n.ID.Hex(), nil
}

func (m *memNotifications) FindWithSender(_ context.Context, id string) (*model.NotificationView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &model.NotificationView{Notification: *n, Sender: &model.UserInfo{ID: n.SenderID}}, nil
}

func (m *memNotifications) List(_ context.Context, recipientID string, q repo.NotificationQuery) (*db.PaginatedResult[model.Notification], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := &db.PaginatedResult[model.Notification]{Page: q.Page, PageSize: q.PageSize}
	for _, n := range m.items {
		if n.RecipientID != recipientID || (q.Type != "" && n.Type != q.Type) || (q.UnreadOnly && n.IsRead) {
			continue
		}
		result.Data = append(result.Data, *n)
	}
	result.Total = int64(len(result.Data))
	return result, nil
}

func (m *memNotifications) MarkRead(_ context.Context, id string, recipientID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok || n.RecipientID != recipientID {
		return repo.ErrNotFound
	}
	n.IsRead = true
	n.ReadAt = &at
	return nil
}

func (m *memNotifications) MarkAllRead(_ context.Context, recipientID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var marked int64
	for _, n := range m.items {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &at
			marked++
		}
	}
	return marked, nil
}

func (m *memNotifications) Delete(_ context.Context, id string, recipientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok || n.RecipientID != recipientID {
		return repo.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memNotifications) CountUnread(_ context.Context, recipientID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, n := range m.items {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *memNotifications) Stats(ctx context.Context, recipientID string) (*model.NotificationStats, error) {
	unread, _ := m.CountUnread(ctx, recipientID)
	return &model.NotificationStats{Unread: unread}, nil
}

// memCalls keeps every saved version of every call, in save order.
type memCalls struct {
	mu    sync.Mutex
	saved []model.Call
}

func (m *memCalls) Save(_ context.Context, call *model.Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, *call)
	return nil
}

func (m *memCalls) History(_ context.Context, userID string, page int64) (*db.PaginatedResult[model.Call], error) {
	return &db.PaginatedResult[model.Call]{Page: page}, nil
}

// statuses returns the saved status sequence of callID.
func (m *memCalls) statuses(callID string) []model.CallStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.CallStatus
	for _, c := range m.saved {
		if c.CallID == callID {
			out = append(out, c.Status)
		}
	}
	return out
}

func (m *memCalls) latest(callID string) (model.Call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.saved) - 1; i >= 0; i-- {
		if m.saved[i].CallID == callID {
			return m.saved[i], true
		}
	}
	return model.Call{}, false
}

type memUsers struct{}

func (memUsers) GetUserInfo(_ context.Context, userID string) (*model.UserInfo, error) {
	return &model.UserInfo{ID: userID, DisplayName: "user " + userID}, nil
}

// -----------------------------------------------------------------
// Fixture
// -----------------------------------------------------------------

type fixture struct {
	hub           *Hub
	clock         *fakeClock
	conversations *memConversations
	messages      *memMessages
	notifications *memNotifications
	calls         *memCalls
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	f := &fixture{
		clock:         newFakeClock(),
		conversations: &memConversations{convs: make(map[string]*model.Conversation)},
		messages:      &memMessages{},
		notifications: &memNotifications{items: make(map[string]*model.Notification)},
		calls:         &memCalls{},
	}
	if opts.Clock == nil {
		opts.Clock = f.clock.Now
	}

	f.hub = NewHub(Deps{
		Conversations: f.conversations,
		Messages:      f.messages,
		Notifications: f.notifications,
		Calls:         f.calls,
		Users:         memUsers{},
	}, opts, zap.NewNop())
	t.Cleanup(f.hub.Stop)
	return f
}

func (f *fixture) connect(id, userID string) (*recorder, *Connection) {
	rec := newRecorder(id, userID)
	return rec, f.hub.Connect(context.Background(), rec)
}

// send routes an inbound event the way a client's processor would.
func (f *fixture) send(t *testing.T, c *Connection, name string, payload any) {
	t.Helper()
	ev, err := event.New(name, payload)
	require.NoError(t, err)
	f.hub.HandleEvent(context.Background(), c, ev)
}

// initiate rings recipientID from c and returns the new call id.
func (f *fixture) initiate(t *testing.T, c *Connection, caller *recorder, recipientID string) string {
	t.Helper()
	f.send(t, c, event.EventCallInitiate, model.CallInitiatePayload{RecipientID: recipientID, CallType: event.CallTypeVideo})

	var initiated model.CallInitiatedEvent
	caller.last(t, event.EventCallInitiated, &initiated)
	require.True(t, initiated.RecipientOnline)
	return initiated.CallID
}
