package handler

import (
	"Circlet/internal/apperr"
	"Circlet/internal/auth"
	"Circlet/internal/db"
	"Circlet/internal/hub"
	"Circlet/internal/model"
	"Circlet/internal/repo"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type tokenIsUser struct{}

func (tokenIsUser) Verify(token string) (string, error) {
	if token == "" {
		return "", auth.ErrMissingToken
	}
	return token, nil
}

type staticPresence map[string]bool

func (p staticPresence) IsOnline(userID string) bool { return p[userID] }
func (p staticPresence) OnlineUsers() []string {
	users := make([]string, 0, len(p))
	for u := range p {
		users = append(users, u)
	}
	return users
}

type stubNotifications struct {
	lastQuery repo.NotificationQuery
	lastInput hub.NotifyInput
	deleteErr error
}

func (s *stubNotifications) Notify(_ context.Context, in hub.NotifyInput) (*model.NotificationView, error) {
	s.lastInput = in
	if in.SenderID == in.RecipientID {
		return nil, nil
	}
	return &model.NotificationView{Notification: model.Notification{Type: in.Type, RecipientID: in.RecipientID}}, nil
}

func (s *stubNotifications) NotifyPostInteraction(ctx context.Context, typ model.NotificationType, senderID, recipientID, postID, commentID, _ string) (*model.NotificationView, error) {
	return s.Notify(ctx, hub.NotifyInput{
		Type:        typ,
		SenderID:    senderID,
		RecipientID: recipientID,
		Metadata:    model.NotificationMetadata{PostID: postID, CommentID: commentID},
	})
}

func (s *stubNotifications) List(_ context.Context, _ string, q repo.NotificationQuery) (*db.PaginatedResult[model.Notification], error) {
	s.lastQuery = q
	return &db.PaginatedResult[model.Notification]{Page: q.Page, PageSize: q.PageSize}, nil
}

func (s *stubNotifications) Stats(context.Context, string) (*model.NotificationStats, error) {
	return &model.NotificationStats{}, nil
}

func (s *stubNotifications) UnreadCount(context.Context, string) (int64, error) { return 3, nil }

func (s *stubNotifications) MarkRead(context.Context, string, string) error { return nil }

func (s *stubNotifications) MarkAllRead(context.Context, string) (int64, error) { return 2, nil }

func (s *stubNotifications) Delete(context.Context, string, string) error { return s.deleteErr }

type envelope struct {
	HttpStatusCode int             `json:"HttpStatusCode"`
	ResponseBody   json.RawMessage `json:"ResponseBody"`
	IsSuccess      bool            `json:"IsSuccess"`
	Message        string          `json:"Message"`
}

func newRouter(register func(r *gin.RouterGroup)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	group := router.Group("/cf/api", auth.Middleware(tokenIsUser{}))
	register(group)
	return router
}

func do(t *testing.T, router http.Handler, method, path, user string, body string) (int, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func TestPresenceRoutes(t *testing.T) {
	h := NewPresenceHandler(staticPresence{"alice": true})
	router := newRouter(func(r *gin.RouterGroup) {
		r.GET("/users/online", h.GetOnlineUsers)
		r.GET("/users/online-status/:userId", h.GetOnlineStatus)
	})

	code, env := do(t, router, http.MethodGet, "/cf/api/users/online-status/alice", "bob", "")
	require.Equal(t, http.StatusOK, code)
	var status model.OnlineStatus
	require.NoError(t, json.Unmarshal(env.ResponseBody, &status))
	assert.True(t, status.IsOnline)

	code, env = do(t, router, http.MethodGet, "/cf/api/users/online-status/carol", "bob", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.ResponseBody, &status))
	assert.False(t, status.IsOnline)

	code, env = do(t, router, http.MethodGet, "/cf/api/users/online", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.IsSuccess)
}

func TestNotificationListParsesFilters(t *testing.T) {
	stub := &stubNotifications{}
	h := NewNotificationHandler(stub)
	router := newRouter(func(r *gin.RouterGroup) {
		r.GET("/notifications", h.List)
	})

	code, _ := do(t, router, http.MethodGet, "/cf/api/notifications?page=2&pageSize=5&type=like&unread=true", "bob", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, repo.NotificationQuery{Page: 2, PageSize: 5, Type: model.NotificationLike, UnreadOnly: true}, stub.lastQuery)

	code, env := do(t, router, http.MethodGet, "/cf/api/notifications?page=0", "bob", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.IsSuccess)

	code, _ = do(t, router, http.MethodGet, "/cf/api/notifications?pageSize=1000", "bob", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestNotificationCreateUsesCallerAsSender(t *testing.T) {
	stub := &stubNotifications{}
	h := NewNotificationHandler(stub)
	router := newRouter(func(r *gin.RouterGroup) {
		r.POST("/notifications", h.Create)
	})

	code, _ := do(t, router, http.MethodPost, "/cf/api/notifications", "alice",
		`{"type":"like","recipientId":"bob","message":"liked your post"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "alice", stub.lastInput.SenderID)
	assert.Equal(t, "bob", stub.lastInput.RecipientID)

	code, env := do(t, router, http.MethodPost, "/cf/api/notifications", "alice",
		`{"type":"like","recipientId":"alice","message":"liked your post"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Notification suppressed", env.Message)
}

func TestErrorsMapToStatusCodes(t *testing.T) {
	stub := &stubNotifications{deleteErr: apperr.NotFound("notification not found")}
	h := NewNotificationHandler(stub)
	router := newRouter(func(r *gin.RouterGroup) {
		r.DELETE("/notifications/:id", h.Delete)
	})

	code, env := do(t, router, http.MethodDelete, "/cf/api/notifications/abc", "bob", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "notification not found", env.Message)

	stub.deleteErr = errors.New("connection reset")
	code, _ = do(t, router, http.MethodDelete, "/cf/api/notifications/abc", "bob", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

// storedNotifications keeps created notifications; the methods a create does
// not reach are left to the embedded nil interface.
type storedNotifications struct {
	repo.NotificationRepository
	created []model.Notification
}

func (s *storedNotifications) Create(_ context.Context, n *model.Notification) (string, error) {
	s.created = append(s.created, *n)
	return n.ID.Hex(), nil
}

func (s *storedNotifications) FindWithSender(context.Context, string) (*model.NotificationView, error) {
	return nil, repo.ErrNotFound
}

func TestNotificationCreateBuildsPostInteraction(t *testing.T) {
	store := &storedNotifications{}
	h := hub.NewHub(hub.Deps{Notifications: store}, hub.Options{}, zap.NewNop())
	t.Cleanup(h.Stop)

	handler := NewNotificationHandler(h.Notifications())
	router := newRouter(func(r *gin.RouterGroup) {
		r.POST("/notifications", handler.Create)
	})

	comment := strings.Repeat("é", 150)
	body, err := json.Marshal(map[string]any{
		"type":        "comment",
		"recipientId": "bob",
		"content":     comment,
		"metadata":    map[string]string{"postId": "p1", "commentId": "c9"},
	})
	require.NoError(t, err)

	code, env := do(t, router, http.MethodPost, "/cf/api/notifications", "alice", string(body))
	require.Equal(t, http.StatusCreated, code)

	var view model.NotificationView
	require.NoError(t, json.Unmarshal(env.ResponseBody, &view))
	assert.Equal(t, "commented on your post", view.Message)
	assert.Equal(t, "alice", view.SenderID)
	assert.Equal(t, "p1", view.Metadata.PostID)
	assert.Equal(t, "c9", view.Metadata.CommentID)
	assert.Equal(t, strings.Repeat("é", 100)+"...", view.Metadata.ContentPreview)

	code, _ = do(t, router, http.MethodPost, "/cf/api/notifications", "alice",
		`{"type":"like","recipientId":"bob","metadata":{"postId":"p2"}}`)
	require.Equal(t, http.StatusCreated, code)

	require.Len(t, store.created, 2)
	assert.Equal(t, "liked your post", store.created[1].Message)
	assert.Empty(t, store.created[1].Metadata.ContentPreview)
}

func TestNotificationCreateRejectsServerOnlyTypes(t *testing.T) {
	stub := &stubNotifications{}
	h := NewNotificationHandler(stub)
	router := newRouter(func(r *gin.RouterGroup) {
		r.POST("/notifications", h.Create)
	})

	code, env := do(t, router, http.MethodPost, "/cf/api/notifications", "mallory",
		`{"type":"missed_call","recipientId":"bob","message":"called you","metadata":{"callId":"call_1"}}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.False(t, env.IsSuccess)

	code, _ = do(t, router, http.MethodPost, "/cf/api/notifications", "mallory",
		`{"type":"incoming_call","recipientId":"bob","message":"is calling you"}`)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = do(t, router, http.MethodPost, "/cf/api/notifications", "mallory",
		`{"type":"shout","recipientId":"bob","message":"hey"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, router, http.MethodPost, "/cf/api/notifications", "mallory",
		`{"type":"friend_request","recipientId":"bob"}`)
	assert.Equal(t, http.StatusBadRequest, code, "non-post types need a message")

	assert.Empty(t, stub.lastInput.RecipientID, "nothing reached the dispatcher")
}
