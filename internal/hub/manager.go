package hub

import (
	"Circlet/internal/apperr"
	"Circlet/internal/event"
	"Circlet/internal/metrics"
	"Circlet/internal/model"
	"Circlet/internal/repo"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// bounds store work scheduled after a handler has returned
	asyncTimeout = 10 * time.Second
)

// Deps are the durable collaborators the hub talks to.
type Deps struct {
	Conversations repo.ConversationRepository
	Messages      repo.MessageRepository
	Notifications repo.NotificationRepository
	Calls         repo.CallRepository
	Users         repo.UserDirectory
}

type Options struct {
	RingTimeout    time.Duration
	OfflineGrace   time.Duration
	AllowedOrigins []string
	Clock          func() time.Time
}

// Connection is an endpoint admitted by Connect.
type Connection struct {
	Endpoint
	registration *Registration
	once         sync.Once
}

type Hub struct {
	logger   *zap.Logger
	registry *Registry
	rooms    *Rooms
	presence *Presence

	calls         *CallHandler
	messages      *MessageRelay
	notifications *NotificationDispatcher

	conversations repo.ConversationRepository
	users         repo.UserDirectory

	validate *validator.Validate
	upgrader websocket.Upgrader
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// conns counts ServeWS goroutines; Stop drains them before wg so their
	// disconnect work is scheduled before it is waited on
	conns    sync.WaitGroup
	stopMu   sync.Mutex
	stopping bool
}

func NewHub(deps Deps, opts Options, logger *zap.Logger) *Hub {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.RingTimeout <= 0 {
		opts.RingTimeout = event.DefaultRingTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	registry := NewRegistry()

	h := &Hub{
		logger:        logger.With(zap.String("component", "hub")),
		registry:      registry,
		rooms:         NewRooms(),
		presence:      NewPresence(registry, opts.OfflineGrace, opts.Clock, logger),
		conversations: deps.Conversations,
		users:         deps.Users,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		now:           opts.Clock,
		ctx:           ctx,
		cancel:        cancel,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}

	h.notifications = NewNotificationDispatcher(h, deps.Notifications)
	h.messages = NewMessageRelay(h, deps.Conversations, deps.Messages)
	h.calls = NewCallHandler(h, deps.Calls, opts.RingTimeout)
	h.presence.lastSeen = h.recordLastSeen

	return h
}

func (h *Hub) Rooms() *Rooms                          { return h.rooms }
func (h *Hub) Calls() *CallHandler                    { return h.calls }
func (h *Hub) Messages() *MessageRelay                { return h.messages }
func (h *Hub) Notifications() *NotificationDispatcher { return h.notifications }
func (h *Hub) IsOnline(userID string) bool            { return h.registry.IsOnline(userID) }
func (h *Hub) OnlineUsers() []string                  { return h.registry.OnlineUsers() }

// -----------------------------------------------------------------
// Connection lifecycle
// -----------------------------------------------------------------

// ServeWS upgrades an already authenticated request and runs the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	if !h.admit() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.conns.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := newClient(userID, conn, h)
	connection := h.Connect(client.ctx, client)
	if h.isStopping() {
		// registered after Stop collected the live clients
		client.Close()
	}
	client.serve(connection)
}

func (h *Hub) admit() bool {
	h.stopMu.Lock()
	defer h.stopMu.Unlock()
	if h.stopping {
		return false
	}
	h.conns.Add(1)
	return true
}

func (h *Hub) isStopping() bool {
	h.stopMu.Lock()
	defer h.stopMu.Unlock()
	return h.stopping
}

// Connect registers ep, joins its personal, notification and conversation
// rooms, and announces the user online on their first endpoint.
func (h *Hub) Connect(ctx context.Context, ep Endpoint) *Connection {
	userID := ep.UserID()
	registration, first := h.registry.Register(ep)
	metrics.Connections.Inc()

	h.rooms.Track(ep)
	h.rooms.Join(ep, UserRoom(userID))
	h.rooms.Join(ep, NotificationRoom(userID))

	conversations, err := h.conversations.FindByParticipant(ctx, userID)
	if err != nil {
		h.logger.Warn("conversation rooms not joined",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
	for _, conv := range conversations {
		h.rooms.Join(ep, ConversationRoom(conv.ID.Hex()))
	}

	if first {
		h.presence.Online(userID)
	}

	h.logger.Info("endpoint connected",
		zap.String("user_id", userID),
		zap.String("endpoint_id", ep.ID()),
		zap.Int("conversation_rooms", len(conversations)),
		zap.Bool("first", first),
	)

	return &Connection{Endpoint: ep, registration: registration}
}

// Disconnect releases the endpoint. When it was the user's last one, every
// call the user takes part in is ended before presence goes offline.
func (h *Hub) Disconnect(c *Connection) {
	c.once.Do(func() {
		last := c.registration.Release()
		h.rooms.LeaveAll(c.Endpoint)
		metrics.Connections.Dec()

		if last {
			h.calls.sweepDisconnected(c.UserID())
			h.presence.Offline(c.UserID())
		}

		h.logger.Info("endpoint disconnected",
			zap.String("user_id", c.UserID()),
			zap.String("endpoint_id", c.ID()),
			zap.Bool("last", last),
		)
	})
}

// Stop refuses new connections, closes every live one, waits for their
// disconnects and then for the store work those scheduled.
func (h *Hub) Stop() {
	h.stopMu.Lock()
	h.stopping = true
	h.stopMu.Unlock()

	for _, ep := range h.registry.All() {
		if c, ok := ep.(*Client); ok {
			c.Close()
		}
	}
	h.conns.Wait()

	h.presence.Stop()
	h.calls.stopTimers()
	h.cancel()
	h.wg.Wait()
}

// -----------------------------------------------------------------
// Event routing
// -----------------------------------------------------------------

// HandleEvent dispatches one inbound event. Errors are reported to the
// originating connection by the component handlers; nothing here closes it.
func (h *Hub) HandleEvent(ctx context.Context, c *Connection, ev event.WsEvent) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("event handler panic",
				zap.String("event", ev.Event),
				zap.String("user_id", c.UserID()),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	var err error
	switch {
	case IsCallEvent(ev.Event):
		err = h.calls.HandleCallEvent(ctx, c, ev)
	case IsMessagingEvent(ev.Event):
		err = h.messages.HandleEvent(ctx, c, ev)
	case IsNotificationEvent(ev.Event):
		err = h.notifications.HandleEvent(ctx, c, ev)
	default:
		h.logger.Debug("unknown event type", zap.String("event", ev.Event), zap.String("user_id", c.UserID()))
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
		h.logger.Debug("event failed",
			zap.String("event", ev.Event),
			zap.String("user_id", c.UserID()),
			zap.Error(err),
		)
	}
	metrics.InboundEvents.WithLabelValues(ev.Event, result).Inc()
}

// decode unmarshals and validates an inbound payload.
func (h *Hub) decode(ev event.WsEvent, v any) error {
	if err := ev.Decode(v); err != nil {
		return apperr.BadRequest("malformed %s payload", ev.Event).WithInternal(err)
	}
	if err := h.validate.Struct(v); err != nil {
		return apperr.BadRequest("invalid %s payload: %v", ev.Event, err)
	}
	return nil
}

// -----------------------------------------------------------------
// Delivery
// -----------------------------------------------------------------

func (h *Hub) sendToEndpoints(eps []Endpoint, ev event.WsEvent) int {
	delivered := 0
	for _, ep := range eps {
		if ep.Send(ev) {
			delivered++
		} else {
			metrics.DroppedSends.Inc()
		}
	}
	return delivered
}

// emitToUser sends to every live endpoint of userID and returns how many accepted it.
func (h *Hub) emitToUser(userID, name string, payload any) int {
	ev, err := event.New(name, payload)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("event", name), zap.Error(err))
		return 0
	}
	return h.sendToEndpoints(h.registry.Resolve(userID), ev)
}

// emitToRoom sends to every endpoint in room except those owned by exceptUserID.
func (h *Hub) emitToRoom(room, name string, payload any, exceptUserID string) int {
	ev, err := event.New(name, payload)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("event", name), zap.Error(err))
		return 0
	}

	members := h.rooms.Members(room)
	targets := members[:0]
	for _, ep := range members {
		if exceptUserID != "" && ep.UserID() == exceptUserID {
			continue
		}
		targets = append(targets, ep)
	}
	return h.sendToEndpoints(targets, ev)
}

// reply sends to the originating endpoint only.
func (h *Hub) reply(ep Endpoint, name string, payload any) {
	ev, err := event.New(name, payload)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("event", name), zap.Error(err))
		return
	}
	if !ep.Send(ev) {
		metrics.DroppedSends.Inc()
	}
}

// replyError sends a scoped error event built from err.
func (h *Hub) replyError(ep Endpoint, name string, err error, origin string) {
	appErr := apperr.FromError(err)
	h.reply(ep, name, model.ErrorPayload{
		Code:    appErr.Code,
		Error:   appErr.Message,
		Context: origin,
	})
}

// -----------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------

// userInfo is best effort: a failed lookup degrades to an id-only profile.
func (h *Hub) userInfo(ctx context.Context, userID string) *model.UserInfo {
	info, err := h.users.GetUserInfo(ctx, userID)
	if err != nil || info == nil {
		if err != nil {
			h.logger.Debug("user lookup failed", zap.String("user_id", userID), zap.Error(err))
		}
		return &model.UserInfo{ID: userID}
	}
	return info
}

// spawn runs fn in the background with its own bounded context. Stop waits for it.
func (h *Hub) spawn(name string, fn func(ctx context.Context)) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("background task panic", zap.String("task", name), zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), asyncTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (h *Hub) recordLastSeen(userID string, at time.Time) {
	recorder, ok := h.users.(lastSeenRecorder)
	if !ok {
		return
	}
	h.spawn("last_seen", func(ctx context.Context) {
		if err := recorder.SetLastSeen(ctx, userID, at); err != nil {
			h.logger.Warn("failed to record last seen", zap.String("user_id", userID), zap.Error(err))
		}
	})
}

type lastSeenRecorder interface {
	SetLastSeen(ctx context.Context, userID string, at time.Time) error
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
