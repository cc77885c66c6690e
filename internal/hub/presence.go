package hub

import (
	"Circlet/internal/event"
	"Circlet/internal/metrics"
	"Circlet/internal/model"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Presence announces online/offline transitions. Each transition is
// announced once per user regardless of how many endpoints the user holds.
// With a non-zero grace, the offline announcement is deferred; a reconnect
// inside the window cancels it and suppresses the matching online announcement.
type Presence struct {
	registry *Registry
	grace    time.Duration
	now      func() time.Time
	logger   *zap.Logger

	// lastSeen is called after an offline announcement; it must not block.
	lastSeen func(userID string, at time.Time)

	mu        sync.Mutex
	announced map[string]bool // users last announced online
	pending   map[string]*pendingOffline
}

type pendingOffline struct {
	timer *time.Timer
}

func NewPresence(registry *Registry, grace time.Duration, now func() time.Time, logger *zap.Logger) *Presence {
	return &Presence{
		registry:  registry,
		grace:     grace,
		now:       now,
		logger:    logger.With(zap.String("component", "presence")),
		announced: make(map[string]bool),
		pending:   make(map[string]*pendingOffline),
	}
}

// Online is called when userID gained its first endpoint.
func (p *Presence) Online(userID string) {
	p.mu.Lock()
	if po, ok := p.pending[userID]; ok {
		po.timer.Stop()
		delete(p.pending, userID)
		p.mu.Unlock()
		p.logger.Debug("reconnect within grace, offline cancelled", zap.String("user_id", userID))
		return
	}
	if p.announced[userID] {
		p.mu.Unlock()
		return
	}
	p.announced[userID] = true
	p.mu.Unlock()

	metrics.OnlineUsers.Inc()
	p.broadcast(userID, model.UserStatusEvent{
		UserID:   userID,
		IsOnline: true,
		Status:   model.PresenceOnline,
	})
}

// Offline is called when userID released its last endpoint.
func (p *Presence) Offline(userID string) {
	if p.grace <= 0 {
		p.announceOffline(userID, nil)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.pending[userID]; ok {
		return
	}
	po := &pendingOffline{}
	po.timer = time.AfterFunc(p.grace, func() { p.announceOffline(userID, po) })
	p.pending[userID] = po
}

// announceOffline broadcasts the offline transition. A non-nil po must
// still be the user's pending entry, otherwise a reconnect superseded it.
func (p *Presence) announceOffline(userID string, po *pendingOffline) {
	p.mu.Lock()
	if po != nil {
		if p.pending[userID] != po {
			p.mu.Unlock()
			return
		}
		delete(p.pending, userID)
	}
	if p.registry.IsOnline(userID) || !p.announced[userID] {
		p.mu.Unlock()
		return
	}
	delete(p.announced, userID)
	p.mu.Unlock()

	metrics.OnlineUsers.Dec()
	seen := p.now()
	p.broadcast(userID, model.UserStatusEvent{
		UserID:   userID,
		IsOnline: false,
		Status:   model.PresenceOffline,
		LastSeen: &seen,
	})

	if p.lastSeen != nil {
		p.lastSeen(userID, seen)
	}
}

// Stop cancels every deferred offline announcement.
func (p *Presence) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for userID, po := range p.pending {
		po.timer.Stop()
		delete(p.pending, userID)
	}
}

// broadcast sends to every connected endpoint that does not belong to userID.
func (p *Presence) broadcast(userID string, status model.UserStatusEvent) {
	ev, err := event.New(event.EventUserStatusChange, status)
	if err != nil {
		p.logger.Error("failed to encode status change", zap.Error(err))
		return
	}

	for _, ep := range p.registry.All() {
		if ep.UserID() == userID {
			continue
		}
		if !ep.Send(ev) {
			metrics.DroppedSends.Inc()
		}
	}

	p.logger.Debug("presence broadcast",
		zap.String("user_id", userID),
		zap.Bool("online", status.IsOnline),
	)
}
