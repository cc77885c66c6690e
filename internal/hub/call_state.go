package hub

import (
	"Circlet/internal/apperr"
	"Circlet/internal/event"
	"Circlet/internal/metrics"
	"Circlet/internal/model"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// callSession is the in-memory state of one ringing or active call.
// call and timer are guarded by CallHandler.activeCallsMu. opMu is held
// from a transition until its record is persisted and its events are sent,
// so the durable mirror and the emitted events follow transition order.
// opMu is always acquired before activeCallsMu, never while holding it.
type callSession struct {
	call  model.Call
	timer *time.Timer
	opMu  sync.Mutex
}

// snapshot copies the session's call. Caller holds activeCallsMu.
func (s *callSession) snapshot() model.Call {
	c := s.call
	c.Participants = append([]string(nil), s.call.Participants...)
	return c
}

func (s *callSession) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// -----------------------------------------------------------------
// Helper Methods - Call State Management
// -----------------------------------------------------------------

func (ch *CallHandler) getSession(callID string) *callSession {
	ch.activeCallsMu.RLock()
	defer ch.activeCallsMu.RUnlock()
	return ch.activeCalls[callID]
}

// registerRinging stores sess and arms its ring timer in one step.
func (ch *CallHandler) registerRinging(sess *callSession) {
	callID := sess.call.CallID

	ch.activeCallsMu.Lock()
	ch.activeCalls[callID] = sess
	sess.timer = time.AfterFunc(ch.ringTimeout, func() {
		ch.onRingTimeout(callID, sess)
	})
	ch.activeCallsMu.Unlock()

	metrics.ActiveCalls.Inc()
}

// transition applies mutate to a copy of the tracked session under the table
// lock and commits it only if the status move is allowed. Reaching a terminal
// status drops the session from the table. mutate returns an error to leave
// the session untouched. The caller must hold sess.opMu.
func (ch *CallHandler) transition(callID string, sess *callSession, mutate func(c *model.Call) error) (model.Call, bool, error) {
	ch.activeCallsMu.Lock()
	defer ch.activeCallsMu.Unlock()

	if ch.activeCalls[callID] != sess {
		return model.Call{}, false, nil
	}

	next := sess.snapshot()
	if err := mutate(&next); err != nil {
		return model.Call{}, true, err
	}
	if from := sess.call.Status; !from.CanTransition(next.Status) {
		return model.Call{}, true, apperr.Conflict("call is %s", from)
	}

	next.UpdatedAt = ch.hub.now()
	sess.call = next
	if next.Status != model.CallStatusRinging {
		sess.stopTimer()
	}
	if next.Status.Terminal() {
		delete(ch.activeCalls, callID)
		metrics.ActiveCalls.Dec()
		metrics.CallOutcomes.WithLabelValues(string(next.Status)).Inc()
	}

	return sess.snapshot(), true, nil
}

// endCall moves c to ended at now. Duration counts from the answer time and
// is zero for a call that never connected.
func endCall(c *model.Call, now time.Time, endedBy, reason string) {
	var duration int64
	if c.AnsweredAt != nil {
		duration = int64(now.Sub(*c.AnsweredAt).Round(time.Second) / time.Second)
		if duration < 0 {
			duration = 0
		}
	}

	c.Status = model.CallStatusEnded
	c.EndedAt = &now
	c.Duration = duration
	c.EndedBy = endedBy
	c.EndReason = reason
}

// sweepDisconnected ends every tracked call userID takes part in. The table
// is scanned once; sessions are removed before this returns, while
// persistence and notification run in the background.
func (ch *CallHandler) sweepDisconnected(userID string) {
	type swept struct {
		sess *callSession
		call model.Call
	}

	now := ch.hub.now()
	var ended []swept

	ch.activeCallsMu.Lock()
	for callID, sess := range ch.activeCalls {
		if !sess.call.HasParticipant(userID) {
			continue
		}
		endCall(&sess.call, now, userID, event.CallEndReasonPeerDisconnected)
		sess.call.UpdatedAt = now
		sess.stopTimer()
		delete(ch.activeCalls, callID)
		ended = append(ended, swept{sess: sess, call: sess.snapshot()})
	}
	ch.activeCallsMu.Unlock()

	for _, s := range ended {
		metrics.ActiveCalls.Dec()
		metrics.CallOutcomes.WithLabelValues(string(model.CallStatusEnded)).Inc()

		s := s
		ch.hub.spawn("call_sweep", func(ctx context.Context) {
			s.sess.opMu.Lock()
			defer s.sess.opMu.Unlock()

			ch.persist(ctx, &s.call)
			ch.notifyCallEnded(&s.call, userID)
		})
	}

	if len(ended) > 0 {
		ch.logger.Info("calls ended by disconnect",
			zap.String("user_id", userID),
			zap.Int("count", len(ended)),
		)
	}
}

// Snapshot returns copies of every tracked call.
func (ch *CallHandler) Snapshot() []model.Call {
	ch.activeCallsMu.RLock()
	defer ch.activeCallsMu.RUnlock()

	calls := make([]model.Call, 0, len(ch.activeCalls))
	for _, sess := range ch.activeCalls {
		calls = append(calls, sess.snapshot())
	}
	return calls
}

// activeCallFor returns the first tracked call userID takes part in.
func (ch *CallHandler) activeCallFor(userID string) *model.Call {
	ch.activeCallsMu.RLock()
	defer ch.activeCallsMu.RUnlock()

	for _, sess := range ch.activeCalls {
		if sess.call.HasParticipant(userID) {
			c := sess.snapshot()
			return &c
		}
	}
	return nil
}

// lookupFor returns a copy of callID if userID takes part in it.
func (ch *CallHandler) lookupFor(callID, userID string) *model.Call {
	ch.activeCallsMu.RLock()
	defer ch.activeCallsMu.RUnlock()

	sess, ok := ch.activeCalls[callID]
	if !ok || !sess.call.HasParticipant(userID) {
		return nil
	}
	c := sess.snapshot()
	return &c
}

func (ch *CallHandler) stopTimers() {
	ch.activeCallsMu.Lock()
	defer ch.activeCallsMu.Unlock()
	for _, sess := range ch.activeCalls {
		sess.stopTimer()
	}
}

func (ch *CallHandler) persist(ctx context.Context, c *model.Call) {
	if err := ch.repo.Save(ctx, c); err != nil {
		ch.logger.Warn("call mirror failed",
			zap.String("call_id", c.CallID),
			zap.String("status", string(c.Status)),
			zap.Error(err),
		)
	}
}
