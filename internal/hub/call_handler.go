package hub

import (
	"Circlet/internal/apperr"
	"Circlet/internal/event"
	"Circlet/internal/metrics"
	"Circlet/internal/model"
	"Circlet/internal/repo"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CallHandler manages one-to-one call signaling between clients
type CallHandler struct {
	hub         *Hub
	repo        repo.CallRepository
	logger      *zap.Logger
	ringTimeout time.Duration

	// Active calls - maps callID to session state
	activeCalls   map[string]*callSession
	activeCallsMu sync.RWMutex
}

func NewCallHandler(h *Hub, calls repo.CallRepository, ringTimeout time.Duration) *CallHandler {
	return &CallHandler{
		hub:         h,
		repo:        calls,
		logger:      h.logger.With(zap.String("component", "calls")),
		ringTimeout: ringTimeout,
		activeCalls: make(map[string]*callSession),
	}
}

// IsCallEvent reports whether name is routed to the call handler.
func IsCallEvent(name string) bool {
	switch name {
	case event.EventCallInitiate, event.EventCallAccept, event.EventCallReject, event.EventCallEnd,
		event.EventWebRTCOffer, event.EventWebRTCAnswer, event.EventWebRTCIceCandidate,
		event.EventGetCallInfo, event.EventCheckActiveCall:
		return true
	default:
		return false
	}
}

// HandleCallEvent processes call-related WebSocket events. Failures are
// reported to c as call_error and returned for accounting.
func (ch *CallHandler) HandleCallEvent(ctx context.Context, c *Connection, ev event.WsEvent) error {
	var err error
	switch ev.Event {
	case event.EventCallInitiate:
		err = ch.handleCallInitiate(ctx, c, ev)
	case event.EventCallAccept:
		err = ch.handleCallAccept(ctx, c, ev)
	case event.EventCallReject:
		err = ch.handleCallReject(ctx, c, ev)
	case event.EventCallEnd:
		err = ch.handleCallEnd(ctx, c, ev)
	case event.EventWebRTCOffer, event.EventWebRTCAnswer, event.EventWebRTCIceCandidate:
		err = ch.handleSignal(c, ev)
	case event.EventGetCallInfo:
		err = ch.handleGetCallInfo(c, ev)
	case event.EventCheckActiveCall:
		ch.hub.reply(c, event.EventActiveCallState, ch.activeCallStatus(c.UserID()))
	}
	return err
}

func newCallID(callerID string, now time.Time) string {
	return fmt.Sprintf("call_%d_%s_%s", now.UnixMilli(), callerID, uuid.NewString()[:8])
}

// handleCallInitiate rings the recipient, or records a missed call straight
// away when the recipient has no live connection.
func (ch *CallHandler) handleCallInitiate(ctx context.Context, c *Connection, ev event.WsEvent) error {
	var payload model.CallInitiatePayload
	if err := ch.hub.decode(ev, &payload); err != nil {
		ch.sendCallError(c, "", err)
		return err
	}

	callerID := c.UserID()
	if payload.RecipientID == callerID {
		err := apperr.BadRequest("cannot call yourself")
		ch.sendCallError(c, "", err)
		return err
	}

	now := ch.hub.now()
	call := model.Call{
		CallID:         newCallID(callerID, now),
		CallerID:       callerID,
		RecipientID:    payload.RecipientID,
		CallType:       payload.CallType,
		ConversationID: payload.ConversationID,
		Status:         model.CallStatusRinging,
		Participants:   []string{callerID},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if !ch.hub.IsOnline(payload.RecipientID) {
		ch.failOffline(ctx, c, &call)
		return nil
	}

	sess := &callSession{call: call}
	sess.opMu.Lock()
	defer sess.opMu.Unlock()

	ch.registerRinging(sess)
	ch.persist(ctx, &call)

	ch.logger.Info("call initiated",
		zap.String("call_id", call.CallID),
		zap.String("caller_id", callerID),
		zap.String("recipient_id", call.RecipientID),
		zap.String("call_type", call.CallType),
	)

	ch.notifyIncoming(ctx, &call)
	ch.hub.reply(c, event.EventCallInitiated, model.CallInitiatedEvent{
		CallID:          call.CallID,
		RecipientOnline: true,
	})
	return nil
}

func (ch *CallHandler) failOffline(ctx context.Context, c *Connection, call *model.Call) {
	now := ch.hub.now()
	call.Status = model.CallStatusMissed
	call.EndedAt = &now
	call.EndReason = event.CallFailReasonOffline
	call.EndedBy = event.EndedBySystem

	ch.hub.reply(c, event.EventCallFailed, model.CallFailedEvent{
		CallID:  call.CallID,
		Reason:  event.CallFailReasonOffline,
		Message: "User is currently offline",
	})

	ch.persist(ctx, call)
	ch.notifyMissed(ctx, call, "called you")
	metrics.CallOutcomes.WithLabelValues("offline").Inc()

	ch.logger.Info("call failed, recipient offline",
		zap.String("call_id", call.CallID),
		zap.String("recipient_id", call.RecipientID),
	)
}

// handleCallAccept moves a ringing call to active. Only the recipient may accept.
func (ch *CallHandler) handleCallAccept(ctx context.Context, c *Connection, ev event.WsEvent) error {
	var payload model.CallAcceptPayload
	if err := ch.hub.decode(ev, &payload); err != nil {
		ch.sendCallError(c, "", err)
		return err
	}

	sess := ch.getSession(payload.CallID)
	if sess == nil {
		err := apperr.NotFound("call not found or already ended")
		ch.sendCallError(c, payload.CallID, err)
		return err
	}

	sess.opMu.Lock()
	defer sess.opMu.Unlock()

	userID := c.UserID()
	call, found, err := ch.transition(payload.CallID, sess, func(call *model.Call) error {
		if call.RecipientID != userID {
			return apperr.Forbidden("only the recipient can accept this call")
		}
		now := ch.hub.now()
		call.Status = model.CallStatusActive
		call.AnsweredAt = &now
		call.Participants = append(call.Participants, userID)
		return nil
	})
	if !found {
		// lost the race against the ring timer or a hang-up
		err = apperr.NotFound("call not found or already ended")
	}
	if err != nil {
		ch.sendCallError(c, payload.CallID, err)
		return err
	}

	ch.persist(ctx, &call)
	ch.logger.Info("call accepted", zap.String("call_id", call.CallID), zap.String("recipient_id", userID))

	ch.hub.emitToUser(call.CallerID, event.EventCallAccepted, model.CallAcceptedEvent{
		CallID:        call.CallID,
		RecipientID:   userID,
		RecipientInfo: ch.hub.userInfo(ctx, userID),
	})
	return nil
}

// handleCallReject declines a ringing call. Unknown ids are ignored.
func (ch *CallHandler) handleCallReject(ctx context.Context, c *Connection, ev event.WsEvent) error {
	var payload model.CallRejectPayload
	if err := ch.hub.decode(ev, &payload); err != nil {
		ch.sendCallError(c, "", err)
		return err
	}

	sess := ch.getSession(payload.CallID)
	if sess == nil {
		return nil
	}

	sess.opMu.Lock()
	defer sess.opMu.Unlock()

	reason := payload.Reason
	if reason == "" {
		reason = event.CallEndReasonRejected
	}

	userID := c.UserID()
	call, found, err := ch.transition(payload.CallID, sess, func(call *model.Call) error {
		if call.RecipientID != userID {
			return apperr.Forbidden("only the recipient can reject this call")
		}
		now := ch.hub.now()
		call.Status = model.CallStatusRejected
		call.EndedAt = &now
		call.EndReason = reason
		call.EndedBy = userID
		return nil
	})
	if !found {
		return nil
	}
	if err != nil {
		ch.sendCallError(c, payload.CallID, err)
		return err
	}

	ch.persist(ctx, &call)
	ch.logger.Info("call rejected", zap.String("call_id", call.CallID), zap.String("reason", reason))

	ch.hub.emitToUser(call.CallerID, event.EventCallRejected, model.CallRejectedEvent{
		CallID:      call.CallID,
		RecipientID: userID,
		Reason:      reason,
	})
	return nil
}

// handleCallEnd hangs up a ringing or active call. Unknown ids are ignored.
func (ch *CallHandler) handleCallEnd(ctx context.Context, c *Connection, ev event.WsEvent) error {
	var payload model.CallEndPayload
	if err := ch.hub.decode(ev, &payload); err != nil {
		ch.sendCallError(c, "", err)
		return err
	}

	sess := ch.getSession(payload.CallID)
	if sess == nil {
		return nil
	}

	sess.opMu.Lock()
	defer sess.opMu.Unlock()

	reason := payload.Reason
	if reason == "" {
		reason = event.CallEndReasonNormal
	}

	userID := c.UserID()
	call, found, err := ch.transition(payload.CallID, sess, func(call *model.Call) error {
		if call.CallerID != userID && call.RecipientID != userID {
			return apperr.Forbidden("not a party to this call")
		}
		endCall(call, ch.hub.now(), userID, reason)
		return nil
	})
	if !found {
		return nil
	}
	if err != nil {
		ch.sendCallError(c, payload.CallID, err)
		return err
	}

	ch.persist(ctx, &call)
	ch.logger.Info("call ended",
		zap.String("call_id", call.CallID),
		zap.String("ended_by", userID),
		zap.Int64("duration", call.Duration),
	)

	ch.notifyCallEnded(&call, userID)
	return nil
}

// onRingTimeout returns the timer callback for one session. It re-checks
// identity and status under the table lock, so a concurrent accept or
// hang-up wins cleanly.
func (ch *CallHandler) onRingTimeout(callID string, sess *callSession) {
	sess.opMu.Lock()
	defer sess.opMu.Unlock()

	call, found, err := ch.transition(callID, sess, func(call *model.Call) error {
		now := ch.hub.now()
		call.Status = model.CallStatusMissed
		call.EndedAt = &now
		call.EndReason = event.CallEndReasonTimeout
		call.EndedBy = event.EndedBySystem
		return nil
	})
	if !found || err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), asyncTimeout)
	defer cancel()

	ch.persist(ctx, &call)
	ch.logger.Info("call timed out", zap.String("call_id", callID))

	ch.notifyTimedOut(&call)
	ch.notifyMissed(ctx, &call, "missed your call")
}

// handleSignal relays an opaque WebRTC blob to the named recipient.
func (ch *CallHandler) handleSignal(c *Connection, ev event.WsEvent) error {
	var payload model.SignalPayload
	if err := ch.hub.decode(ev, &payload); err != nil {
		ch.sendCallError(c, "", err)
		return err
	}

	if ch.getSession(payload.CallID) == nil {
		err := apperr.NotFound("call not found or already ended")
		ch.sendCallError(c, payload.CallID, err)
		return err
	}

	forward := model.SignalForwardEvent{CallID: payload.CallID}
	switch ev.Event {
	case event.EventWebRTCOffer:
		forward.Offer = payload.Offer
		forward.CallerID = c.UserID()
	case event.EventWebRTCAnswer:
		forward.Answer = payload.Answer
		forward.AnswererID = c.UserID()
	case event.EventWebRTCIceCandidate:
		forward.Candidate = payload.Candidate
		forward.SenderID = c.UserID()
	}

	ch.hub.emitToUser(payload.RecipientID, ev.Event, forward)
	return nil
}

func (ch *CallHandler) handleGetCallInfo(c *Connection, ev event.WsEvent) error {
	var payload model.CallLookupPayload
	if err := ch.hub.decode(ev, &payload); err != nil {
		ch.sendCallError(c, "", err)
		return err
	}

	ch.hub.reply(c, event.EventCallInfo, model.CallInfoEvent{
		CallID:   payload.CallID,
		CallData: ch.lookupFor(payload.CallID, c.UserID()),
	})
	return nil
}

func (ch *CallHandler) activeCallStatus(userID string) model.ActiveCallStatusEvent {
	call := ch.activeCallFor(userID)
	return model.ActiveCallStatusEvent{
		HasActiveCall: call != nil,
		CallData:      call,
	}
}
