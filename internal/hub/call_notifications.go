package hub

import (
	"Circlet/internal/apperr"
	"Circlet/internal/event"
	"Circlet/internal/model"
	"context"

	"go.uber.org/zap"
)

// -----------------------------------------------------------------
// Notification Methods - Send Events to Clients
// -----------------------------------------------------------------

func (ch *CallHandler) notifyIncoming(ctx context.Context, call *model.Call) {
	delivered := ch.hub.emitToUser(call.RecipientID, event.EventCallIncoming, model.CallIncomingEvent{
		CallID:         call.CallID,
		CallerID:       call.CallerID,
		RecipientID:    call.RecipientID,
		CallType:       call.CallType,
		ConversationID: call.ConversationID,
		Status:         string(call.Status),
		CreatedAt:      call.CreatedAt,
		CallerInfo:     ch.hub.userInfo(ctx, call.CallerID),
	})
	if delivered == 0 {
		ch.logger.Warn("incoming call not delivered", zap.String("call_id", call.CallID))
	}
}

// notifyCallEnded tells everyone on the call except enderID. A call that
// never connected still reaches the recipient, who is not yet a participant.
func (ch *CallHandler) notifyCallEnded(call *model.Call, enderID string) {
	ended := model.CallEndedEvent{
		CallID:   call.CallID,
		EndedBy:  call.EndedBy,
		Reason:   call.EndReason,
		Duration: call.Duration,
	}

	for _, userID := range callAudience(call) {
		if userID == enderID {
			continue
		}
		ch.hub.emitToUser(userID, event.EventCallEnded, ended)
	}
}

// notifyTimedOut reports an unanswered call to both sides.
func (ch *CallHandler) notifyTimedOut(call *model.Call) {
	ch.hub.emitToUser(call.CallerID, event.EventCallRejected, model.CallRejectedEvent{
		CallID:      call.CallID,
		RecipientID: call.RecipientID,
		Reason:      event.CallEndReasonTimeout,
	})
	ch.hub.emitToUser(call.RecipientID, event.EventCallEnded, model.CallEndedEvent{
		CallID:  call.CallID,
		EndedBy: event.EndedBySystem,
		Reason:  event.CallEndReasonTimeout,
	})
}

// notifyMissed stores a missed_call notification from the caller to the recipient.
func (ch *CallHandler) notifyMissed(ctx context.Context, call *model.Call, text string) {
	_, err := ch.hub.notifications.Notify(ctx, NotifyInput{
		Type:        model.NotificationMissedCall,
		SenderID:    call.CallerID,
		RecipientID: call.RecipientID,
		Message:     text,
		Metadata: model.NotificationMetadata{
			CallID:         call.CallID,
			CallType:       call.CallType,
			ConversationID: call.ConversationID,
		},
	})
	if err != nil {
		ch.logger.Warn("missed call notification failed", zap.String("call_id", call.CallID), zap.Error(err))
	}
}

func (ch *CallHandler) sendCallError(ep Endpoint, callID string, err error) {
	appErr := apperr.FromError(err)
	ch.hub.reply(ep, event.EventCallError, model.CallErrorEvent{
		CallID: callID,
		Error:  appErr.Message,
		Code:   appErr.Code,
	})
}

// callAudience is the caller, the recipient and every joined participant, once each.
func callAudience(call *model.Call) []string {
	seen := make(map[string]struct{}, len(call.Participants)+2)
	audience := make([]string, 0, len(call.Participants)+2)

	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		audience = append(audience, id)
	}

	add(call.CallerID)
	add(call.RecipientID)
	for _, id := range call.Participants {
		add(id)
	}
	return audience
}
