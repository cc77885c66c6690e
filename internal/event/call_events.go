package event

import "time"

// Call Event Types - Client to Server
const (
	// EventCallInitiate - Caller rings a single recipient
	EventCallInitiate = "call_initiate"

	// EventCallAccept - Recipient answers a ringing call
	EventCallAccept = "call_accept"

	// EventCallReject - Recipient (or caller) declines a ringing call
	EventCallReject = "call_reject"

	// EventCallEnd - Either party hangs up
	EventCallEnd = "call_end"

	EventGetCallInfo     = "get_call_info"
	EventCheckActiveCall = "check_active_call"
)

// WebRTC signaling, same name in both directions
const (
	EventWebRTCOffer        = "webrtc_offer"
	EventWebRTCAnswer       = "webrtc_answer"
	EventWebRTCIceCandidate = "webrtc_ice_candidate"
)

// Call Event Types - Server to Client
const (
	EventCallIncoming    = "incoming_call"
	EventCallInitiated   = "call_initiated"
	EventCallAccepted    = "call_accepted"
	EventCallRejected    = "call_rejected"
	EventCallEnded       = "call_ended"
	EventCallFailed      = "call_failed"
	EventCallError       = "call_error"
	EventCallInfo        = "call_info"
	EventActiveCallState = "active_call_status"
)

// Call Types
const (
	CallTypeAudio = "audio"
	CallTypeVideo = "video"
)

// Call End Reasons
const (
	CallEndReasonNormal           = "Call ended"
	CallEndReasonRejected         = "Call rejected"
	CallEndReasonTimeout          = "Call timed out"
	CallEndReasonPeerDisconnected = "peer disconnected"
	CallFailReasonOffline         = "recipient_offline"

	// EndedBySystem marks transitions driven by the ring timer or a disconnect.
	EndedBySystem = "system"
)

// DefaultRingTimeout is how long a call may ring before it is declared missed.
const DefaultRingTimeout = 45 * time.Second
