package hub

import "Circlet/internal/event"

// Endpoint is one live, authenticated transport connection.
// Send must not block for longer than the transport's send timeout and
// reports whether the event was queued.
type Endpoint interface {
	ID() string
	UserID() string
	Send(ev event.WsEvent) bool
}
