package hub

import (
	"Circlet/internal/event"
	"Circlet/internal/metrics"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// tuning parameters
	writeWait          = 10 * time.Second       // time allowed to write a message to the peer
	pongWait           = 20 * time.Second       // time allowed to read the next pong message from the peer
	pingInterval       = (pongWait * 9) / 10    // send pings to peer with this period
	maxMessageSize     = 64 * 1024              // max inbound message size (64KB)
	sendBufSize        = 256                    // per-connection outbound buffer size
	inboundBufSize     = 64                     // per-connection inbound queue size
	sendTimeout        = 2 * time.Second        // timeout for enqueuing outbound messages
	kickOnFull         = true                   // when true, disconnect client when egress is full
	inboundSendTimeout = 500 * time.Millisecond // timeout for sending to inbound queue
	closeGracePeriod   = 5 * time.Second        // force-close the socket if the writer has not closed it by then
)

// Client is one websocket connection. It reads frames into a per-connection
// queue drained by a single processor goroutine, so events of one connection
// are handled in arrival order.
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	hub    *Hub
	logger *zap.Logger

	egress  chan event.WsEvent
	inbound chan event.WsEvent

	ctx            context.Context
	cancel         context.CancelFunc
	once           sync.Once
	connClosed     chan struct{}
	connClosedOnce sync.Once
}

func newClient(userID string, conn *websocket.Conn, h *Hub) *Client {
	ctx, cancel := context.WithCancel(h.ctx)
	id := uuid.NewString()

	return &Client{
		id:         id,
		userID:     userID,
		conn:       conn,
		hub:        h,
		logger:     h.logger.With(zap.String("client_id", id), zap.String("user_id", userID)),
		egress:     make(chan event.WsEvent, sendBufSize),
		inbound:    make(chan event.WsEvent, inboundBufSize),
		ctx:        ctx,
		cancel:     cancel,
		connClosed: make(chan struct{}),
	}
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() string { return c.userID }

// Send queues ev, kicking the client when its buffer stays full.
func (c *Client) Send(ev event.WsEvent) bool {
	if c.SafeSend(ev, sendTimeout) {
		return true
	}

	metrics.DroppedSends.Inc()
	if kickOnFull && c.ctx.Err() == nil {
		c.logger.Warn("egress full, disconnecting client", zap.String("event", ev.Event))
		c.Close()
	}
	return false
}

// SafeSend attempts to queue ev. Returns false if the client is closed or the timeout elapses.
func (c *Client) SafeSend(ev event.WsEvent, timeout time.Duration) bool {
	if c.ctx.Err() != nil {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.ctx.Done():
		return false
	case c.egress <- ev:
		return true
	case <-timer.C:
		return false
	}
}

// serve runs the connection until the peer goes away, then disconnects it from the hub.
func (c *Client) serve(connection *Connection) {
	processed := make(chan struct{})

	go c.writeMessages()
	go func() {
		defer close(processed)
		c.processEvents(connection)
	}()

	c.readMessages()

	c.Close()
	<-processed
	c.hub.Disconnect(connection)
}

func (c *Client) readMessages() {
	c.conn.SetReadLimit(int64(maxMessageSize))
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		var ev event.WsEvent
		if err := c.conn.ReadJSON(&ev); err != nil {
			c.logReadError(err)
			return
		}

		select {
		case c.inbound <- ev:
		case <-time.After(inboundSendTimeout):
			c.logger.Warn("inbound queue full, dropping client")
			return
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) logReadError(err error) {
	if c.ctx.Err() != nil {
		return
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		c.logger.Debug("client disconnected")
		return
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		c.logger.Info("client timed out, closing connection")
		return
	}

	if websocket.IsUnexpectedCloseError(err) {
		c.logger.Info("unexpected close", zap.Error(err))
		return
	}

	c.logger.Warn("error reading from client", zap.Error(err))
}

func (c *Client) processEvents(connection *Connection) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.inbound:
			c.hub.HandleEvent(c.ctx, connection, ev)
		}
	}
}

func (c *Client) writeMessages() {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = c.conn.Close()

		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.egress:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
				c.Close()
				return
			}
		}
	}
}

func (c *Client) pongHandler(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// Close stops the pumps. egress is never closed; senders observe ctx.Done.
func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()

		go func() {
			select {
			case <-c.connClosed:
			case <-time.After(closeGracePeriod):
				_ = c.conn.Close()
				c.logger.Warn("safety timeout: force closed connection")
			}
		}()
	})
}
