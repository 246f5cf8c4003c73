package hub

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// clientConn is a client-role socket: a remote developer-tool instance
// authenticated by a token. Its clientID and registered flag are written
// only from the owning Hub's command goroutine, so no lock is needed —
// the read/write pumps never touch them directly, only via enqueued
// closures.
type clientConn struct {
	hub  *Hub
	conn *websocket.Conn
	log  *slog.Logger

	out     chan outboundItem
	done    chan struct{}
	limiter *rate.Limiter

	clientID       string
	registered     bool
	malformedCount int
}

func newClientConn(h *Hub, conn *websocket.Conn, log *slog.Logger) *clientConn {
	return &clientConn{
		hub:     h,
		conn:    conn,
		log:     log,
		out:     make(chan outboundItem, 64),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(h.cfg.FrameRatePerSecond), h.cfg.FrameRateBurst),
	}
}

// readPump enforces the handshake window on the first frame, then runs
// the steady-state keepalive deadline for the life of the connection.
func (c *clientConn) readPump() {
	defer func() {
		c.hub.enqueue(func() { c.hub.handleClientClosed(c) })
		close(c.done)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.HandshakeTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	first := true
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if first {
				c.requestClose(closePolicyViolation, "handshake timeout")
			}
			return
		}
		if first {
			c.conn.SetReadDeadline(time.Now().Add(pongWait))
		}

		if !c.limiter.Allow() {
			c.log.Warn("client frame rate exceeded, dropping frame")
			first = false
			continue
		}

		frame := append([]byte(nil), raw...)
		wasFirst := first
		c.hub.enqueue(func() { c.hub.handleClientFrame(c, frame, wasFirst) })
		first = false
	}
}

// writePump is the sole writer to conn, per gorilla/websocket's concurrency
// contract: ordinary frames, keepalive pings, and close requests all
// funnel through it, in the order they were enqueued.
func (c *clientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case item := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if item.close != nil {
				msg := websocket.FormatCloseMessage(item.close.code, item.close.reason)
				c.conn.WriteMessage(websocket.CloseMessage, msg)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, item.frame); err != nil {
				return
			}

		case <-c.done:
			// readPump already hit a read error; any frame still sitting
			// in out is stale. Close is called in the deferred cleanup.
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// requestClose asks the write pump to close with a specific code, after
// any frames already queued ahead of it.
func (c *clientConn) requestClose(code int, reason string) {
	select {
	case c.out <- outboundItem{close: &closeRequest{code: code, reason: reason}}:
	default:
		c.log.Warn("client close request dropped, send buffer full", "client_id", c.clientID)
	}
}

// writeJSON enqueues an outbound frame, dropping it if the send buffer is
// full rather than blocking the hub's single goroutine.
func (c *clientConn) writeJSON(data []byte) {
	select {
	case c.out <- outboundItem{frame: data}:
	default:
		c.log.Warn("client send buffer full, dropping frame", "client_id", c.clientID)
	}
}
