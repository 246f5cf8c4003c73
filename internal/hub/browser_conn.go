package hub

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// browserConn is a browser-role socket: an authenticated dashboard
// observer with no durable identity beyond the connection itself.
type browserConn struct {
	hub  *Hub
	conn *websocket.Conn
	log  *slog.Logger

	out            chan outboundItem
	done           chan struct{}
	limiter        *rate.Limiter
	malformedCount int
}

func newBrowserConn(h *Hub, conn *websocket.Conn, log *slog.Logger) *browserConn {
	return &browserConn{
		hub:     h,
		conn:    conn,
		log:     log,
		out:     make(chan outboundItem, 64),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(h.cfg.FrameRatePerSecond), h.cfg.FrameRateBurst),
	}
}

func (b *browserConn) readPump() {
	defer func() {
		b.hub.enqueue(func() { b.hub.handleBrowserClosed(b) })
		close(b.done)
	}()

	b.conn.SetReadLimit(maxMessageSize)
	b.conn.SetReadDeadline(time.Now().Add(pongWait))
	b.conn.SetPongHandler(func(string) error {
		b.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := b.conn.ReadMessage()
		if err != nil {
			return
		}
		if !b.limiter.Allow() {
			b.log.Warn("browser frame rate exceeded, dropping frame")
			continue
		}
		frame := append([]byte(nil), raw...)
		b.hub.enqueue(func() { b.hub.handleBrowserFrame(b, frame) })
	}
}

func (b *browserConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		b.conn.Close()
	}()

	for {
		select {
		case item := <-b.out:
			b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if item.close != nil {
				msg := websocket.FormatCloseMessage(item.close.code, item.close.reason)
				b.conn.WriteMessage(websocket.CloseMessage, msg)
				return
			}
			if err := b.conn.WriteMessage(websocket.TextMessage, item.frame); err != nil {
				return
			}

		case <-b.done:
			return

		case <-ticker.C:
			b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := b.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (b *browserConn) requestClose(code int, reason string) {
	select {
	case b.out <- outboundItem{close: &closeRequest{code: code, reason: reason}}:
	default:
	}
}

// writeJSON enqueues an outbound frame. Per the broadcast policy, a full
// buffer is treated the same as a write failure: the observer is pruned by
// the caller rather than retried or queued.
func (b *browserConn) writeJSON(data []byte) bool {
	select {
	case b.out <- outboundItem{frame: data}:
		return true
	default:
		return false
	}
}
