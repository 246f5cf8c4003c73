package hub

import (
	"time"

	"github.com/gorilla/websocket"
)

// Ping/pong and write timing, carried over unchanged from the teacher's
// websocket.Client constants — they are transport-level keepalive, not the
// application-level ping/pong frame the Router also speaks.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1 MiB, generous for metadata/proxy body frames
)

// Close codes per spec.md §6: 1008 policy violation (handshake timeout,
// invalid first tag), 1002 protocol error (three consecutive malformed
// frames), 1000 normal, 4000 operator eviction, 4001 displacement.
const (
	closePolicyViolation = websocket.ClosePolicyViolation
	closeProtocolError   = websocket.CloseProtocolError
	closeNormal          = websocket.CloseNormalClosure
	closeEvicted         = 4000
	closeDisplaced       = 4001
	closeInternalError   = websocket.CloseInternalServerErr
)

// closeRequest asks the owning write pump to send a close control frame
// with a specific code before tearing down the connection.
type closeRequest struct {
	code   int
	reason string
}

// outboundItem is either an ordinary text frame or a close request,
// carried on the same channel so ordering between "send this error frame"
// and "then close" is preserved — all writes to a gorilla websocket.Conn
// must come from one goroutine, and a separate close channel would let
// Go's pseudo-random select reorder a close ahead of a frame queued just
// before it.
type outboundItem struct {
	frame []byte
	close *closeRequest
}
