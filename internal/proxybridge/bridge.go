// Package proxybridge implements the hub's Proxy Bridge: forwarding
// browser HTTP/WebSocket traffic either to a Client's declared callback URL
// or tunneled over its already-open hub socket.
package proxybridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/filipexyz/orchestrator/internal/domain"
	"github.com/filipexyz/orchestrator/internal/hub"
	"github.com/gorilla/websocket"
)

// hubPort is the narrow slice of *hub.Hub the bridge needs, kept as an
// interface so bridge tests can fake it without standing up a real Hub.
type hubPort interface {
	FindClient(clientID string) (domain.Client, bool)
	SendProxyHTTPRequest(ctx context.Context, clientID string, req hub.ProxyHTTPRequest) (hub.ProxyHTTPResponse, error)
	OpenProxyWS(clientID, path string, headers map[string][]string) (requestID string, frames <-chan hub.ProxyWSFrame, closedCh <-chan hub.ProxyWSClose, err error)
	SendProxyWSFrame(requestID string, data []byte, isText bool)
	CloseProxyWS(requestID string, code int, reason string)
}

// Bridge selects between the HTTP proxy mode and the WebSocket tunnel mode
// per request, and owns the correlation timeout for HTTP requests forwarded
// over the client's hub socket. The WebSocket tunnel mode applies no
// timeout: it does not wait for the client to acknowledge proxy_ws_open.
type Bridge struct {
	log          *slog.Logger
	httpProxy    *HTTPProxy
	proxyTimeout time.Duration
	upgrader     websocket.Upgrader
}

func NewBridge(proxyTimeout time.Duration, log *slog.Logger) *Bridge {
	return &Bridge{
		log:          log,
		httpProxy:    NewHTTPProxy(proxyTimeout, log),
		proxyTimeout: proxyTimeout,
		upgrader:     websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// ServeHTTP dispatches {METHOD} /clients/{client_id}/proxy/{tail...}.
// Authorization — that the requesting browser belongs to the owning user of
// clientID — is the caller's responsibility (internal/server passes only
// the hub of the session's own user, so clientID is looked up there and
// nowhere else), since the bridge itself has no notion of the requesting
// session.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request, h hubPort, clientID, tail string, proxyPrefix string) {
	row, ok := h.FindClient(clientID)
	if !ok {
		http.Error(w, "client not found", http.StatusNotFound)
		return
	}

	if websocket.IsWebSocketUpgrade(r) {
		b.serveWebSocketTunnel(w, r, h, clientID, tail)
		return
	}

	if row.Metadata.CallbackURL != "" {
		b.httpProxy.Forward(w, r, row.Metadata.CallbackURL, tail, proxyPrefix)
		return
	}

	b.forwardOverSocket(w, r, h, clientID, tail)
}

// forwardOverSocket implements the WebSocket bridge's HTTP fallback mode:
// it tunnels an ordinary HTTP request/response pair over the client's
// already-open hub socket when no callback_url is advertised.
func (b *Bridge) forwardOverSocket(w http.ResponseWriter, r *http.Request, h hubPort, clientID, tail string) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), b.proxyTimeout)
	defer cancel()

	resp, err := h.SendProxyHTTPRequest(ctx, clientID, hub.ProxyHTTPRequest{
		Method:  r.Method,
		Path:    tail,
		Headers: r.Header,
		Body:    body,
	})
	if err != nil {
		if errors.Is(err, domain.ErrGatewayError) {
			http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
			return
		}
		http.Error(w, "client not found", http.StatusNotFound)
		return
	}

	copyHeaders(w.Header(), resp.Headers)
	w.WriteHeader(resp.Status)
	w.Write(resp.Body)
}

// serveWebSocketTunnel implements the WebSocket bridge's tunnel mode: the
// browser's own WebSocket upgrade is proxied frame-for-frame over a
// proxy_ws_open/proxy_ws_frame/proxy_ws_close conversation on the client's
// hub socket.
func (b *Bridge) serveWebSocketTunnel(w http.ResponseWriter, r *http.Request, h hubPort, clientID, tail string) {
	requestID, frames, closedCh, err := h.OpenProxyWS(clientID, tail, r.Header)
	if err != nil {
		http.Error(w, "client not found", http.StatusNotFound)
		return
	}

	browserConn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer browserConn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			msgType, data, err := browserConn.ReadMessage()
			if err != nil {
				h.CloseProxyWS(requestID, websocket.CloseNormalClosure, "browser closed")
				return
			}
			h.SendProxyWSFrame(requestID, data, msgType == websocket.TextMessage)
		}
	}()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return
			}
			msgType := websocket.BinaryMessage
			if frame.IsText {
				msgType = websocket.TextMessage
			}
			if err := browserConn.WriteMessage(msgType, frame.Data); err != nil {
				return
			}
		case closeEvt := <-closedCh:
			browserConn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(closeEvt.Code, closeEvt.Reason))
			return
		case <-done:
			return
		}
	}
}
