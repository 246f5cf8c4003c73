package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/filipexyz/orchestrator/internal/config"
	"github.com/filipexyz/orchestrator/internal/domain"
	"github.com/filipexyz/orchestrator/internal/hubstore"
	"github.com/google/uuid"
)

// ProxyHTTPRequest/ProxyHTTPResponse are the Proxy Bridge's view of a
// WebSocket-tunneled HTTP request, decoupled from the wire frame shape.
type ProxyHTTPRequest struct {
	Method  string
	Path    string
	Headers map[string][]string
	Body    []byte
}

type ProxyHTTPResponse struct {
	Status  int
	Headers map[string][]string
	Body    []byte
}

// ProxyWSFrame and ProxyWSClose mirror the wire bridge frames for the
// WebSocket tunnel mode, exported for internal/proxybridge to consume.
type ProxyWSFrame struct {
	Data   []byte
	IsText bool
}

type ProxyWSClose struct {
	Code   int
	Reason string
}

type wsBridgeSession struct {
	conn    *clientConn
	frames  chan ProxyWSFrame
	closed  chan ProxyWSClose
}

// Hub is the single-threaded cooperative actor owning one user's Registry
// and live sockets. Every mutation runs as a closure drained serially from
// commands by Run, so the Registry and socket maps need no locking.
type Hub struct {
	userID string
	cfg    *config.Config
	log    *slog.Logger

	registry *registry

	browsers map[*browserConn]struct{}

	pendingHTTP map[string]chan proxyHTTPRespFrame
	pendingWS   map[string]*wsBridgeSession

	commands  chan func()
	closed    chan struct{}
	closeOnce sync.Once
}

// NewHub constructs a Hub for userID and reloads its Registry from the
// durable store, reconciling any rows left over from a prior process (this
// implementation never restores a live socket handle across a restart, so
// every reloaded row is immediately disconnected per §4.2's cold-start
// rule).
func NewHub(userID string, cfg *config.Config, store *hubstore.Store, log *slog.Logger) (*Hub, error) {
	h := &Hub{
		userID:      userID,
		cfg:         cfg,
		log:         log.With("user_id", userID),
		browsers:    make(map[*browserConn]struct{}),
		pendingHTTP: make(map[string]chan proxyHTTPRespFrame),
		pendingWS:   make(map[string]*wsBridgeSession),
		commands:    make(chan func(), 256),
		closed:      make(chan struct{}),
	}
	h.registry = newRegistry(userID, store, h.log)

	if _, err := h.registry.loadFromStore(); err != nil {
		return nil, err
	}
	// No browsers are connected yet at construction time, so the
	// Disconnected broadcasts reconcileCold would emit have no audience;
	// only the durable-store and in-memory cleanup matters here.
	h.registry.reconcileCold()
	return h, nil
}

// Run drains commands until Close is called. It must run on its own
// goroutine for the lifetime of the hub.
func (h *Hub) Run() {
	for {
		select {
		case fn := <-h.commands:
			fn()
		case <-h.closed:
			h.shutdown()
			return
		}
	}
}

// Close stops the hub's command loop. Safe to call more than once.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.closed) })
}

func (h *Hub) shutdown() {
	for b := range h.browsers {
		b.requestClose(closeNormal, "hub shutting down")
	}
	for _, conn := range h.registry.sockets {
		conn.requestClose(closeNormal, "hub shutting down")
	}
	if err := h.registry.store.Close(); err != nil {
		h.log.Error("close hub store", "error", err)
	}
}

// enqueue runs fn on the hub's command goroutine. It never blocks past the
// hub closing: a send that loses the race with Close is simply dropped.
func (h *Hub) enqueue(fn func()) {
	select {
	case h.commands <- fn:
	case <-h.closed:
	}
}

func (h *Hub) broadcast(frame []byte) {
	for b := range h.browsers {
		if !b.writeJSON(frame) {
			delete(h.browsers, b)
		}
	}
}

// RegisterBrowser admits a newly accepted browser socket and pushes the
// initial client_list snapshot it needs to render without a separate
// fetch.
func (h *Hub) RegisterBrowser(b *browserConn) {
	h.enqueue(func() {
		h.browsers[b] = struct{}{}
		b.writeJSON(newClientList(h.registry.snapshot()))
	})
}

func (h *Hub) handleBrowserClosed(b *browserConn) {
	delete(h.browsers, b)
}

func (h *Hub) handleBrowserFrame(b *browserConn, raw []byte) {
	tag, err := frameType(raw)
	if err != nil {
		h.recordBrowserMalformed(b, err)
		return
	}

	switch tag {
	case TagGetClients:
		b.malformedCount = 0
		b.writeJSON(newClientList(h.registry.snapshot()))
	default:
		b.writeJSON(newError("unsupported message type for browser connection: " + tag))
	}
}

func (h *Hub) handleClientFrame(c *clientConn, raw []byte, first bool) {
	tag, err := frameType(raw)
	if err != nil {
		h.recordClientMalformed(c, err)
		return
	}

	if first && tag != TagRegister {
		c.requestClose(closePolicyViolation, "first frame must be register")
		return
	}
	if !c.registered && tag != TagRegister {
		c.writeJSON(newError("must register before sending other frames"))
		return
	}

	switch tag {
	case TagRegister, TagStatusUpdate, TagPing, TagProxyHTTPRsp, TagProxyWSFrame, TagProxyWSClose:
		// A frame with a recognized tag breaks any malformed-frame streak,
		// even if its payload later turns out invalid.
		c.malformedCount = 0
	}

	switch tag {
	case TagRegister:
		h.handleRegister(c, raw)
	case TagStatusUpdate:
		h.handleStatusUpdate(c, raw)
	case TagPing:
		h.handlePing(c, raw)
	case TagProxyHTTPRsp:
		h.handleProxyHTTPResp(c, raw)
	case TagProxyWSFrame:
		h.handleProxyWSFrame(c, raw)
	case TagProxyWSClose:
		h.handleProxyWSClose(c, raw)
	default:
		h.recordClientMalformed(c, errors.New("unsupported message type for client connection: "+tag))
	}
}

func (h *Hub) handleRegister(c *clientConn, raw []byte) {
	var frame struct {
		Type     string          `json:"type"`
		ClientID string          `json:"client_id"`
		Metadata json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil || frame.ClientID == "" {
		h.recordClientMalformed(c, domain.ErrProtocolError)
		return
	}
	if err := validateMetadata(frame.Metadata); err != nil {
		h.recordClientMalformed(c, err)
		return
	}

	var metadata domain.Metadata
	if err := json.Unmarshal(frame.Metadata, &metadata); err != nil {
		h.recordClientMalformed(c, err)
		return
	}

	prior, row, err := h.registry.register(frame.ClientID, metadata, c)
	if err != nil {
		h.log.Error("register client", "client_id", frame.ClientID, "error", err)
		c.requestClose(closeInternalError, "durable store unavailable")
		return
	}

	if prior != nil && prior != c {
		prior.requestClose(closeDisplaced, "displaced by newer registration")
	}

	c.clientID = frame.ClientID
	c.registered = true

	h.broadcast(newClientUpdate(row))
}

func (h *Hub) handleStatusUpdate(c *clientConn, raw []byte) {
	var frame statusUpdateFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.recordClientMalformed(c, err)
		return
	}
	if frame.ClientID != c.clientID {
		c.writeJSON(newError("client_id mismatch"))
		return
	}
	// Disconnected is only ever carried by the removal broadcast; a present
	// client cannot declare it.
	if !domain.ValidStatus(frame.Status) || frame.Status == domain.StatusDisconnected {
		c.writeJSON(newError("invalid status"))
		return
	}

	row, err := h.registry.updateStatus(c.clientID, frame.Status)
	if err != nil {
		h.log.Error("update status", "client_id", c.clientID, "error", err)
		c.requestClose(closeInternalError, "durable store unavailable")
		return
	}
	h.broadcast(newClientUpdate(row))
}

func (h *Hub) handlePing(c *clientConn, raw []byte) {
	var frame pingFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.recordClientMalformed(c, err)
		return
	}
	if frame.ClientID != c.clientID {
		c.writeJSON(newError("client_id mismatch"))
		return
	}

	if _, err := h.registry.touch(c.clientID); err != nil {
		h.log.Error("touch client", "client_id", c.clientID, "error", err)
		c.requestClose(closeInternalError, "durable store unavailable")
		return
	}
	c.writeJSON(newPong(c.clientID))
}

func (h *Hub) handleClientClosed(c *clientConn) {
	if c.clientID == "" || !c.registered {
		return
	}
	if !h.registry.isCurrentSocket(c.clientID, c) {
		// Already displaced by a newer registration; that socket's own
		// lifecycle owns the registry row now.
		return
	}
	if h.registry.remove(c.clientID) {
		h.broadcast(newClientDisconnected(c.clientID))
	}
}

func (h *Hub) handleProxyHTTPResp(c *clientConn, raw []byte) {
	var frame proxyHTTPRespFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.recordClientMalformed(c, err)
		return
	}
	ch, ok := h.pendingHTTP[frame.RequestID]
	if !ok {
		return // unmatched response, dropped per §4.4
	}
	delete(h.pendingHTTP, frame.RequestID)
	select {
	case ch <- frame:
	default:
	}
}

func (h *Hub) handleProxyWSFrame(c *clientConn, raw []byte) {
	var frame proxyWSFrameFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.recordClientMalformed(c, err)
		return
	}
	sess, ok := h.pendingWS[frame.RequestID]
	if !ok {
		return
	}
	select {
	case sess.frames <- ProxyWSFrame{Data: frame.Data, IsText: frame.IsText}:
	default:
	}
}

func (h *Hub) handleProxyWSClose(c *clientConn, raw []byte) {
	var frame proxyWSCloseFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.recordClientMalformed(c, err)
		return
	}
	sess, ok := h.pendingWS[frame.RequestID]
	if !ok {
		return
	}
	delete(h.pendingWS, frame.RequestID)
	select {
	case sess.closed <- ProxyWSClose{Code: frame.Code, Reason: frame.Reason}:
	default:
	}
}

// Snapshot answers an RPC-style read of the Registry, used by the internal
// dashboard-facing HTTP endpoint.
func (h *Hub) Snapshot() []domain.Client {
	reply := make(chan []domain.Client, 1)
	h.enqueue(func() { reply <- h.registry.snapshot() })
	select {
	case v := <-reply:
		return v
	case <-h.closed:
		return nil
	}
}

// FindClient answers an RPC-style lookup of a single Client row, used by
// the Proxy Bridge to decide which mode (HTTP or WebSocket tunnel) serves a
// given request before any bytes leave the hub.
func (h *Hub) FindClient(clientID string) (domain.Client, bool) {
	type result struct {
		row domain.Client
		ok  bool
	}
	reply := make(chan result, 1)
	h.enqueue(func() {
		row, _, ok := h.registry.find(clientID)
		reply <- result{row: row, ok: ok}
	})
	select {
	case v := <-reply:
		return v.row, v.ok
	case <-h.closed:
		return domain.Client{}, false
	}
}

// Evict forcibly disconnects a live client, used by the operator eviction
// HTTP op (spec.md §3's hub lifecycle, distinct from displacement: 4000
// rather than 4001). The registry row is removed by the ordinary
// handleClientClosed path once the close reaches the socket's read pump;
// Evict itself only requests the close.
func (h *Hub) Evict(clientID, reason string) bool {
	reply := make(chan bool, 1)
	h.enqueue(func() {
		conn, ok := h.registry.evict(clientID)
		if !ok {
			reply <- false
			return
		}
		conn.requestClose(closeEvicted, reason)
		reply <- true
	})
	select {
	case v := <-reply:
		return v
	case <-h.closed:
		return false
	}
}

// ActiveConnections reports how many sockets (client + browser) this hub
// currently holds open, used by the HubManager's hibernation timer.
func (h *Hub) ActiveConnections() int {
	reply := make(chan int, 1)
	h.enqueue(func() { reply <- len(h.registry.sockets) + len(h.browsers) })
	select {
	case v := <-reply:
		return v
	case <-h.closed:
		return 0
	}
}

// SendProxyHTTPRequest implements the WebSocket bridge's HTTP mode: it
// allocates a request id, writes a proxy_http_req frame over the client's
// socket, and waits for the correlated proxy_http_resp or ctx expiry.
func (h *Hub) SendProxyHTTPRequest(ctx context.Context, clientID string, req ProxyHTTPRequest) (ProxyHTTPResponse, error) {
	requestID := uuid.NewString()
	replyCh := make(chan proxyHTTPRespFrame, 1)
	found := make(chan bool, 1)

	h.enqueue(func() {
		_, conn, ok := h.registry.find(clientID)
		if !ok {
			found <- false
			return
		}
		h.pendingHTTP[requestID] = replyCh
		conn.writeJSON(mustJSON(proxyHTTPReqFrame{
			Type:      TagProxyHTTPReq,
			RequestID: requestID,
			Method:    req.Method,
			Path:      req.Path,
			Headers:   req.Headers,
			Body:      req.Body,
		}))
		found <- true
	})

	select {
	case ok := <-found:
		if !ok {
			return ProxyHTTPResponse{}, domain.ErrNotFound
		}
	case <-h.closed:
		return ProxyHTTPResponse{}, domain.ErrNotFound
	}

	select {
	case frame := <-replyCh:
		return ProxyHTTPResponse{Status: frame.Status, Headers: frame.Headers, Body: frame.Body}, nil
	case <-ctx.Done():
		h.enqueue(func() { delete(h.pendingHTTP, requestID) })
		return ProxyHTTPResponse{}, domain.ErrGatewayError
	case <-h.closed:
		return ProxyHTTPResponse{}, domain.ErrGatewayError
	}
}

// OpenProxyWS implements the WebSocket bridge's tunnel mode: it sends a
// proxy_ws_open frame and returns a session the caller drains frames/close
// events from for the life of the tunneled connection.
func (h *Hub) OpenProxyWS(clientID, path string, headers map[string][]string) (requestID string, frames <-chan ProxyWSFrame, closedCh <-chan ProxyWSClose, err error) {
	requestID = uuid.NewString()
	sess := &wsBridgeSession{
		frames: make(chan ProxyWSFrame, 32),
		closed: make(chan ProxyWSClose, 1),
	}
	found := make(chan bool, 1)

	h.enqueue(func() {
		_, conn, ok := h.registry.find(clientID)
		if !ok {
			found <- false
			return
		}
		sess.conn = conn
		h.pendingWS[requestID] = sess
		conn.writeJSON(mustJSON(proxyWSOpenFrame{Type: TagProxyWSOpen, RequestID: requestID, Path: path, Headers: headers}))
		found <- true
	})

	select {
	case ok := <-found:
		if !ok {
			return "", nil, nil, domain.ErrNotFound
		}
	case <-h.closed:
		return "", nil, nil, domain.ErrNotFound
	}
	return requestID, sess.frames, sess.closed, nil
}

// SendProxyWSFrame forwards a browser-originated frame to the client side
// of an open tunnel.
func (h *Hub) SendProxyWSFrame(requestID string, data []byte, isText bool) {
	h.enqueue(func() {
		sess, ok := h.pendingWS[requestID]
		if !ok {
			return
		}
		sess.conn.writeJSON(mustJSON(proxyWSFrameFrame{Type: TagProxyWSFrame, RequestID: requestID, Data: data, IsText: isText}))
	})
}

// CloseProxyWS tears down a tunnel's correlation entry and tells the
// client side it is closed.
func (h *Hub) CloseProxyWS(requestID string, code int, reason string) {
	h.enqueue(func() {
		sess, ok := h.pendingWS[requestID]
		if !ok {
			return
		}
		delete(h.pendingWS, requestID)
		sess.conn.writeJSON(mustJSON(proxyWSCloseFrame{Type: TagProxyWSClose, RequestID: requestID, Code: code, Reason: reason}))
	})
}
