// Package hub implements the per-user WebSocket orchestration actor: the
// Acceptor, the Registry, the Router, and the socket pumps that drive them.
package hub

import (
	"encoding/json"
	"fmt"

	"github.com/filipexyz/orchestrator/internal/domain"
)

// Inbound and outbound frame tags, exactly the tag tables of the message
// router: client->hub, browser->hub, and hub->either.
const (
	TagRegister     = "register"
	TagStatusUpdate = "status_update"
	TagPing         = "ping"
	TagGetClients   = "get_clients"
	TagProxyHTTPReq = "proxy_http_req"
	TagProxyHTTPRsp = "proxy_http_resp"
	TagProxyWSOpen  = "proxy_ws_open"
	TagProxyWSFrame = "proxy_ws_frame"
	TagProxyWSClose = "proxy_ws_close"

	TagPong         = "pong"
	TagClientUpdate = "client_update"
	TagClientList   = "client_list"
	TagError        = "error"
)

// envelope is decoded first to recover the tag before dispatch.
type envelope struct {
	Type string `json:"type"`
}

func frameType(raw []byte) (string, error) {
	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return "", err
	}
	if e.Type == "" {
		return "", fmt.Errorf("missing type field")
	}
	return e.Type, nil
}

// Inbound frame shapes.

type registerFrame struct {
	Type     string          `json:"type"`
	ClientID string          `json:"client_id"`
	Metadata domain.Metadata `json:"metadata"`
}

type statusUpdateFrame struct {
	Type     string        `json:"type"`
	ClientID string        `json:"client_id"`
	Status   domain.Status `json:"status"`
}

type pingFrame struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
}

type getClientsFrame struct {
	Type string `json:"type"`
}

// proxyHTTPReqFrame carries a forwarded HTTP request in WebSocket bridge
// mode, in either direction: hub->client to initiate, or (never) the
// reverse — the client only ever sends proxyHTTPRespFrame.
type proxyHTTPReqFrame struct {
	Type      string              `json:"type"`
	RequestID string              `json:"request_id"`
	Method    string              `json:"method"`
	Path      string              `json:"path"`
	Headers   map[string][]string `json:"headers,omitempty"`
	Body      []byte              `json:"body,omitempty"`
}

type proxyHTTPRespFrame struct {
	Type      string              `json:"type"`
	RequestID string              `json:"request_id"`
	Status    int                 `json:"status"`
	Headers   map[string][]string `json:"headers,omitempty"`
	Body      []byte              `json:"body,omitempty"`
}

type proxyWSOpenFrame struct {
	Type      string              `json:"type"`
	RequestID string              `json:"request_id"`
	Path      string              `json:"path"`
	Headers   map[string][]string `json:"headers,omitempty"`
}

type proxyWSFrameFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Data      []byte `json:"data"`
	IsText    bool   `json:"is_text"`
}

type proxyWSCloseFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Code      int    `json:"code"`
	Reason    string `json:"reason,omitempty"`
}

// Outbound frame shapes.

type pongFrame struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
}

// clientUpdateFrame is either a full Client row, or the minimal
// {id, status:"disconnected"} shape emitted at removal time.
type clientUpdateFrame struct {
	Type        string           `json:"type"`
	ID          string           `json:"id"`
	Metadata    *domain.Metadata `json:"metadata,omitempty"`
	Status      domain.Status    `json:"status"`
	ConnectedAt *string          `json:"connected_at,omitempty"`
	LastSeen    *string          `json:"last_seen,omitempty"`
}

type clientListFrame struct {
	Type    string          `json:"type"`
	Clients []domain.Client `json:"clients"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Only ever called on our own outbound types; a marshal failure here
		// means a programming error, not a runtime condition to recover from.
		panic(fmt.Sprintf("hub: marshal outbound frame: %v", err))
	}
	return data
}

func newPong(clientID string) []byte {
	return mustJSON(pongFrame{Type: TagPong, ClientID: clientID})
}

func newError(message string) []byte {
	return mustJSON(errorFrame{Type: TagError, Message: message})
}

func newClientUpdate(c domain.Client) []byte {
	connectedAt := c.ConnectedAt.UTC().Format(rfc3339)
	lastSeen := c.LastSeen.UTC().Format(rfc3339)
	return mustJSON(clientUpdateFrame{
		Type:        TagClientUpdate,
		ID:          c.ID,
		Metadata:    &c.Metadata,
		Status:      c.Status,
		ConnectedAt: &connectedAt,
		LastSeen:    &lastSeen,
	})
}

func newClientDisconnected(clientID string) []byte {
	return mustJSON(clientUpdateFrame{
		Type:   TagClientUpdate,
		ID:     clientID,
		Status: domain.StatusDisconnected,
	})
}

func newClientList(clients []domain.Client) []byte {
	if clients == nil {
		clients = []domain.Client{}
	}
	return mustJSON(clientListFrame{Type: TagClientList, Clients: clients})
}

const rfc3339 = "2006-01-02T15:04:05.999999999Z07:00"
