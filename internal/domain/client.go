package domain

import "time"

// Status is the declared liveness state of a Client.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusActive       Status = "active"
	StatusBusy         Status = "busy"
	StatusDisconnected Status = "disconnected"
)

// ValidStatus reports whether s is one of the declared enum values.
func ValidStatus(s Status) bool {
	switch s {
	case StatusIdle, StatusActive, StatusBusy, StatusDisconnected:
		return true
	default:
		return false
	}
}

// Metadata is the developer-tool-declared description of a Client, sent on register.
type Metadata struct {
	Hostname    string `json:"hostname"`
	Project     string `json:"project"`
	Status      Status `json:"status"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// Client is a remote tool instance registered to one user's hub.
//
// A Client row exists in the Registry iff its socket is open and a
// successful register frame has been received for it. It is never
// persisted with Status == StatusDisconnected; that status is only
// ever carried in the final broadcast emitted at removal.
type Client struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Metadata    Metadata  `json:"metadata"`
	Status      Status    `json:"status"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`
}
