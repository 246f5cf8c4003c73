package domain

import "errors"

// Error taxonomy shared by the hub and proxy bridge. Each sentinel maps to
// a specific transport-level surfacing rule documented at its call site.
var (
	// ErrAuthFailure: missing/invalid token or session. Surfaced as HTTP 401
	// or WebSocket close 1008. Never retried by the hub.
	ErrAuthFailure = errors.New("auth failure")

	// ErrProtocolError: malformed frame, wrong role, wrong client_id.
	// Replied as an error frame. A client socket is closed after three
	// consecutive frames that are malformed or carry a tag the client role
	// does not accept; a client_id mismatch gets an error frame only and
	// does not count toward that close. A browser socket counts only
	// malformed JSON toward the close.
	ErrProtocolError = errors.New("protocol error")

	// ErrNotFound: proxy target client not present in the Registry.
	ErrNotFound = errors.New("not found")

	// ErrGatewayError: upstream proxy target unreachable or timed out.
	ErrGatewayError = errors.New("gateway error")

	// ErrTransient: durable store write failure. hubstore.PutRetry repeats
	// the same write once (the row is not re-read first); if that also
	// fails, the hub closes the affected connection.
	ErrTransient = errors.New("transient store error")
)
