package hub

import (
	"log/slog"
	"net/http"

	"github.com/filipexyz/orchestrator/internal/config"
	"github.com/filipexyz/orchestrator/internal/db"
	"github.com/filipexyz/orchestrator/internal/identity"
	"github.com/gorilla/websocket"
)

// SessionVerifier authenticates a browser's session cookie and reports the
// owning user id. Session issuance and the choice of verification strategy
// (HMAC-signed cookie, relational lookup, Clerk) live outside the hub —
// this is the narrow interface boundary the Acceptor consumes.
type SessionVerifier interface {
	VerifySession(r *http.Request) (userID string, ok bool)
}

// Acceptor validates inbound WebSocket upgrade requests, classifies them
// as client or browser per the rules in spec.md §4.1, and hands the
// accepted socket to the owning user's Hub.
type Acceptor struct {
	tokens    *db.Queries
	sessions  SessionVerifier
	manager   *Manager
	whitelist identity.WhitelistConfig
	log       *slog.Logger

	upgrader websocket.Upgrader
}

func NewAcceptor(tokens *db.Queries, sessions SessionVerifier, manager *Manager, cfg *config.Config, log *slog.Logger) *Acceptor {
	return &Acceptor{
		tokens:   tokens,
		sessions: sessions,
		manager:  manager,
		whitelist: identity.WhitelistConfig{
			AllowedOrgs:  cfg.AllowedOrgs,
			AllowedUsers: cfg.AllowedUsers,
			AllowedTeams: cfg.AllowedTeams,
		},
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements the "… /ws/connect" endpoint for both roles.
func (a *Acceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Rule 1: token query parameter present -> client connection.
	if token := r.URL.Query().Get("token"); token != "" {
		ownerUserID, err := a.tokens.VerifyClientToken(ctx, token)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !a.allowed(ownerUserID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		a.acceptClient(w, r, ownerUserID)
		return
	}

	// Rule 2: a valid session cookie for some user -> browser connection.
	if a.sessions != nil {
		if userID, ok := a.sessions.VerifySession(r); ok {
			if !a.allowed(userID) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			a.acceptBrowser(w, r, userID)
			return
		}
	}

	// Rule 3: reject.
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// allowed applies the identity whitelist before a hub is ever created for
// userID — rejecting here means Manager.Acquire never opens (or reloads)
// a store for a user the operator hasn't allowed onto this instance.
func (a *Acceptor) allowed(userID string) bool {
	return identity.Allow(identity.Profile{UserID: userID}, a.whitelist)
}

func (a *Acceptor) acceptClient(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("client upgrade failed", "error", err)
		return
	}

	h, err := a.manager.Acquire(r.Context(), userID)
	if err != nil {
		a.log.Error("acquire hub", "user_id", userID, "error", err)
		conn.Close()
		return
	}

	c := newClientConn(h, conn, a.log)
	go c.writePump()
	c.readPump()
}

func (a *Acceptor) acceptBrowser(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("browser upgrade failed", "error", err)
		return
	}

	h, err := a.manager.Acquire(r.Context(), userID)
	if err != nil {
		a.log.Error("acquire hub", "user_id", userID, "error", err)
		conn.Close()
		return
	}

	b := newBrowserConn(h, conn, a.log)
	go b.writePump()
	h.RegisterBrowser(b)
	b.readPump()
}
