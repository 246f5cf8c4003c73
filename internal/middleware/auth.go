package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/filipexyz/orchestrator/internal/config"
	"github.com/filipexyz/orchestrator/internal/db"
)

type contextKey string

const userContextKey contextKey = "userID"

const sessionCookieName = "session"

// NewSessionVerifier builds the hub.SessionVerifier for cfg.SessionMode,
// one of the three strategies named in spec.md §4.1's classification rule
// 2. The Acceptor only ever sees the narrow VerifySession method; which
// concrete strategy backs it is an operational choice, not a hub concern.
func NewSessionVerifier(cfg *config.Config, queries *db.Queries) (*SessionVerifier, error) {
	switch cfg.SessionMode {
	case config.SessionModeHMAC:
		if cfg.SessionHMACKey == "" {
			return nil, fmt.Errorf("SESSION_HMAC_KEY required for hmac session mode")
		}
		return &SessionVerifier{strategy: &hmacStrategy{key: []byte(cfg.SessionHMACKey)}}, nil
	case config.SessionModeDB:
		return &SessionVerifier{strategy: &dbStrategy{queries: queries}}, nil
	case config.SessionModeClerk:
		if cfg.ClerkSecretKey == "" {
			return nil, fmt.Errorf("CLERK_SECRET_KEY required for clerk session mode")
		}
		return &SessionVerifier{strategy: newClerkStrategy(cfg.ClerkSecretKey)}, nil
	default:
		return nil, fmt.Errorf("unknown session mode %q", cfg.SessionMode)
	}
}

// sessionStrategy is the pluggable half of SessionVerifier; each mode reads
// whatever credential it needs from the request and returns the owning
// user id.
type sessionStrategy interface {
	verify(r *http.Request) (userID string, ok bool)
}

// SessionVerifier implements hub.SessionVerifier by delegating to one of
// the three session-verification strategies selected at startup.
type SessionVerifier struct {
	strategy sessionStrategy
}

func (v *SessionVerifier) VerifySession(r *http.Request) (string, bool) {
	return v.strategy.verify(r)
}

// hmacStrategy verifies a session cookie of the form
// "<user_id>.<base64url(hmac_sha256(user_id, key))>" without consulting any
// external store — the whole point of self-hosted HMAC sessions.
type hmacStrategy struct {
	key []byte
}

func (s *hmacStrategy) verify(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	userID, sig, ok := strings.Cut(c.Value, ".")
	if !ok || userID == "" {
		return "", false
	}
	given, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}

	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(userID))
	want := mac.Sum(nil)

	if !hmac.Equal(given, want) {
		return "", false
	}
	return userID, true
}

// SignSessionCookie produces the cookie value hmacStrategy.verify accepts;
// exported for the out-of-scope session-issuance front to call.
func SignSessionCookie(key []byte, userID string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(userID))
	return userID + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// dbStrategy looks the cookie value up against the relational sessions
// table, per spec.md §6's "reads sessions by cookie value."
type dbStrategy struct {
	queries *db.Queries
}

func (s *dbStrategy) verify(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	row, err := s.queries.GetSessionByCookie(r.Context(), c.Value)
	if err != nil {
		return "", false
	}
	if !row.ExpiresAt.IsZero() && time.Now().After(row.ExpiresAt) {
		return "", false
	}
	return row.UserID, true
}

// RequireSession is ordinary HTTP middleware (not the WebSocket Acceptor
// path) gating the proxy surface and the internal RPC read endpoint — both
// need the requesting browser's user id to check it owns the target
// Client before anything is forwarded (spec.md §4.4 authorization rule).
func RequireSession(v *SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := v.VerifySession(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID retrieves the authenticated browser's user id set by RequireSession.
func UserID(ctx context.Context) string {
	userID, _ := ctx.Value(userContextKey).(string)
	return userID
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
