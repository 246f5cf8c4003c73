package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// TokenScheme is the wire-format scheme prefix for client bearer tokens.
// Stable external contract: connecting tools embed this prefix. Do not
// change without a migration.
const TokenScheme = "orc"

var ErrMalformedToken = errors.New("malformed token")

// Token is a long-lived credential that authorizes a client to register
// with its owner's hub. The hub only reads tokens and updates LastUsed;
// issuance and revocation happen out-of-band.
type Token struct {
	ID          string
	SecretHash  string
	OwnerUserID string
	Name        string
	CreatedAt   time.Time
	LastUsed    *time.Time
	RevokedAt   *time.Time
}

// ParsedToken is the three structural parts of a wire-format token.
type ParsedToken struct {
	Scheme string
	ID     string
	Secret string
}

// ParseToken splits "<scheme>_<id>_<secret>" into its structural parts.
// The id and secret themselves never contain underscores, so a simple
// 3-way split on "_" is exact.
func ParseToken(raw string) (ParsedToken, error) {
	parts := strings.SplitN(raw, "_", 3)
	if len(parts) != 3 {
		return ParsedToken{}, ErrMalformedToken
	}
	if parts[0] != TokenScheme || parts[1] == "" || len(parts[2]) < 32 {
		return ParsedToken{}, ErrMalformedToken
	}
	return ParsedToken{Scheme: parts[0], ID: parts[1], Secret: parts[2]}, nil
}

// HashSecret returns the one-way hash of a token secret.
func HashSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

// VerifySecret performs a constant-time comparison of a candidate secret
// against the stored hash.
func VerifySecret(candidate, hash string) bool {
	candidateHash := HashSecret(candidate)
	return subtle.ConstantTimeCompare([]byte(candidateHash), []byte(hash)) == 1
}

// GenerateToken creates a new token id and raw secret, returning the full
// wire-format string alongside the parts a caller needs to persist.
func GenerateToken() (wire, id, secret, hash string, err error) {
	idBytes := make([]byte, 6)
	if _, err = rand.Read(idBytes); err != nil {
		return "", "", "", "", err
	}
	secretBytes := make([]byte, 24)
	if _, err = rand.Read(secretBytes); err != nil {
		return "", "", "", "", err
	}
	id = hex.EncodeToString(idBytes)
	secret = hex.EncodeToString(secretBytes)
	hash = HashSecret(secret)
	wire = TokenScheme + "_" + id + "_" + secret
	return wire, id, secret, hash, nil
}
