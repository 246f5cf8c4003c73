package db

import (
	"context"
	"errors"
	"time"

	"github.com/filipexyz/orchestrator/internal/domain"
	"github.com/jackc/pgx/v5"
)

var ErrTokenNotFound = errors.New("token not found")

// TokenRow is the subset of the tokens table the hub reads.
type TokenRow struct {
	ID          string
	SecretHash  string
	OwnerUserID string
	Name        string
	CreatedAt   time.Time
	LastUsed    *time.Time
	RevokedAt   *time.Time
}

// GetTokenByID looks up a token by its public id prefix.
func (q *Queries) GetTokenByID(ctx context.Context, id string) (TokenRow, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var row TokenRow
	err := q.pool.QueryRow(ctx, `
		SELECT id, secret_hash, owner_user_id, name, created_at, last_used, revoked_at
		FROM tokens
		WHERE id = $1
	`, id).Scan(&row.ID, &row.SecretHash, &row.OwnerUserID, &row.Name, &row.CreatedAt, &row.LastUsed, &row.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return TokenRow{}, ErrTokenNotFound
	}
	if err != nil {
		return TokenRow{}, err
	}
	return row, nil
}

// InsertToken persists a newly generated token row, for the operator CLI's
// token-seeding command. Issuance is otherwise out of the hub's scope, but
// the hub package owns the tokens table schema, so it owns the one write
// path into it too.
func (q *Queries) InsertToken(ctx context.Context, id, secretHash, ownerUserID, name string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := q.pool.Exec(ctx, `
		INSERT INTO tokens (id, secret_hash, owner_user_id, name, created_at)
		VALUES ($1, $2, $3, $4, now())
	`, id, secretHash, ownerUserID, name)
	return err
}

// TouchLastUsed records that a token was just used to authenticate a
// connection.
func (q *Queries) TouchLastUsed(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := q.pool.Exec(ctx, `UPDATE tokens SET last_used = now() WHERE id = $1`, id)
	return err
}

// VerifyClientToken resolves a wire-format token to its owning user,
// applying the Acceptor's classification rule 1: lookup by id, reject
// revoked, constant-time secret compare, touch last_used on success.
func (q *Queries) VerifyClientToken(ctx context.Context, wire string) (ownerUserID string, err error) {
	parsed, err := domain.ParseToken(wire)
	if err != nil {
		return "", domain.ErrAuthFailure
	}

	row, err := q.GetTokenByID(ctx, parsed.ID)
	if errors.Is(err, ErrTokenNotFound) {
		return "", domain.ErrAuthFailure
	}
	if err != nil {
		return "", err
	}

	if row.RevokedAt != nil {
		return "", domain.ErrAuthFailure
	}
	if !domain.VerifySecret(parsed.Secret, row.SecretHash) {
		return "", domain.ErrAuthFailure
	}

	if err := q.TouchLastUsed(ctx, row.ID); err != nil {
		// last_used is an audit trail, not an authorization input — a
		// write failure here must not turn a valid token into a rejection.
		return row.OwnerUserID, nil
	}
	return row.OwnerUserID, nil
}
