package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRow is the subset of the sessions table the hub reads.
type SessionRow struct {
	CookieValue string
	UserID      string
	ExpiresAt   time.Time
}

// GetSessionByCookie looks up a browser session by its cookie value.
func (q *Queries) GetSessionByCookie(ctx context.Context, cookieValue string) (SessionRow, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var row SessionRow
	err := q.pool.QueryRow(ctx, `
		SELECT cookie_value, user_id, expires_at
		FROM sessions
		WHERE cookie_value = $1
	`, cookieValue).Scan(&row.CookieValue, &row.UserID, &row.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SessionRow{}, ErrSessionNotFound
	}
	if err != nil {
		return SessionRow{}, err
	}
	return row, nil
}
