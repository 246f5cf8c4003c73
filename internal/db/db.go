// Package db is the hub's read-mostly gateway to the relational store:
// tokens and sessions. The hub never owns this data — it is written by
// the out-of-scope HTTP front and CRUD surface — but it reads tokens by
// id prefix and writes last_used, and reads sessions by cookie value.
package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries wraps a pgxpool.Pool with the hub's narrow set of hand-written
// queries. There is no code generation step: the query surface is small
// enough that generated code would add a build step for no benefit.
type Queries struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

const queryTimeout = 5 * time.Second

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}
