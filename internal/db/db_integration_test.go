package db_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/filipexyz/orchestrator/internal/db"
	"github.com/filipexyz/orchestrator/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestVerifyClientToken exercises token lookup and verification against a
// real Postgres instance, the one integration test in this package per
// the teacher's tests/e2e convention of standing up a throwaway container
// rather than mocking the driver.
func TestVerifyClientToken(t *testing.T) {
	if os.Getenv("ORCHESTRATOR_SKIP_CONTAINER_TESTS") != "" {
		t.Skip("container tests disabled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("orchestrator_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	connStr, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	schema, err := os.ReadFile("testdata/schema.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	wire, id, _, hash, err := domain.GenerateToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO tokens (id, secret_hash, owner_user_id, name) VALUES ($1, $2, $3, $4)
	`, id, hash, "user-1", "test token"); err != nil {
		t.Fatalf("insert token: %v", err)
	}

	q := db.New(pool)

	owner, err := q.VerifyClientToken(ctx, wire)
	if err != nil {
		t.Fatalf("VerifyClientToken: %v", err)
	}
	if owner != "user-1" {
		t.Fatalf("owner = %q, want user-1", owner)
	}

	if _, err := pool.Exec(ctx, `UPDATE tokens SET revoked_at = now() WHERE id = $1`, id); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := q.VerifyClientToken(ctx, wire); err != domain.ErrAuthFailure {
		t.Fatalf("revoked token: err = %v, want ErrAuthFailure", err)
	}
}
