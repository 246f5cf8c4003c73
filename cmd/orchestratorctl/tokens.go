package main

import (
	"context"
	"fmt"
	"time"

	"github.com/filipexyz/orchestrator/internal/config"
	"github.com/filipexyz/orchestrator/internal/db"
	"github.com/filipexyz/orchestrator/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func newTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Manage client connection tokens",
	}
	cmd.AddCommand(newTokensCreateCmd())
	return cmd
}

func newTokensCreateCmd() *cobra.Command {
	var ownerUserID, name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Seed a new client token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ownerUserID == "" {
				return fmt.Errorf("--user is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			wire, id, _, hash, err := domain.GenerateToken()
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}

			queries := db.New(pool)
			if err := queries.InsertToken(ctx, id, hash, ownerUserID, name); err != nil {
				return fmt.Errorf("insert token: %w", err)
			}

			if jsonOut {
				fmt.Printf(`{"id":%q,"token":%q,"owner_user_id":%q}`+"\n", id, wire, ownerUserID)
				return nil
			}
			fmt.Println("Token created. This is the only time the secret is shown:")
			fmt.Println(wire)
			return nil
		},
	}

	cmd.Flags().StringVar(&ownerUserID, "user", "", "owning user id")
	cmd.Flags().StringVar(&name, "name", "", "human-readable token label")
	return cmd
}
