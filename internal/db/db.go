package db

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema holds the bootstrap DDL plus the seeded menu. Statements are
// idempotent, so applying on every startup is safe.
//
//go:embed schema.sql
var Schema string

// Apply runs the bootstrap schema against the pool.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
