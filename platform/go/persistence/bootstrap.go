package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/zenGate-Global/palmyra-fleet-migrator/database"
)

// BootstrapAdminSchema creates the admin schema (if missing) and applies the
// control-plane DDL in a single transaction. The statements are executed with
// search_path set to the admin schema, in this order:
//  1. platform/tenants.sql
//  2. platform/module_entitlements.sql
//
// SQL is embedded at build time so binaries stay self-contained. The helper is
// idempotent and intended for CLI bootstrap and tests.
func BootstrapAdminSchema(ctx context.Context, pool *pgxpool.Pool, adminSchema string) error {
	if pool == nil {
		return fmt.Errorf("bootstrap admin schema: pool is required")
	}
	if adminSchema == "" {
		return fmt.Errorf("bootstrap admin schema: admin schema is required")
	}

	var statements []string
	statements = append(statements, splitStatements(sqlassets.TenantsSQL)...)
	statements = append(statements, splitStatements(sqlassets.ModuleEntitlementsSQL)...)

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{adminSchema}.Sanitize()); err != nil {
		return fmt.Errorf("create admin schema: %w", err)
	}

	if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, false)`, adminSchema); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// splitStatements breaks an embedded SQL asset into individual statements.
// Assets deliberately avoid multi-statement constructs (functions, DO blocks)
// so a plain semicolon split is sufficient.
func splitStatements(asset string) []string {
	raw := strings.Split(asset, ";")
	statements := make([]string, 0, len(raw))
	for _, candidate := range raw {
		stmt := strings.TrimSpace(candidate)
		if stmt == "" {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}
