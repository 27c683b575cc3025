package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// PostgresFactory opens one dedicated connection per (tenant, schema) call.
// No pooling across tenants: a context must never observe another tenant's
// migration history, and fan-out must not mix up connection strings.
type PostgresFactory struct {
	catalog *Catalog
	logger  *zap.Logger
}

// NewPostgresFactory constructs a factory bound to the declared catalog.
func NewPostgresFactory(catalog *Catalog, logger *zap.Logger) *PostgresFactory {
	if catalog == nil {
		panic("postgres factory requires catalog")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &PostgresFactory{catalog: catalog, logger: logger}
}

func (f *PostgresFactory) Open(ctx context.Context, dsn, schema string) (SchemaContext, error) {
	if !f.catalog.HasSchema(schema) {
		return nil, fmt.Errorf("schema %q is not declared in the migration catalog", schema)
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionUnreachable, err)
	}

	return &schemaContext{
		conn:     conn,
		schema:   schema,
		declared: f.catalog.Declared(schema),
		logger:   f.logger.With(zap.String("schema", schema)),
	}, nil
}

type schemaContext struct {
	conn     *pgx.Conn
	schema   string
	declared []Migration
	logger   *zap.Logger
}

func (c *schemaContext) historyTable() string {
	return pgx.Identifier{c.schema, "schema_migrations"}.Sanitize()
}

func (c *schemaContext) State(ctx context.Context) (State, error) {
	applied, err := c.appliedSet(ctx)
	if err != nil {
		return State{}, err
	}

	state := State{Applied: []string{}, Pending: []string{}}
	for _, m := range c.declared {
		if applied[m.ID] {
			state.Applied = append(state.Applied, m.ID)
		} else {
			state.Pending = append(state.Pending, m.ID)
		}
	}
	return state, nil
}

func (c *schemaContext) History(ctx context.Context) ([]AppliedMigration, error) {
	query := "SELECT migration_id, applied_at FROM " + c.historyTable() + " ORDER BY applied_at, migration_id"
	rows, err := c.conn.Query(ctx, query)
	if err != nil {
		if isMissingHistory(err) {
			return []AppliedMigration{}, nil
		}
		return nil, fmt.Errorf("read migration history: %w", err)
	}
	defer rows.Close()

	history := []AppliedMigration{}
	for rows.Next() {
		var m AppliedMigration
		if err := rows.Scan(&m.ID, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan migration history: %w", err)
		}
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read migration history: %w", err)
	}
	return history, nil
}

func (c *schemaContext) Apply(ctx context.Context) ([]string, error) {
	appliedNow := []string{}

	state, err := c.State(ctx)
	if err != nil {
		return appliedNow, err
	}
	if len(state.Pending) == 0 {
		return appliedNow, nil
	}

	// Serialize concurrent apply runs against the same schema across
	// processes; the migration-history table alone is not race-free under
	// concurrent writers.
	key := advisoryLockKey(c.schema)
	if _, err := c.conn.Exec(ctx, "SELECT pg_advisory_lock($1)", key); err != nil {
		return appliedNow, fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		if _, err := c.conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", key); err != nil {
			c.logger.Warn("release migration lock", zap.Error(err))
		}
	}()

	if err := c.ensureHistoryTable(ctx); err != nil {
		return appliedNow, err
	}

	// Re-read under the lock: a concurrent run may have applied some of the
	// pending set while we waited.
	state, err = c.State(ctx)
	if err != nil {
		return appliedNow, err
	}

	pending := make(map[string]bool, len(state.Pending))
	for _, id := range state.Pending {
		pending[id] = true
	}

	for _, m := range c.declared {
		if !pending[m.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return appliedNow, err
		}
		if err := c.applyOne(ctx, m); err != nil {
			return appliedNow, &ApplyError{MigrationID: m.ID, Err: err}
		}
		appliedNow = append(appliedNow, m.ID)
		c.logger.Info("migration applied", zap.String("migration_id", m.ID))
	}

	return appliedNow, nil
}

// applyOne runs one migration and its history insert in a single transaction;
// that transaction is the unit of atomicity.
func (c *schemaContext) applyOne(ctx context.Context, m Migration) error {
	tx, err := c.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, true)`, c.schema); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return err
	}

	insert := "INSERT INTO " + c.historyTable() + " (migration_id) VALUES ($1)"
	if _, err := tx.Exec(ctx, insert, m.ID); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit(ctx)
}

func (c *schemaContext) ensureHistoryTable(ctx context.Context) error {
	createSchema := "CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{c.schema}.Sanitize()
	if _, err := c.conn.Exec(ctx, createSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	createTable := "CREATE TABLE IF NOT EXISTS " + c.historyTable() + ` (
        migration_id TEXT PRIMARY KEY,
        applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`
	if _, err := c.conn.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("create migration history table: %w", err)
	}
	return nil
}

func (c *schemaContext) appliedSet(ctx context.Context) (map[string]bool, error) {
	rows, err := c.conn.Query(ctx, "SELECT migration_id FROM "+c.historyTable())
	if err != nil {
		// A never-migrated schema has no history table yet: everything pending.
		if isMissingHistory(err) {
			return map[string]bool{}, nil
		}
		return nil, fmt.Errorf("read migration history: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan migration history: %w", err)
		}
		applied[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read migration history: %w", err)
	}
	return applied, nil
}

func (c *schemaContext) Close(ctx context.Context) error {
	return c.conn.Close(context.WithoutCancel(ctx))
}

func isMissingHistory(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// undefined_table or invalid_schema_name
	return pgErr.Code == "42P01" || pgErr.Code == "3F000"
}

func advisoryLockKey(schema string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("palmyra-fleet-migrator:" + schema))
	return int64(h.Sum64())
}

// Ensure interface compliance.
var _ Factory = (*PostgresFactory)(nil)
