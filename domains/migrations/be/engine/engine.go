package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrConnectionUnreachable wraps failures to reach a tenant's database. It is
// isolated to that tenant's report by the coordinator, never fatal for a
// fleet run.
var ErrConnectionUnreachable = errors.New("tenant database unreachable")

// ApplyError reports the first migration that failed during an apply run.
// Migrations applied earlier in the same run stay applied.
type ApplyError struct {
	MigrationID string
	Err         error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply migration %s: %v", e.MigrationID, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// State is one (tenant, schema) pair's migration position, recomputed on
// every inspection from the schema's own history table. Both lists follow
// declared order.
type State struct {
	Applied []string
	Pending []string
}

// AppliedMigration is one history row.
type AppliedMigration struct {
	ID        string    `json:"id"`
	AppliedAt time.Time `json:"appliedAt"`
}

// SchemaContext is a single-use handle bound to exactly one tenant database
// and one schema namespace. Contexts are never cached or shared across
// tenants; the owner must Close on every exit path.
type SchemaContext interface {
	// State returns the applied and pending migration ids. Pure read.
	State(ctx context.Context) (State, error)
	// History returns the applied migrations with timestamps. Pure read.
	History(ctx context.Context) ([]AppliedMigration, error)
	// Apply runs all pending migrations in declared order, each in its own
	// transaction, and returns the ids applied by this call. A failure
	// returns the ids applied so far together with an *ApplyError.
	Apply(ctx context.Context) ([]string, error)
	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// Factory opens schema contexts from an opaque connection descriptor.
type Factory interface {
	Open(ctx context.Context, dsn, schema string) (SchemaContext, error)
}
