package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zenGate-Global/palmyra-fleet-migrator/domains/entitlements/be/service"
)

// PostgresRepository reads the control-plane module_entitlements table.
type PostgresRepository struct {
	pool        *pgxpool.Pool
	adminSchema string
}

// NewPostgresRepository constructs the repository; assumes bootstrap already
// created the module_entitlements table in the admin schema.
func NewPostgresRepository(pool *pgxpool.Pool, adminSchema string) *PostgresRepository {
	if pool == nil {
		panic("entitlements repo requires pool")
	}
	if adminSchema == "" {
		panic("entitlements repo requires admin schema")
	}
	return &PostgresRepository{pool: pool, adminSchema: adminSchema}
}

func (r *PostgresRepository) HasModuleAccess(ctx context.Context, tenantID uuid.UUID, moduleCode string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (
        SELECT 1 FROM %s WHERE tenant_id = $1 AND module_code = $2
    )`, pgx.Identifier{r.adminSchema, "module_entitlements"}.Sanitize())

	var enabled bool
	if err := r.pool.QueryRow(ctx, query, tenantID, moduleCode).Scan(&enabled); err != nil {
		return false, fmt.Errorf("check module entitlement: %w", err)
	}
	return enabled, nil
}

// Ensure interface compliance.
var _ service.Repository = (*PostgresRepository)(nil)
