package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zenGate-Global/palmyra-fleet-migrator/domains/registry/be/service"
)

// PostgresRepository reads the control-plane tenants table.
type PostgresRepository struct {
	pool        *pgxpool.Pool
	adminSchema string
}

// NewPostgresRepository constructs the repository; assumes bootstrap already
// created the tenants table in the admin schema.
func NewPostgresRepository(pool *pgxpool.Pool, adminSchema string) *PostgresRepository {
	if pool == nil {
		panic("registry repo requires pool")
	}
	if adminSchema == "" {
		panic("registry repo requires admin schema")
	}
	return &PostgresRepository{pool: pool, adminSchema: adminSchema}
}

func (r *PostgresRepository) ListActive(ctx context.Context) ([]service.Tenant, error) {
	query := fmt.Sprintf(`SELECT tenant_id, name, code, database_url, is_active
        FROM %s
        WHERE is_active = TRUE
        ORDER BY code`, r.tenantsTable())

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", service.ErrRegistryUnavailable, err)
	}
	defer rows.Close()

	var tenants []service.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", service.ErrRegistryUnavailable, err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", service.ErrRegistryUnavailable, err)
	}

	return tenants, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (service.Tenant, error) {
	query := fmt.Sprintf(`SELECT tenant_id, name, code, database_url, is_active
        FROM %s
        WHERE tenant_id = $1`, r.tenantsTable())

	t, err := scanTenant(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return service.Tenant{}, service.ErrNotFound
		}
		return service.Tenant{}, fmt.Errorf("%w: %w", service.ErrRegistryUnavailable, err)
	}
	return t, nil
}

func (r *PostgresRepository) tenantsTable() string {
	return pgx.Identifier{r.adminSchema, "tenants"}.Sanitize()
}

func scanTenant(row pgx.Row) (service.Tenant, error) {
	var t service.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Code, &t.DSN, &t.Active); err != nil {
		return service.Tenant{}, err
	}
	return t, nil
}

// Ensure interface compliance.
var _ service.Repository = (*PostgresRepository)(nil)
