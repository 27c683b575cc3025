package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	entitlementsrepo "github.com/zenGate-Global/palmyra-fleet-migrator/domains/entitlements/be/repo"
	"github.com/zenGate-Global/palmyra-fleet-migrator/domains/registry/be/service"
	"github.com/zenGate-Global/palmyra-fleet-migrator/platform/go/persistence"
)

const testAdminSchema = "admin"

func TestPostgresRepositoryIntegration(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping control-plane integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("controlplane"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: connString})
	require.NoError(t, err)
	t.Cleanup(func() {
		persistence.ClosePool(pool)
	})

	require.NoError(t, persistence.BootstrapAdminSchema(ctx, pool, testAdminSchema))
	// Bootstrap is idempotent.
	require.NoError(t, persistence.BootstrapAdminSchema(ctx, pool, testAdminSchema))

	active := service.Tenant{ID: uuid.New(), Name: "Acme", Code: "acme", DSN: "postgres://acme", Active: true}
	second := service.Tenant{ID: uuid.New(), Name: "Bravo", Code: "bravo", DSN: "postgres://bravo", Active: true}
	suspended := service.Tenant{ID: uuid.New(), Name: "Zulu", Code: "zulu", DSN: "postgres://zulu", Active: false}

	for _, tenant := range []service.Tenant{second, active, suspended} {
		_, err := pool.Exec(ctx,
			`INSERT INTO admin.tenants (tenant_id, name, code, database_url, is_active) VALUES ($1, $2, $3, $4, $5)`,
			tenant.ID, tenant.Name, tenant.Code, tenant.DSN, tenant.Active,
		)
		require.NoError(t, err)
	}

	repo := NewPostgresRepository(pool, testAdminSchema)

	tenants, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, tenants, 2)
	require.Equal(t, "acme", tenants[0].Code)
	require.Equal(t, "bravo", tenants[1].Code)

	got, err := repo.Get(ctx, suspended.ID)
	require.NoError(t, err)
	require.False(t, got.Active)

	_, err = repo.Get(ctx, uuid.New())
	require.ErrorIs(t, err, service.ErrNotFound)

	// Entitlements live in the same bootstrapped schema.
	_, err = pool.Exec(ctx,
		`INSERT INTO admin.module_entitlements (tenant_id, module_code) VALUES ($1, $2)`,
		active.ID, "crm",
	)
	require.NoError(t, err)

	entitlements := entitlementsrepo.NewPostgresRepository(pool, testAdminSchema)

	enabled, err := entitlements.HasModuleAccess(ctx, active.ID, "crm")
	require.NoError(t, err)
	require.True(t, enabled)

	enabled, err = entitlements.HasModuleAccess(ctx, second.ID, "crm")
	require.NoError(t, err)
	require.False(t, enabled)
}
