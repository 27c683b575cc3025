package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	entitlementsrepo "github.com/zenGate-Global/palmyra-fleet-migrator/domains/entitlements/be/repo"
	entitlementsservice "github.com/zenGate-Global/palmyra-fleet-migrator/domains/entitlements/be/service"
	"github.com/zenGate-Global/palmyra-fleet-migrator/domains/migrations/be/engine"
	migrationsservice "github.com/zenGate-Global/palmyra-fleet-migrator/domains/migrations/be/service"
	registryrepo "github.com/zenGate-Global/palmyra-fleet-migrator/domains/registry/be/repo"
	registryservice "github.com/zenGate-Global/palmyra-fleet-migrator/domains/registry/be/service"
)

type fakeFactory struct {
	openFn func(ctx context.Context, dsn, schema string) (engine.SchemaContext, error)
}

func (f *fakeFactory) Open(ctx context.Context, dsn, schema string) (engine.SchemaContext, error) {
	if f.openFn == nil {
		panic("openFn not configured")
	}
	return f.openFn(ctx, dsn, schema)
}

type fakeSchemaContext struct {
	state engine.State
}

func (c *fakeSchemaContext) State(ctx context.Context) (engine.State, error) {
	return c.state, nil
}

func (c *fakeSchemaContext) History(ctx context.Context) ([]engine.AppliedMigration, error) {
	return []engine.AppliedMigration{}, nil
}

func (c *fakeSchemaContext) Apply(ctx context.Context) ([]string, error) {
	return c.state.Pending, nil
}

func (c *fakeSchemaContext) Close(ctx context.Context) error { return nil }

type failingRegistryRepository struct{}

func (failingRegistryRepository) ListActive(ctx context.Context) ([]registryservice.Tenant, error) {
	return nil, registryservice.ErrRegistryUnavailable
}

func (failingRegistryRepository) Get(ctx context.Context, id uuid.UUID) (registryservice.Tenant, error) {
	return registryservice.Tenant{}, registryservice.ErrRegistryUnavailable
}

func newTestHandler(t *testing.T, registry registryservice.Repository, factory engine.Factory) *Handler {
	t.Helper()
	logger := zaptest.NewLogger(t)
	resolver := entitlementsservice.New(entitlementsrepo.NewMemoryRepository(), logger)
	svc := migrationsservice.New(registryservice.New(registry), resolver, factory, nil, migrationsservice.Config{}, logger)
	return New(svc, logger)
}

func TestHandlerReportWithPartialFailure(t *testing.T) {
	t.Parallel()

	healthy := registryservice.Tenant{ID: uuid.New(), Name: "Acme", Code: "acme", DSN: "dsn-acme", Active: true}
	unreachable := registryservice.Tenant{ID: uuid.New(), Name: "Bravo", Code: "bravo", DSN: "dsn-bravo", Active: true}
	registry := registryrepo.NewMemoryRepository(healthy, unreachable)

	factory := &fakeFactory{}
	factory.openFn = func(ctx context.Context, dsn, schema string) (engine.SchemaContext, error) {
		if dsn == "dsn-bravo" {
			return nil, engine.ErrConnectionUnreachable
		}
		return &fakeSchemaContext{state: engine.State{
			Applied: []string{"0001_users"},
			Pending: []string{"0002_documents"},
		}}, nil
	}

	h := newTestHandler(t, registry, factory)

	req := httptest.NewRequest(http.MethodGet, "/migrations/report", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	// Per-tenant failures are summary content, not an HTTP error.
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var summary migrationsservice.FleetMigrationSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, 2, summary.TotalTenants)
	require.Equal(t, 1, summary.SuccessCount)
	require.Equal(t, 1, summary.FailureCount)
	require.Equal(t, 1, summary.TenantsWithPendingMigrations)
}

func TestHandlerApplyAll(t *testing.T) {
	t.Parallel()

	tenant := registryservice.Tenant{ID: uuid.New(), Name: "Acme", Code: "acme", DSN: "dsn-acme", Active: true}
	registry := registryrepo.NewMemoryRepository(tenant)

	factory := &fakeFactory{}
	factory.openFn = func(ctx context.Context, dsn, schema string) (engine.SchemaContext, error) {
		return &fakeSchemaContext{state: engine.State{
			Applied: []string{},
			Pending: []string{"0001_users"},
		}}, nil
	}

	h := newTestHandler(t, registry, factory)

	req := httptest.NewRequest(http.MethodPost, "/migrations/apply", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var summary migrationsservice.FleetMigrationSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, 1, summary.SuccessCount)
	require.Equal(t, []string{"0001_users"}, summary.Reports[0].Schemas[engine.CoreSchema].AppliedNow)
}

func TestHandlerApplyOneInvalidUUID(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, registryrepo.NewMemoryRepository(), &fakeFactory{})

	req := httptest.NewRequest(http.MethodPost, "/tenants/not-a-uuid/migrations/apply", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var p problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Equal(t, problemTypeValidation, p.Type)
}

func TestHandlerApplyOneUnknownTenant(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, registryrepo.NewMemoryRepository(), &fakeFactory{})

	req := httptest.NewRequest(http.MethodPost, "/tenants/"+uuid.NewString()+"/migrations/apply", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var p problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Equal(t, problemTypeNotFound, p.Type)
}

func TestHandlerReportRegistryUnavailable(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, failingRegistryRepository{}, &fakeFactory{})

	req := httptest.NewRequest(http.MethodGet, "/migrations/report", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var p problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Equal(t, problemTypeRegistry, p.Type)
}

func TestHandlerHistory(t *testing.T) {
	t.Parallel()

	tenant := registryservice.Tenant{ID: uuid.New(), Name: "Acme", Code: "acme", DSN: "dsn-acme", Active: true}
	registry := registryrepo.NewMemoryRepository(tenant)

	factory := &fakeFactory{}
	factory.openFn = func(ctx context.Context, dsn, schema string) (engine.SchemaContext, error) {
		return &fakeSchemaContext{}, nil
	}

	h := newTestHandler(t, registry, factory)

	req := httptest.NewRequest(http.MethodGet, "/tenants/"+tenant.ID.String()+"/migrations/history", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var history migrationsservice.TenantMigrationHistory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Equal(t, tenant.ID, history.TenantID)
	require.Contains(t, history.Schemas, engine.CoreSchema)
}
