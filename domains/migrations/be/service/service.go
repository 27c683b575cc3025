package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	entitlements "github.com/zenGate-Global/palmyra-fleet-migrator/domains/entitlements/be/service"
	"github.com/zenGate-Global/palmyra-fleet-migrator/domains/migrations/be/engine"
	registry "github.com/zenGate-Global/palmyra-fleet-migrator/domains/registry/be/service"
)

const (
	defaultWorkers   = 4
	defaultOpTimeout = 30 * time.Second
)

// Config tunes the fleet orchestrator.
type Config struct {
	// Workers caps concurrent per-tenant coordinator runs.
	Workers int
	// OpTimeout bounds each schema-context operation (open+inspect or
	// open+apply). A timeout is a schema-level failure, not a fleet abort.
	OpTimeout time.Duration
	// Modules restricts the module schemas considered; defaults to every
	// module the catalog declares.
	Modules []string
}

// Service is the fleet orchestrator: it fans the per-tenant coordinator out
// over the active tenant set with bounded concurrency and folds the isolated
// results into a summary.
type Service struct {
	registry     *registry.Service
	entitlements entitlements.Resolver
	factory      engine.Factory
	modules      []string
	workers      int
	opTimeout    time.Duration
	locks        *tenantLocks
	logger       *zap.Logger
}

// New constructs the orchestrator.
func New(reg *registry.Service, resolver entitlements.Resolver, factory engine.Factory, catalog *engine.Catalog, cfg Config, logger *zap.Logger) *Service {
	if reg == nil {
		panic("registry service is required")
	}
	if resolver == nil {
		panic("entitlement resolver is required")
	}
	if factory == nil {
		panic("schema context factory is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	modules := cfg.Modules
	if modules == nil && catalog != nil {
		modules = catalog.Modules()
	}

	return &Service{
		registry:     reg,
		entitlements: resolver,
		factory:      factory,
		modules:      modules,
		workers:      workers,
		opTimeout:    opTimeout,
		locks:        newTenantLocks(),
		logger:       logger,
	}
}

// InspectAll reports migration state across the active fleet without applying
// anything.
func (s *Service) InspectAll(ctx context.Context) (FleetMigrationSummary, error) {
	return s.fleet(ctx, modeInspect)
}

// ApplyAll applies pending migrations across the active fleet. Tenant
// failures are data in the summary, never an error return; only a registry
// enumeration failure is fatal.
func (s *Service) ApplyAll(ctx context.Context) (FleetMigrationSummary, error) {
	return s.fleet(ctx, modeApply)
}

func (s *Service) fleet(ctx context.Context, m mode) (FleetMigrationSummary, error) {
	tenants, err := s.registry.ListActive(ctx)
	if err != nil {
		return FleetMigrationSummary{}, err
	}

	s.logger.Info("starting fleet migration run",
		zap.Int("tenants", len(tenants)),
		zap.Bool("apply", m == modeApply),
		zap.Int("workers", s.workers),
	)

	// Reports keep registry enumeration order regardless of which worker
	// finishes first.
	reports := make([]TenantMigrationReport, len(tenants))

	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for i, tenant := range tenants {
		g.Go(func() error {
			reports[i] = s.runTenant(ctx, tenant, m)
			return nil
		})
	}
	// Workers never return errors; tenant failures live inside the reports.
	_ = g.Wait()

	summary := summarize(reports)
	s.logger.Info("fleet migration run finished",
		zap.Int("success", summary.SuccessCount),
		zap.Int("failed", summary.FailureCount),
		zap.Int("with_pending", summary.TenantsWithPendingMigrations),
	)
	return summary, nil
}

func (s *Service) runTenant(ctx context.Context, tenant registry.Tenant, m mode) TenantMigrationReport {
	if err := ctx.Err(); err != nil {
		msg := "run cancelled before tenant was processed"
		return TenantMigrationReport{
			TenantID:   tenant.ID,
			Name:       tenant.Name,
			Code:       tenant.Code,
			Schemas:    map[string]SchemaOutcome{},
			FatalError: &msg,
		}
	}

	if m == modeApply {
		release := s.locks.acquire(tenant.ID)
		defer release()
	}

	return s.coordinator().run(ctx, tenant, m)
}

// ApplyOne applies pending migrations for a single tenant, active or not.
// Unknown ids return registry.ErrNotFound.
func (s *Service) ApplyOne(ctx context.Context, tenantID uuid.UUID) (TenantMigrationReport, error) {
	tenant, err := s.registry.Get(ctx, tenantID)
	if err != nil {
		return TenantMigrationReport{}, err
	}

	release := s.locks.acquire(tenant.ID)
	defer release()

	return s.coordinator().run(ctx, tenant, modeApply), nil
}

// History returns the applied-migration audit trail for one tenant, per
// schema. Schema read failures are reported in place, like inspection.
func (s *Service) History(ctx context.Context, tenantID uuid.UUID) (TenantMigrationHistory, error) {
	tenant, err := s.registry.Get(ctx, tenantID)
	if err != nil {
		return TenantMigrationHistory{}, err
	}

	history := TenantMigrationHistory{
		TenantID: tenant.ID,
		Code:     tenant.Code,
		Schemas:  make(map[string]SchemaHistory),
	}

	if !tenant.HasConnection() {
		return TenantMigrationHistory{}, engine.ErrConnectionUnreachable
	}

	schemas := []string{engine.CoreSchema}
	for _, module := range s.modules {
		if s.entitlements.HasModuleAccess(ctx, tenant.ID, module) {
			schemas = append(schemas, module)
		}
	}

	for _, schema := range schemas {
		applied, err := s.schemaHistory(ctx, tenant, schema)
		if err != nil {
			history.Schemas[schema] = SchemaHistory{Error: schemaErrorFor(err)}
			continue
		}
		history.Schemas[schema] = SchemaHistory{Applied: applied}
		history.TotalApplied += len(applied)
	}

	return history, nil
}

func (s *Service) schemaHistory(ctx context.Context, tenant registry.Tenant, schema string) ([]engine.AppliedMigration, error) {
	opCtx := ctx
	if s.opTimeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
	}

	sc, err := s.factory.Open(opCtx, tenant.DSN, schema)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sc.Close(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("close schema context",
				zap.String("tenant_code", tenant.Code),
				zap.String("schema", schema),
				zap.Error(err),
			)
		}
	}()

	return sc.History(opCtx)
}

func (s *Service) coordinator() *coordinator {
	return &coordinator{
		factory:      s.factory,
		entitlements: s.entitlements,
		modules:      s.modules,
		opTimeout:    s.opTimeout,
		logger:       s.logger,
	}
}
