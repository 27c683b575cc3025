package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	entitlements "github.com/zenGate-Global/palmyra-fleet-migrator/domains/entitlements/be/service"
	"github.com/zenGate-Global/palmyra-fleet-migrator/domains/migrations/be/engine"
	registry "github.com/zenGate-Global/palmyra-fleet-migrator/domains/registry/be/service"
	"github.com/zenGate-Global/palmyra-fleet-migrator/platform/go/logging"
)

// mode selects inspect-only or inspect-and-apply per schema.
type mode int

const (
	modeInspect mode = iota
	modeApply
)

// coordinator runs the migration pipeline for a single tenant: resolve the
// schema set (core + entitled modules), then open/inspect/apply/close each
// schema independently. A schema failure is recorded in that schema's outcome
// and never aborts sibling schemas.
type coordinator struct {
	factory      engine.Factory
	entitlements entitlements.Resolver
	modules      []string
	opTimeout    time.Duration
	logger       *zap.Logger
}

func (c *coordinator) run(ctx context.Context, tenant registry.Tenant, m mode) TenantMigrationReport {
	report := TenantMigrationReport{
		TenantID: tenant.ID,
		Name:     tenant.Name,
		Code:     tenant.Code,
		Schemas:  make(map[string]SchemaOutcome),
	}

	if !tenant.HasConnection() {
		msg := "registry entry has no connection descriptor"
		report.FatalError = &msg
		return report
	}

	logger := logging.ForTenant(c.logger, tenant.ID, tenant.Code)

	schemas := []string{engine.CoreSchema}
	for _, module := range c.modules {
		if c.entitlements.HasModuleAccess(ctx, tenant.ID, module) {
			schemas = append(schemas, module)
		}
	}

	for _, schema := range schemas {
		// Cancellation stops the run between schemas; an in-flight schema
		// operation is bounded by its own timeout.
		if err := ctx.Err(); err != nil {
			report.Schemas[schema] = SchemaOutcome{Error: &SchemaError{
				Kind:    ErrKindCancelled,
				Message: "run cancelled before schema was processed",
			}}
			continue
		}

		outcome := c.processSchema(ctx, tenant, schema, m)
		report.Schemas[schema] = outcome
		if len(outcome.Pending) > 0 {
			report.HasPendingMigrations = true
		}
		if outcome.Failed() {
			logger.Warn("schema migration step failed",
				zap.String("schema", schema),
				zap.String("kind", string(outcome.Error.Kind)),
				zap.String("detail", outcome.Error.Message),
			)
		}
	}

	return report
}

// processSchema owns exactly one schema context: opened here, released here,
// on every exit path.
func (c *coordinator) processSchema(ctx context.Context, tenant registry.Tenant, schema string, m mode) SchemaOutcome {
	opCtx := ctx
	if c.opTimeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, c.opTimeout)
		defer cancel()
	}

	sc, err := c.factory.Open(opCtx, tenant.DSN, schema)
	if err != nil {
		return SchemaOutcome{Error: schemaErrorFor(err)}
	}
	defer func() {
		if err := sc.Close(context.WithoutCancel(ctx)); err != nil {
			c.logger.Warn("close schema context",
				zap.String("tenant_code", tenant.Code),
				zap.String("schema", schema),
				zap.Error(err),
			)
		}
	}()

	var appliedNow []string
	if m == modeApply {
		appliedNow, err = sc.Apply(opCtx)
		if err != nil {
			outcome := SchemaOutcome{AppliedNow: appliedNow, Error: schemaErrorFor(err)}
			return outcome
		}
	}

	state, err := sc.State(opCtx)
	if err != nil {
		return SchemaOutcome{AppliedNow: appliedNow, Error: schemaErrorFor(err)}
	}

	return SchemaOutcome{
		Applied:    state.Applied,
		Pending:    state.Pending,
		AppliedNow: appliedNow,
	}
}

func schemaErrorFor(err error) *SchemaError {
	var applyErr *engine.ApplyError
	switch {
	case errors.As(err, &applyErr):
		return &SchemaError{
			Kind:        ErrKindApply,
			MigrationID: applyErr.MigrationID,
			Message:     applyErr.Error(),
		}
	case errors.Is(err, engine.ErrConnectionUnreachable):
		return &SchemaError{Kind: ErrKindConnection, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return &SchemaError{Kind: ErrKindTimeout, Message: err.Error()}
	case errors.Is(err, context.Canceled):
		return &SchemaError{Kind: ErrKindCancelled, Message: err.Error()}
	default:
		return &SchemaError{Kind: ErrKindInternal, Message: err.Error()}
	}
}
