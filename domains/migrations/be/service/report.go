package service

import (
	"github.com/google/uuid"

	"github.com/zenGate-Global/palmyra-fleet-migrator/domains/migrations/be/engine"
)

// SchemaErrorKind tags the failure class attached to one schema outcome.
type SchemaErrorKind string

const (
	ErrKindConnection SchemaErrorKind = "connection_unreachable"
	ErrKindApply      SchemaErrorKind = "migration_apply_failed"
	ErrKindTimeout    SchemaErrorKind = "operation_timeout"
	ErrKindCancelled  SchemaErrorKind = "cancelled"
	ErrKindInternal   SchemaErrorKind = "internal"
)

// SchemaError is the error half of a schema outcome.
type SchemaError struct {
	Kind        SchemaErrorKind `json:"kind"`
	MigrationID string          `json:"migrationId,omitempty"`
	Message     string          `json:"message"`
}

// SchemaOutcome is the result of inspecting (and optionally migrating) one
// schema of one tenant. Either the lists are populated, or Error is set; an
// apply failure carries both the ids applied before the failure and the error.
type SchemaOutcome struct {
	Applied    []string     `json:"applied"`
	Pending    []string     `json:"pending"`
	AppliedNow []string     `json:"appliedNow,omitempty"`
	Error      *SchemaError `json:"error,omitempty"`
}

// Failed reports whether the outcome carries an error.
func (o SchemaOutcome) Failed() bool {
	return o.Error != nil
}

// TenantMigrationReport aggregates all schema outcomes for one tenant.
// Constructed fresh per orchestration call, never stored.
type TenantMigrationReport struct {
	TenantID             uuid.UUID                `json:"tenantId"`
	Name                 string                   `json:"name"`
	Code                 string                   `json:"code"`
	Schemas              map[string]SchemaOutcome `json:"schemas"`
	HasPendingMigrations bool                     `json:"hasPendingMigrations"`
	// FatalError is set only when the tenant could not be processed at all
	// (e.g., registry entry without a connection descriptor); Schemas is
	// empty in that case.
	FatalError *string `json:"fatalError,omitempty"`
}

// Failed reports whether the tenant run failed fatally or on any schema.
func (r TenantMigrationReport) Failed() bool {
	if r.FatalError != nil {
		return true
	}
	for _, outcome := range r.Schemas {
		if outcome.Failed() {
			return true
		}
	}
	return false
}

// FleetMigrationSummary is the commutative fold over per-tenant reports.
type FleetMigrationSummary struct {
	TotalTenants                 int                     `json:"totalTenants"`
	SuccessCount                 int                     `json:"successCount"`
	FailureCount                 int                     `json:"failureCount"`
	TenantsWithPendingMigrations int                     `json:"tenantsWithPendingMigrations"`
	Reports                      []TenantMigrationReport `json:"reports"`
}

// SchemaHistory is the applied-migration trail of one schema, or the error
// that prevented reading it.
type SchemaHistory struct {
	Applied []engine.AppliedMigration `json:"applied"`
	Error   *SchemaError              `json:"error,omitempty"`
}

// TenantMigrationHistory is the read-only audit view for one tenant.
type TenantMigrationHistory struct {
	TenantID     uuid.UUID                `json:"tenantId"`
	Code         string                   `json:"code"`
	Schemas      map[string]SchemaHistory `json:"schemas"`
	TotalApplied int                      `json:"totalApplied"`
}

func summarize(reports []TenantMigrationReport) FleetMigrationSummary {
	summary := FleetMigrationSummary{
		TotalTenants: len(reports),
		Reports:      reports,
	}
	for _, report := range reports {
		if report.Failed() {
			summary.FailureCount++
		} else {
			summary.SuccessCount++
		}
		if report.HasPendingMigrations {
			summary.TenantsWithPendingMigrations++
		}
	}
	return summary
}
