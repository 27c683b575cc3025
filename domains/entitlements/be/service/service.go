package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Repository abstracts the control-plane module_entitlements table.
type Repository interface {
	HasModuleAccess(ctx context.Context, tenantID uuid.UUID, moduleCode string) (bool, error)
}

// Resolver answers per-tenant module entitlement questions.
type Resolver interface {
	HasModuleAccess(ctx context.Context, tenantID uuid.UUID, moduleCode string) bool
}

// Service wraps a Repository with the degrade-gracefully policy: when the
// entitlement store is unreachable the module is treated as not entitled, so
// the optional schema is skipped rather than guessed at. The failure is
// logged but never propagated into the tenant report.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// New constructs a Service with required dependencies.
func New(repo Repository, logger *zap.Logger) *Service {
	if repo == nil {
		panic("entitlements repo is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Service{repo: repo, logger: logger}
}

// HasModuleAccess reports whether the tenant has the module enabled.
// Errors degrade to "no access".
func (s *Service) HasModuleAccess(ctx context.Context, tenantID uuid.UUID, moduleCode string) bool {
	enabled, err := s.repo.HasModuleAccess(ctx, tenantID, moduleCode)
	if err != nil {
		s.logger.Warn("entitlement check failed, skipping module",
			zap.String("tenant_id", tenantID.String()),
			zap.String("module_code", moduleCode),
			zap.Error(err),
		)
		return false
	}
	return enabled
}

// Ensure interface compliance.
var _ Resolver = (*Service)(nil)
