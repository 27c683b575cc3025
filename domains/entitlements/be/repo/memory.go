package repo

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/zenGate-Global/palmyra-fleet-migrator/domains/entitlements/be/service"
)

// MemoryRepository is an in-memory entitlement store for tests and early development.
type MemoryRepository struct {
	mu      sync.RWMutex
	granted map[uuid.UUID]map[string]bool
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{granted: make(map[uuid.UUID]map[string]bool)}
}

// Grant enables a module for a tenant.
func (r *MemoryRepository) Grant(tenantID uuid.UUID, moduleCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.granted[tenantID] == nil {
		r.granted[tenantID] = make(map[string]bool)
	}
	r.granted[tenantID][moduleCode] = true
}

func (r *MemoryRepository) HasModuleAccess(ctx context.Context, tenantID uuid.UUID, moduleCode string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.granted[tenantID][moduleCode], nil
}

// Ensure interface compliance.
var _ service.Repository = (*MemoryRepository)(nil)
