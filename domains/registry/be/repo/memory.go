package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/zenGate-Global/palmyra-fleet-migrator/domains/registry/be/service"
)

// MemoryRepository is a simple in-memory implementation suitable for tests and early development.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]service.Tenant
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository(tenants ...service.Tenant) *MemoryRepository {
	r := &MemoryRepository{byID: make(map[uuid.UUID]service.Tenant)}
	for _, t := range tenants {
		r.byID[t.ID] = t
	}
	return r
}

// Put inserts or replaces a tenant entry.
func (r *MemoryRepository) Put(t service.Tenant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[t.ID] = t
}

func (r *MemoryRepository) ListActive(ctx context.Context) ([]service.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]service.Tenant, 0, len(r.byID))
	for _, t := range r.byID {
		if !t.Active {
			continue
		}
		items = append(items, t)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Code < items[j].Code })
	return items, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (service.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byID[id]
	if !ok {
		return service.Tenant{}, service.ErrNotFound
	}
	return t, nil
}

// Ensure interface compliance.
var _ service.Repository = (*MemoryRepository)(nil)
