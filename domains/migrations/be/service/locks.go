package service

import (
	"sync"

	"github.com/google/uuid"
)

// tenantLocks serializes apply runs per tenant within this process. The
// engine additionally holds a Postgres advisory lock in the tenant's own
// database, which covers competing processes.
type tenantLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newTenantLocks() *tenantLocks {
	return &tenantLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// acquire blocks until the tenant's lock is held and returns the release func.
func (l *tenantLocks) acquire(id uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
