package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Errors returned by the registry service.
var (
	// ErrNotFound indicates the requested tenant id is unknown to the registry.
	ErrNotFound = errors.New("tenant not found")
	// ErrRegistryUnavailable indicates the control-plane store could not be
	// reached; fleet-wide operations cannot proceed without an enumeration.
	ErrRegistryUnavailable = errors.New("tenant registry unavailable")
)

// Tenant is a registry entry for one customer database. The registry is
// owned by the provisioning system; this service only reads it.
type Tenant struct {
	ID     uuid.UUID
	Name   string
	Code   string
	DSN    string // connection descriptor for the tenant's dedicated database
	Active bool
}

// Repository abstracts the control-plane tenants table.
type Repository interface {
	// ListActive returns active tenants ordered by code.
	ListActive(ctx context.Context) ([]Tenant, error)
	// Get returns a tenant by id regardless of active flag.
	Get(ctx context.Context, id uuid.UUID) (Tenant, error)
}

// Service provides read-only access to the tenant registry.
type Service struct {
	repo Repository
}

// New constructs a Service with required dependencies.
func New(repo Repository) *Service {
	if repo == nil {
		panic("registry repo is required")
	}
	return &Service{repo: repo}
}

// ListActive enumerates the fleet. Inactive tenants never appear here.
func (s *Service) ListActive(ctx context.Context) ([]Tenant, error) {
	tenants, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

// Get returns one tenant by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Tenant, error) {
	return s.repo.Get(ctx, id)
}

// HasConnection reports whether the registry entry carries a usable
// connection descriptor. An entry without one can only produce a fatal
// tenant report.
func (t Tenant) HasConnection() bool {
	return strings.TrimSpace(t.DSN) != ""
}
