package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockRepository struct {
	hasFn func(ctx context.Context, tenantID uuid.UUID, moduleCode string) (bool, error)
}

func (m *mockRepository) HasModuleAccess(ctx context.Context, tenantID uuid.UUID, moduleCode string) (bool, error) {
	if m.hasFn == nil {
		panic("hasFn not configured")
	}
	return m.hasFn(ctx, tenantID, moduleCode)
}

func TestHasModuleAccessPassthrough(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	repo := &mockRepository{
		hasFn: func(ctx context.Context, id uuid.UUID, moduleCode string) (bool, error) {
			require.Equal(t, tenantID, id)
			return moduleCode == "crm", nil
		},
	}

	svc := New(repo, zaptest.NewLogger(t))

	require.True(t, svc.HasModuleAccess(context.Background(), tenantID, "crm"))
	require.False(t, svc.HasModuleAccess(context.Background(), tenantID, "billing"))
}

func TestHasModuleAccessDegradesOnError(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{
		hasFn: func(ctx context.Context, id uuid.UUID, moduleCode string) (bool, error) {
			return true, errors.New("entitlement store unreachable")
		},
	}

	svc := New(repo, zaptest.NewLogger(t))

	// A failed check must never grant access.
	require.False(t, svc.HasModuleAccess(context.Background(), uuid.New(), "crm"))
}
