package resource_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-dev/chronicle/internal/domain/resource"
	"github.com/chronicle-dev/chronicle/internal/repository/mocks"
)

func TestListForTenant(t *testing.T) {
	repo := &mocks.ResourceRepository{}
	repo.On("ListByTenant", mock.Anything, "tenant1").
		Return([]resource.Resource{
			{ID: "res1", TenantID: "tenant1", Name: "api"},
			{ID: "res2", TenantID: "tenant1", Name: "web"},
		}, nil)

	svc := resource.NewService(repo, nil)
	got, err := svc.ListForTenant(context.Background(), "tenant1")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "res1", got[0].ID)
}

func TestListForTenant_MissingTenant(t *testing.T) {
	repo := &mocks.ResourceRepository{}

	svc := resource.NewService(repo, nil)
	_, err := svc.ListForTenant(context.Background(), "")

	require.ErrorIs(t, err, resource.ErrUnauthorized)
	repo.AssertNotCalled(t, "ListByTenant", mock.Anything, mock.Anything)
}
