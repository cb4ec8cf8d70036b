package multitenancy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTenant_GetTenantID_RoundTrips(t *testing.T) {
	ctx := WithTenant(context.Background(), "tenant-a")
	id, err := GetTenantID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", id)
}

func TestGetTenantID_MissingContextErrors(t *testing.T) {
	_, err := GetTenantID(context.Background())
	assert.Error(t, err)
}

func TestGetTenantID_EmptyTenantIDErrors(t *testing.T) {
	ctx := WithTenant(context.Background(), "")
	_, err := GetTenantID(ctx)
	assert.Error(t, err)
}
