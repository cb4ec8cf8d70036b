package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/paygate/internal/core"
	"github.com/ocx/paygate/internal/mapping"
)

func TestResolver_Resolve_PrefersHigherPrecedenceLevel(t *testing.T) {
	store := NewInMemoryStore()
	store.PutAuthRecord(AuthRecord{
		Name:     "clearing-default",
		Level:    LevelClearingSystem,
		Active:   true,
		Priority: 1,
		Config:   AuthConfig{Method: AuthAPIKey, APIKey: &APIKeyConfig{Key: "clearing-key"}},
	})
	store.PutAuthRecord(AuthRecord{
		Name:       "tenant-a-override",
		Level:      LevelTenant,
		Active:     true,
		Priority:   1,
		Coordinate: core.PolicyCoordinate{TenantID: "tenant-a"},
		Config:     AuthConfig{Method: AuthAPIKey, APIKey: &APIKeyConfig{Key: "tenant-key"}},
	})

	r := NewResolver(store)
	cfg, level, err := r.Resolve(context.Background(), core.PolicyCoordinate{TenantID: "tenant-a"})
	require.NoError(t, err)
	assert.Equal(t, LevelTenant, level)
	assert.Equal(t, "tenant-key", cfg.APIKey.Key)

	cfg, level, err = r.Resolve(context.Background(), core.PolicyCoordinate{TenantID: "tenant-b"})
	require.NoError(t, err)
	assert.Equal(t, LevelClearingSystem, level)
	assert.Equal(t, "clearing-key", cfg.APIKey.Key)
}

func TestResolver_Resolve_NotFoundWhenNoRecordMatches(t *testing.T) {
	store := NewInMemoryStore()
	r := NewResolver(store)
	_, _, err := r.Resolve(context.Background(), core.PolicyCoordinate{TenantID: "tenant-a"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolver_Resolve_IgnoresInactiveRecords(t *testing.T) {
	store := NewInMemoryStore()
	store.PutAuthRecord(AuthRecord{
		Name:     "disabled",
		Level:    LevelTenant,
		Active:   false,
		Priority: 100,
		Config:   AuthConfig{Method: AuthAPIKey, APIKey: &APIKeyConfig{Key: "should-not-win"}},
	})
	store.PutAuthRecord(AuthRecord{
		Name:     "fallback",
		Level:    LevelClearingSystem,
		Active:   true,
		Priority: 1,
		Config:   AuthConfig{Method: AuthAPIKey, APIKey: &APIKeyConfig{Key: "fallback-key"}},
	})

	r := NewResolver(store)
	cfg, level, err := r.Resolve(context.Background(), core.PolicyCoordinate{TenantID: "tenant-a"})
	require.NoError(t, err)
	assert.Equal(t, LevelClearingSystem, level)
	assert.Equal(t, "fallback-key", cfg.APIKey.Key)
}

func TestResolver_Resolve_CacheInvalidatedOnMutation(t *testing.T) {
	store := NewInMemoryStore()
	store.PutAuthRecord(AuthRecord{
		Name: "v1", Level: LevelClearingSystem, Active: true, Priority: 1,
		Config: AuthConfig{Method: AuthAPIKey, APIKey: &APIKeyConfig{Key: "v1-key"}},
	})

	r := NewResolver(store)
	cfg, _, err := r.Resolve(context.Background(), core.PolicyCoordinate{TenantID: "tenant-a"})
	require.NoError(t, err)
	assert.Equal(t, "v1-key", cfg.APIKey.Key)

	store.PutAuthRecord(AuthRecord{
		Name: "v1", Level: LevelClearingSystem, Active: true, Priority: 1,
		Config: AuthConfig{Method: AuthAPIKey, APIKey: &APIKeyConfig{Key: "v2-key"}},
	})

	cfg, _, err = r.Resolve(context.Background(), core.PolicyCoordinate{TenantID: "tenant-a"})
	require.NoError(t, err)
	assert.Equal(t, "v2-key", cfg.APIKey.Key, "mutation must invalidate the cached resolution")
}

func TestResolver_EffectiveMapping_MatchesDirectionAndCoordinate(t *testing.T) {
	store := NewInMemoryStore()
	doc := &mapping.Document{
		Name:       "pain001-to-pacs008",
		Direction:  core.DirectionRequest,
		Coordinate: core.PolicyCoordinate{ClearingSystemCode: "FEDNOW"},
		Priority:   1,
		Active:     true,
	}
	require.NoError(t, store.PutMappingDocument(doc))

	r := NewResolver(store)
	got, err := r.EffectiveMapping(context.Background(), core.PolicyCoordinate{ClearingSystemCode: "FEDNOW"}, core.DirectionRequest)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "pain001-to-pacs008", got.Name)

	none, err := r.EffectiveMapping(context.Background(), core.PolicyCoordinate{ClearingSystemCode: "FEDNOW"}, core.DirectionResponse)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestResolver_EffectiveMapping_BidirectionalDocumentMatchesBothDirections(t *testing.T) {
	store := NewInMemoryStore()
	doc := &mapping.Document{
		Name:      "generic",
		Direction: core.DirectionBidirectional,
		Active:    true,
		Priority:  1,
	}
	require.NoError(t, store.PutMappingDocument(doc))

	r := NewResolver(store)
	forReq, err := r.EffectiveMapping(context.Background(), core.PolicyCoordinate{}, core.DirectionRequest)
	require.NoError(t, err)
	require.NotNil(t, forReq)

	forResp, err := r.EffectiveMapping(context.Background(), core.PolicyCoordinate{}, core.DirectionResponse)
	require.NoError(t, err)
	require.NotNil(t, forResp)
}
