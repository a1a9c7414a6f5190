package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smartpass-api/internal/models"
	appErrors "github.com/noah-isme/smartpass-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "smartpass", nil)
	ctx := context.Background()

	var dest string
	assert.ErrorIs(t, repo.Get(ctx, "identity:name:S1", &dest), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Set(ctx, "identity:name:S1", "Ana", time.Minute))
	require.NoError(t, repo.Delete(ctx, "identity:name:S1"))
}

func TestCacheRepositoryKeyNamespace(t *testing.T) {
	assert.Equal(t, "smartpass:identity:name:S1", NewCacheRepository(nil, "smartpass:", nil).Key("identity:name:S1"))
	assert.Equal(t, "identity:name:S1", NewCacheRepository(nil, "", nil).Key("identity:name:S1"))
}

func TestAuditStreamRepositoryDisabled(t *testing.T) {
	repo := NewAuditStreamRepository(nil, "smartpass:audit", 100)
	assert.False(t, repo.Enabled())
	require.NoError(t, repo.Publish(context.Background(), models.AuditEntry{ID: "LOG-1"}))
}
