package cache_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/industria-elearning/assign-ai/internal/cache"
	"github.com/industria-elearning/assign-ai/internal/models"
	"github.com/industria-elearning/assign-ai/internal/repository"
)

func setupCache(t *testing.T) (*cache.ConfigCache, repository.AssignmentConfigRepository, *miniredis.Miniredis) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AssignmentConfig{}))

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	repo := repository.NewAssignmentConfigRepository(db)
	configCache := cache.NewConfigCache(repo, client, time.Minute, zerolog.New(io.Discard))

	return configCache, repo, server
}

func TestConfigCacheMissingRowYieldsDisabledDefaults(t *testing.T) {
	configCache, _, _ := setupCache(t)

	config, err := configCache.Get(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, uint(7), config.AssignmentID)
	require.False(t, config.EnableAI)
	require.False(t, config.Autograde)
}

func TestConfigCacheServesFromRedisAfterFirstRead(t *testing.T) {
	configCache, repo, server := setupCache(t)
	ctx := context.Background()

	stored := models.AssignmentConfig{AssignmentID: 7, EnableAI: true, UseDelay: true, DelayMinutes: 15}
	require.NoError(t, repo.Upsert(ctx, &stored))

	config, err := configCache.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, config.EnableAI)
	require.Equal(t, 15, config.DelayMinutes)
	require.True(t, server.Exists("assignai:config:7"))

	// A direct repo change is invisible until the TTL or an invalidation.
	stored.EnableAI = false
	require.NoError(t, repo.Upsert(ctx, &stored))

	config, err = configCache.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, config.EnableAI)

	configCache.Invalidate(ctx, 7)
	config, err = configCache.Get(ctx, 7)
	require.NoError(t, err)
	require.False(t, config.EnableAI)
}

func TestConfigCacheExpiresWithTTL(t *testing.T) {
	configCache, repo, server := setupCache(t)
	ctx := context.Background()

	stored := models.AssignmentConfig{AssignmentID: 3, EnableAI: true}
	require.NoError(t, repo.Upsert(ctx, &stored))

	_, err := configCache.Get(ctx, 3)
	require.NoError(t, err)

	stored.EnableAI = false
	require.NoError(t, repo.Upsert(ctx, &stored))

	server.FastForward(2 * time.Minute)

	config, err := configCache.Get(ctx, 3)
	require.NoError(t, err)
	require.False(t, config.EnableAI)
}

func TestConfigCacheWithoutRedisPassesThrough(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AssignmentConfig{}))

	repo := repository.NewAssignmentConfigRepository(db)
	configCache := cache.NewConfigCache(repo, nil, time.Minute, zerolog.New(io.Discard))
	ctx := context.Background()

	stored := models.AssignmentConfig{AssignmentID: 5, EnableAI: true}
	require.NoError(t, repo.Upsert(ctx, &stored))

	config, err := configCache.Get(ctx, 5)
	require.NoError(t, err)
	require.True(t, config.EnableAI)

	// Every read reflects the repository directly.
	stored.EnableAI = false
	require.NoError(t, repo.Upsert(ctx, &stored))

	config, err = configCache.Get(ctx, 5)
	require.NoError(t, err)
	require.False(t, config.EnableAI)
}
