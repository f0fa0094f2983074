package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/credpoints-api/internal/models"
)

type brokenCacheRepo struct{ sets int }

func (b *brokenCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("connection refused")
}

func (b *brokenCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b.sets++
	return errors.New("connection refused")
}

func (b *brokenCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	return errors.New("connection refused")
}

func TestRememberNamespacesKeys(t *testing.T) {
	repo := newMemCacheRepo()
	cache := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)
	loads := 0
	load := func(ctx context.Context) (*models.RequestStats, error) {
		loads++
		return &models.RequestStats{StaffID: "S1", Total: 4}, nil
	}

	first, err := Remember(context.Background(), cache, "requests:stats:S1:-:-", 0, load)
	require.NoError(t, err)
	second, err := Remember(context.Background(), cache, "requests:stats:S1:-:-", 0, load)
	require.NoError(t, err)

	assert.Equal(t, 1, loads)
	assert.Equal(t, first.Total, second.Total)
	assert.Contains(t, repo.values, "credpoints:requests:stats:S1:-:-")
}

func TestRememberFallsThroughWhenCacheFails(t *testing.T) {
	repo := &brokenCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, nil, true)

	stats, err := Remember(context.Background(), cache, "k", 0, func(ctx context.Context) (*models.RequestStats, error) {
		return &models.RequestStats{Total: 1}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, repo.sets)

	assert.Error(t, cache.InvalidatePrefix(context.Background(), "requests:stats:S1:"))
}

func TestRememberDisabledAlwaysLoads(t *testing.T) {
	var cache *CacheService
	loads := 0
	for i := 0; i < 2; i++ {
		_, err := Remember(context.Background(), cache, "k", 0, func(ctx context.Context) (*models.RequestStats, error) {
			loads++
			return &models.RequestStats{}, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, loads)
	assert.NoError(t, cache.InvalidatePrefix(context.Background(), "x"))
}
