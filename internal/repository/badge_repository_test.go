package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/credpoints-api/internal/models"
	appErrors "github.com/noah-isme/credpoints-api/pkg/errors"
)

func TestBadgeRepositoryWithoutRedis(t *testing.T) {
	repo := NewBadgeRepository(nil)

	require.NoError(t, repo.Apply(context.Background(), []models.BadgeSignal{{UserID: "advisor-1", Counter: models.BadgePending, Delta: 1}}))
	require.NoError(t, repo.Set(context.Background(), models.BadgeCounts{UserID: "advisor-1", Pending: 2}))

	_, err := repo.Get(context.Background(), "advisor-1")
	require.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestBadgeRepositoryKeyAndParse(t *testing.T) {
	repo := NewBadgeRepository(nil)
	require.Equal(t, "badges:staff-1:correction", repo.key("staff-1", models.BadgeCorrection))
	n, ok := parseCounter("3")
	require.True(t, ok)
	require.Equal(t, 3, n)
	for _, bad := range []interface{}{nil, "x", "-1"} {
		_, ok := parseCounter(bad)
		require.False(t, ok, "%v", bad)
	}
}

func TestBadgeCountsRequireBothCounters(t *testing.T) {
	counts, ok := countsFrom("advisor-1", []interface{}{"2", "0"})
	require.True(t, ok)
	require.Equal(t, &models.BadgeCounts{UserID: "advisor-1", Pending: 2, Correction: 0}, counts)

	// a decrement against an evicted key leaves one counter at -1 and the other absent
	_, ok = countsFrom("advisor-1", []interface{}{"-1", nil})
	require.False(t, ok)
	_, ok = countsFrom("advisor-1", []interface{}{"4", nil})
	require.False(t, ok)
}
