package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/credpoints-api/internal/models"
	appErrors "github.com/noah-isme/credpoints-api/pkg/errors"
)

// BadgeRepository keeps the per-user badge counters in Redis.
type BadgeRepository struct {
	client *redis.Client
	prefix string
}

// NewBadgeRepository constructs the repository. A nil client turns every call into a no-op or cache miss.
func NewBadgeRepository(client *redis.Client) *BadgeRepository {
	return &BadgeRepository{client: client, prefix: "badges"}
}

func (r *BadgeRepository) key(userID string, counter models.BadgeCounter) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, userID, counter)
}

// Apply increments or decrements counters in a single pipeline.
func (r *BadgeRepository) Apply(ctx context.Context, signals []models.BadgeSignal) error {
	if r.client == nil || len(signals) == 0 {
		return nil
	}
	pipe := r.client.TxPipeline()
	for _, signal := range signals {
		pipe.IncrBy(ctx, r.key(signal.UserID, signal.Counter), int64(signal.Delta))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis badge incr: %w", err)
	}
	return nil
}

// Get reads both counters of a user. A missing, unreadable or negative counter means the
// projection drifted (INCRBY on an evicted key starts at zero), so the pair is reported as ErrCacheMiss.
func (r *BadgeRepository) Get(ctx context.Context, userID string) (*models.BadgeCounts, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}
	values, err := r.client.MGet(ctx, r.key(userID, models.BadgePending), r.key(userID, models.BadgeCorrection)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis badge get: %w", err)
	}
	counts, ok := countsFrom(userID, values)
	if !ok {
		return nil, appErrors.ErrCacheMiss
	}
	return counts, nil
}

// Set overwrites both counters of a user.
func (r *BadgeRepository) Set(ctx context.Context, counts models.BadgeCounts) error {
	if r.client == nil {
		return nil
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(counts.UserID, models.BadgePending), counts.Pending, 0)
	pipe.Set(ctx, r.key(counts.UserID, models.BadgeCorrection), counts.Correction, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis badge set: %w", err)
	}
	return nil
}

func countsFrom(userID string, values []interface{}) (*models.BadgeCounts, bool) {
	if len(values) != 2 {
		return nil, false
	}
	pending, ok := parseCounter(values[0])
	if !ok {
		return nil, false
	}
	correction, ok := parseCounter(values[1])
	if !ok {
		return nil, false
	}
	return &models.BadgeCounts{UserID: userID, Pending: pending, Correction: correction}, true
}

func parseCounter(value interface{}) (int, bool) {
	raw, ok := value.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
