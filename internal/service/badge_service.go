package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/credpoints-api/internal/models"
	appErrors "github.com/noah-isme/credpoints-api/pkg/errors"
)

type badgeStore interface {
	Apply(ctx context.Context, signals []models.BadgeSignal) error
	Get(ctx context.Context, userID string) (*models.BadgeCounts, error)
	Set(ctx context.Context, counts models.BadgeCounts) error
}

type badgeCounter interface {
	CountPendingForAdvisor(ctx context.Context, advisorID string) (int, error)
	CountCorrectionForStaff(ctx context.Context, staffID string) (int, error)
}

// BadgeService maintains the derived pending/correction counters shown on app badges.
// The counters are a projection of request state; Rebuild always wins over the cached values.
type BadgeService struct {
	store   badgeStore
	counter badgeCounter
	enabled bool
	logger  *zap.Logger
}

// NewBadgeService constructs the service.
func NewBadgeService(store badgeStore, counter badgeCounter, enabled bool, logger *zap.Logger) *BadgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BadgeService{store: store, counter: counter, enabled: enabled, logger: logger}
}

// SignalsFor maps a transition onto counter adjustments.
func SignalsFor(event models.TransitionEvent) []models.BadgeSignal {
	req := event.Request
	switch {
	case event.From == "" && event.To == models.RequestStatusPending:
		return []models.BadgeSignal{{UserID: req.AdvisorID, Counter: models.BadgePending, Delta: 1}}
	case event.From == models.RequestStatusPending && event.To == models.RequestStatusCorrection:
		return []models.BadgeSignal{
			{UserID: req.AdvisorID, Counter: models.BadgePending, Delta: -1},
			{UserID: req.StaffID, Counter: models.BadgeCorrection, Delta: 1},
		}
	case event.From == models.RequestStatusPending:
		return []models.BadgeSignal{{UserID: req.AdvisorID, Counter: models.BadgePending, Delta: -1}}
	case event.From == models.RequestStatusCorrection && event.To == models.RequestStatusPending:
		return []models.BadgeSignal{
			{UserID: req.StaffID, Counter: models.BadgeCorrection, Delta: -1},
			{UserID: req.AdvisorID, Counter: models.BadgePending, Delta: 1},
		}
	default:
		return nil
	}
}

// OnTransition applies the counter adjustments for a committed transition.
func (s *BadgeService) OnTransition(ctx context.Context, event models.TransitionEvent) error {
	if !s.enabled {
		return nil
	}
	return s.store.Apply(ctx, SignalsFor(event))
}

// Counts returns the cached counters, rebuilding them when nothing usable is cached.
func (s *BadgeService) Counts(ctx context.Context, userID string) (*models.BadgeCounts, error) {
	if s.enabled {
		counts, err := s.store.Get(ctx, userID)
		if err == nil && counts.Pending >= 0 && counts.Correction >= 0 {
			return counts, nil
		}
		if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("badge cache read failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return s.Rebuild(ctx, userID)
}

// Rebuild recomputes both counters from the request store and overwrites the cache.
func (s *BadgeService) Rebuild(ctx context.Context, userID string) (*models.BadgeCounts, error) {
	pending, err := s.counter.CountPendingForAdvisor(ctx, userID)
	if err != nil {
		return nil, err
	}
	correction, err := s.counter.CountCorrectionForStaff(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts := &models.BadgeCounts{UserID: userID, Pending: pending, Correction: correction}
	if s.enabled {
		if err := s.store.Set(ctx, *counts); err != nil {
			s.logger.Warn("badge cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return counts, nil
}
