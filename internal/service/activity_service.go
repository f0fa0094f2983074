package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/credpoints-api/internal/models"
	appErrors "github.com/noah-isme/credpoints-api/pkg/errors"
)

type activityStore interface {
	Append(ctx context.Context, activity *models.Activity) (bool, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]models.Activity, error)
	ListForRequest(ctx context.Context, requestID string) ([]models.Activity, error)
}

// ActivityService maintains the audit trail.
type ActivityService struct {
	repo   activityStore
	logger *zap.Logger
}

// NewActivityService constructs the service.
func NewActivityService(repo activityStore, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, logger: logger}
}

// Append records an activity. When one already exists for the same request revision and type, the stored record is returned
// and created is false.
func (s *ActivityService) Append(ctx context.Context, activity *models.Activity) (*models.Activity, bool, error) {
	if activity == nil || strings.TrimSpace(activity.UserID) == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "activity user is required")
	}
	switch activity.ActivityType {
	case models.ActivityCredit, models.ActivityDebit, models.ActivityRequestRejected, models.ActivityRequestCorrection:
	default:
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "unknown activity type")
	}
	if activity.Points < 0 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "activity points must not be negative")
	}
	if strings.TrimSpace(activity.Description) == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "activity description is required")
	}
	created, err := s.repo.Append(ctx, activity)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append activity")
	}
	if !created {
		s.logger.Debug("activity already recorded", zap.String("user_id", activity.UserID), zap.String("type", string(activity.ActivityType)))
	}
	return activity, created, nil
}

// ListForUser returns a user's activities, newest first.
func (s *ActivityService) ListForUser(ctx context.Context, userID string, limit int) ([]models.Activity, error) {
	list, err := s.repo.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activities")
	}
	return list, nil
}

// ListForRequest returns every activity recorded for a request, newest first.
func (s *ActivityService) ListForRequest(ctx context.Context, requestID string) ([]models.Activity, error) {
	list, err := s.repo.ListForRequest(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list request activities")
	}
	return list, nil
}
