package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/credpoints-api/internal/dto"
	"github.com/noah-isme/credpoints-api/internal/models"
	appErrors "github.com/noah-isme/credpoints-api/pkg/errors"
)

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string, at time.Time) (int64, error)
	MarkReadByRequest(ctx context.Context, userID, requestID string, at time.Time) (int64, error)
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
}

// NotificationService manages recipient inboxes.
type NotificationService struct {
	repo   notificationStore
	logger *zap.Logger
	now    func() time.Time
}

// NewNotificationService constructs the service.
func NewNotificationService(repo notificationStore, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Create stores an unread notification for its recipient, or returns the one already stored for the same request revision and type
// with created set to false.
func (s *NotificationService) Create(ctx context.Context, n *models.Notification) (*models.Notification, bool, error) {
	if n == nil || strings.TrimSpace(n.UserID) == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "notification recipient is required")
	}
	if strings.TrimSpace(n.Title) == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "notification title is required")
	}
	created, err := s.repo.Create(ctx, n)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}
	if !created {
		s.logger.Debug("notification already recorded", zap.String("user_id", n.UserID), zap.String("type", string(n.Type)))
	}
	return n, created, nil
}

// List returns the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, page, pageSize int) ([]models.Notification, error) {
	page, pageSize = normalizePage(page, pageSize)
	list, err := s.repo.ListForUser(ctx, userID, unreadOnly, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return list, nil
}

// UnreadCount returns the number of unread notifications for the caller.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (*dto.UnreadCount, error) {
	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return &dto.UnreadCount{Unread: count}, nil
}

// MarkRead flags one of the caller's notifications as read. Marking an already read notification is a no-op.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) (*dto.MarkReadResult, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	if n.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "notification belongs to another user")
	}
	updated, err := s.repo.MarkRead(ctx, id, userID, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return &dto.MarkReadResult{Updated: updated}, nil
}

// MarkReadByRequest flags every notification of the caller linked to the request as read.
func (s *NotificationService) MarkReadByRequest(ctx context.Context, userID, requestID string) (*dto.MarkReadResult, error) {
	updated, err := s.repo.MarkReadByRequest(ctx, userID, requestID, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark request notifications read")
	}
	return &dto.MarkReadResult{Updated: updated}, nil
}

// MarkAllRead clears the caller's unread inbox.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (*dto.MarkReadResult, error) {
	updated, err := s.repo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return &dto.MarkReadResult{Updated: updated}, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
