package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/credpoints-api/internal/models"
)

const notificationColumns = `id, user_id, type, title, message, read, related_request_id, request_revision,
       COALESCE(request_data, '{}'::jsonb) AS request_data, created_at, read_at`

// NotificationRepository persists recipient inboxes.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts an unread notification. Request-linked rows are unique per (request, revision, type);
// a duplicate reports created=false and loads the stored row into n.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) (bool, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	var payload interface{}
	if len(n.RequestData) > 0 {
		// jsonb expects text; []byte would be sent as bytea
		payload = string(n.RequestData)
	}
	const query = `INSERT INTO notifications (id, user_id, type, title, message, read, related_request_id, request_revision, request_data, created_at)
VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7, $8, $9)
ON CONFLICT (related_request_id, request_revision, type) WHERE related_request_id IS NOT NULL DO NOTHING`
	result, err := r.db.ExecContext(ctx, query,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.RelatedRequestID, n.RequestRevision, payload, n.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("create notification: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create notification rows: %w", err)
	}
	if rows > 0 {
		n.Read = false
		return true, nil
	}
	if n.RelatedRequestID != nil && n.RequestRevision != nil {
		query := `SELECT ` + notificationColumns + ` FROM notifications
WHERE related_request_id = $1 AND request_revision = $2 AND type = $3`
		if err := r.db.GetContext(ctx, n, query, *n.RelatedRequestID, *n.RequestRevision, n.Type); err != nil {
			return false, fmt.Errorf("load recorded notification: %w", err)
		}
	}
	return false, nil
}

// GetByID fetches a single notification.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	var n models.Notification
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListForUser returns a recipient's notifications, newest first.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	var list []models.Notification
	if err := r.db.SelectContext(ctx, &list, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}

// UnreadCount returns the number of unread notifications for a recipient.
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE`, userID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flags one notification of the recipient as read. Already-read rows are left untouched.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string, at time.Time) (int64, error) {
	const query = `UPDATE notifications SET read = TRUE, read_at = $3 WHERE id = $1 AND user_id = $2 AND read = FALSE`
	return r.exec(ctx, "mark notification read", query, id, userID, at)
}

// MarkReadByRequest flags every unread notification of the recipient linked to the request.
func (r *NotificationRepository) MarkReadByRequest(ctx context.Context, userID, requestID string, at time.Time) (int64, error) {
	const query = `UPDATE notifications SET read = TRUE, read_at = $3 WHERE user_id = $1 AND related_request_id = $2 AND read = FALSE`
	return r.exec(ctx, "mark request notifications read", query, userID, requestID, at)
}

// MarkAllRead flags the recipient's whole inbox as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	const query = `UPDATE notifications SET read = TRUE, read_at = $2 WHERE user_id = $1 AND read = FALSE`
	return r.exec(ctx, "mark all notifications read", query, userID, at)
}

func (r *NotificationRepository) exec(ctx context.Context, op, query string, args ...interface{}) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s rows: %w", op, err)
	}
	return rows, nil
}
