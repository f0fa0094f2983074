package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/credpoints-api/internal/models"
)

const activityColumns = `id, user_id, activity_type, description, points, related_request_id, request_revision, created_at`

// ActivityRepository stores the append-only audit trail.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append inserts an activity. Request-linked rows are unique per (request, revision, type);
// a repeated append reports created=false and loads the stored row into activity.
func (r *ActivityRepository) Append(ctx context.Context, activity *models.Activity) (bool, error) {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO activities (id, user_id, activity_type, description, points, related_request_id, request_revision, created_at)
VALUES (:id, :user_id, :activity_type, :description, :points, :related_request_id, :request_revision, :created_at)
ON CONFLICT (related_request_id, request_revision, activity_type) WHERE related_request_id IS NOT NULL DO NOTHING`
	result, err := r.db.NamedExecContext(ctx, query, activity)
	if err != nil {
		return false, fmt.Errorf("append activity: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append activity rows: %w", err)
	}
	if rows > 0 {
		return true, nil
	}
	if activity.RelatedRequestID != nil && activity.RequestRevision != nil {
		query := `SELECT ` + activityColumns + ` FROM activities
WHERE related_request_id = $1 AND request_revision = $2 AND activity_type = $3`
		if err := r.db.GetContext(ctx, activity, query, *activity.RelatedRequestID, *activity.RequestRevision, activity.ActivityType); err != nil {
			return false, fmt.Errorf("load recorded activity: %w", err)
		}
	}
	return false, nil
}

// ListForUser returns a user's most recent activities, newest first.
func (r *ActivityRepository) ListForUser(ctx context.Context, userID string, limit int) ([]models.Activity, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	var activities []models.Activity
	if err := r.db.SelectContext(ctx, &activities, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return activities, nil
}

// ListForRequest returns every activity linked to a request, newest first.
func (r *ActivityRepository) ListForRequest(ctx context.Context, requestID string) ([]models.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE related_request_id = $1 ORDER BY created_at DESC`
	var activities []models.Activity
	if err := r.db.SelectContext(ctx, &activities, query, requestID); err != nil {
		return nil, fmt.Errorf("list request activities: %w", err)
	}
	return activities, nil
}
