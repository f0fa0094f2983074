package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/credpoints-api/internal/models"
)

const requestColumns = `id, staff_id, advisor_id, class_id, work_description, requested_points, status,
       response_message, approved_points, revision, created_at, updated_at, responded_at`

// RequestRepository persists work requests and guards their status transitions.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new pending request.
func (r *RequestRepository) Create(ctx context.Context, req *models.Request) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}
	if req.Revision == 0 {
		req.Revision = 1
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = req.CreatedAt
	const query = `INSERT INTO work_requests
	(id, staff_id, advisor_id, class_id, work_description, requested_points, status, response_message, approved_points, revision, created_at, updated_at, responded_at)
	VALUES (:id, :staff_id, :advisor_id, :class_id, :work_description, :requested_points, :status, :response_message, :approved_points, :revision, :created_at, :updated_at, :responded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// GetByID fetches a request; sql.ErrNoRows is returned untouched when missing.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM work_requests WHERE id = $1`
	var req models.Request
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests matching the filter (latest first) together with the total match count.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error) {
	where, args := buildRequestWhere(filter)

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM work_requests%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, requestColumns, where, limit, offset)

	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM work_requests`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}
	return requests, total, nil
}

// Count returns the number of requests matching the filter.
func (r *RequestRepository) Count(ctx context.Context, filter models.RequestFilter) (int, error) {
	where, args := buildRequestWhere(filter)
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM work_requests`+where, args...); err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return total, nil
}

// Stats aggregates per-status counts and point totals for a staff member.
func (r *RequestRepository) Stats(ctx context.Context, filter models.RequestFilter) (*models.RequestStats, error) {
	where, args := buildRequestWhere(filter)
	query := `SELECT
	COUNT(*) AS total,
	COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) AS pending,
	COALESCE(SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END), 0) AS approved,
	COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0) AS rejected,
	COALESCE(SUM(CASE WHEN status = 'correction' THEN 1 ELSE 0 END), 0) AS correction,
	COALESCE(SUM(requested_points), 0) AS requested_points,
	COALESCE(SUM(approved_points), 0) AS approved_points
FROM work_requests` + where
	stats := models.RequestStats{StaffID: filter.StaffID}
	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Approved,
		&stats.Rejected,
		&stats.Correction,
		&stats.RequestedPoints,
		&stats.ApprovedPoints,
	); err != nil {
		return nil, fmt.Errorf("request stats: %w", err)
	}
	return &stats, nil
}

// TransitionParams describes a compare-and-transition write out of From.
type TransitionParams struct {
	ID              string
	From            models.RequestStatus
	To              models.RequestStatus
	ResponseMessage *string
	ApprovedPoints  *int
	RespondedAt     time.Time
}

// Transition moves a request from params.From to params.To in a single conditional update.
// sql.ErrNoRows means the request is missing or no longer in params.From.
func (r *RequestRepository) Transition(ctx context.Context, params TransitionParams) (*models.Request, error) {
	query := `UPDATE work_requests
SET status = $3, response_message = $4, approved_points = $5, responded_at = $6, updated_at = $6
WHERE id = $1 AND status = $2
RETURNING ` + requestColumns
	var req models.Request
	if err := r.db.QueryRowxContext(ctx, query,
		params.ID,
		params.From,
		params.To,
		params.ResponseMessage,
		params.ApprovedPoints,
		params.RespondedAt,
	).StructScan(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ResubmitParams replaces the staff supplied fields of a request under correction.
type ResubmitParams struct {
	ID              string
	WorkDescription string
	RequestedPoints int
	UpdatedAt       time.Time
}

// Resubmit returns a correction request to pending, clearing the review fields and bumping the revision.
// sql.ErrNoRows means the request is missing or not under correction.
func (r *RequestRepository) Resubmit(ctx context.Context, params ResubmitParams) (*models.Request, error) {
	query := `UPDATE work_requests
SET status = 'pending', work_description = $2, requested_points = $3, response_message = NULL,
    approved_points = NULL, responded_at = NULL, revision = revision + 1, updated_at = $4
WHERE id = $1 AND status = 'correction'
RETURNING ` + requestColumns
	var req models.Request
	if err := r.db.QueryRowxContext(ctx, query,
		params.ID,
		params.WorkDescription,
		params.RequestedPoints,
		params.UpdatedAt,
	).StructScan(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListIncomplete returns requests, last touched before cutoff, whose status implies a ledger entry,
// activity record or notification that does not exist yet.
func (r *RequestRepository) ListIncomplete(ctx context.Context, cutoff time.Time, limit int) ([]models.Request, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT ` + requestColumns + ` FROM work_requests r
WHERE r.updated_at < $1 AND (
	(r.status = 'approved' AND NOT EXISTS (
		SELECT 1 FROM ledger_entries l WHERE l.request_id = r.id))
	OR (r.status IN ('approved', 'rejected', 'correction') AND NOT EXISTS (
		SELECT 1 FROM activities a
		WHERE a.related_request_id = r.id AND a.request_revision = r.revision
		AND a.activity_type = ANY(CASE r.status
			WHEN 'approved' THEN ARRAY['credit', 'debit']
			WHEN 'rejected' THEN ARRAY['request_rejected']
			ELSE ARRAY['request_correction'] END)))
	OR NOT EXISTS (
		SELECT 1 FROM notifications n
		WHERE n.related_request_id = r.id AND n.request_revision = r.revision
		AND n.type = CASE r.status
			WHEN 'pending' THEN 'request_submitted'
			WHEN 'approved' THEN 'request_approved'
			WHEN 'rejected' THEN 'request_rejected'
			ELSE 'request_correction' END)
)
ORDER BY r.updated_at ASC
LIMIT $2`
	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list incomplete requests: %w", err)
	}
	return requests, nil
}

func buildRequestWhere(filter models.RequestFilter) (string, []interface{}) {
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 6)
	if filter.StaffID != "" {
		args = append(args, filter.StaffID)
		conditions = append(conditions, fmt.Sprintf("staff_id = $%d", len(args)))
	}
	if filter.AdvisorID != "" {
		args = append(args, filter.AdvisorID)
		conditions = append(conditions, fmt.Sprintf("advisor_id = $%d", len(args)))
	}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		values := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			values[i] = string(status)
		}
		args = append(args, pq.Array(values))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, endOfDayExclusive(*filter.DateTo))
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// endOfDayExclusive returns midnight of the day after t, so the whole calendar day of t is covered.
func endOfDayExclusive(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}
