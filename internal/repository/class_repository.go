package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/credpoints-api/internal/models"
)

// ClassRepository reads class and membership data used to route requests to advisors.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// ResolveAdvisor finds the advisor of the staff member's active class membership.
// When classID is set only that class is considered. sql.ErrNoRows means no active membership.
func (r *ClassRepository) ResolveAdvisor(ctx context.Context, staffID string, classID *string) (*models.AdvisorAssignment, error) {
	query := `SELECT c.id AS class_id, c.advisor_id
FROM class_members m
JOIN classes c ON c.id = m.class_id
WHERE m.staff_id = $1 AND m.active = TRUE AND c.active = TRUE`
	args := []interface{}{staffID}
	if classID != nil {
		query += ` AND c.id = $2`
		args = append(args, *classID)
	}
	query += ` ORDER BY m.joined_at DESC LIMIT 1`

	var assignment models.AdvisorAssignment
	if err := r.db.GetContext(ctx, &assignment, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("resolve advisor: %w", err)
	}
	return &assignment, nil
}
