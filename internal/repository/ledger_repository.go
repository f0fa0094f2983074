package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/credpoints-api/internal/models"
)

// LedgerRepository owns the CredPoints balance column and the ledger_entries journal.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Apply adds delta to the user's balance and journals it in one transaction.
// The balance update is an in-place increment, so concurrent writers for the same user never lose updates.
// When requestID is set the entry is unique per request: a repeated call returns the existing entry with applied=false.
// sql.ErrNoRows is returned when the user does not exist.
func (r *LedgerRepository) Apply(ctx context.Context, userID string, delta int, requestID *string) (entry *models.LedgerEntry, applied bool, err error) {
	if requestID != nil {
		existing, err := r.FindByRequest(ctx, *requestID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, false, err
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin ledger transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	var balance int
	const updateQuery = `UPDATE users SET credpoints = credpoints + $2, updated_at = $3 WHERE id = $1 RETURNING credpoints`
	if err = tx.QueryRowxContext(ctx, updateQuery, userID, delta, now).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("update balance: %w", err)
	}

	entry = &models.LedgerEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		RequestID: requestID,
		Delta:     delta,
		Balance:   balance,
		CreatedAt: now,
	}
	const insertQuery = `INSERT INTO ledger_entries (id, user_id, request_id, delta, balance, created_at)
VALUES (:id, :user_id, :request_id, :delta, :balance, :created_at)
ON CONFLICT (request_id) WHERE request_id IS NOT NULL DO NOTHING`
	result, err := tx.NamedExecContext(ctx, insertQuery, entry)
	if err != nil {
		return nil, false, fmt.Errorf("insert ledger entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("check ledger entry rows: %w", err)
	}
	if rows == 0 {
		// a concurrent caller journaled this request first; undo our increment
		_ = tx.Rollback()
		existing, findErr := r.FindByRequest(ctx, *requestID)
		if findErr != nil {
			return nil, false, fmt.Errorf("load concurrent ledger entry: %w", findErr)
		}
		return existing, false, nil
	}

	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit ledger entry: %w", err)
	}
	return entry, true, nil
}

// Balance returns the user's current CredPoints; sql.ErrNoRows when the user is unknown.
func (r *LedgerRepository) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	if err := r.db.GetContext(ctx, &balance, `SELECT credpoints FROM users WHERE id = $1`, userID); err != nil {
		return 0, err
	}
	return balance, nil
}

// FindByRequest returns the entry journaled for a request.
func (r *LedgerRepository) FindByRequest(ctx context.Context, requestID string) (*models.LedgerEntry, error) {
	const query = `SELECT id, user_id, request_id, delta, balance, created_at FROM ledger_entries WHERE request_id = $1`
	var entry models.LedgerEntry
	if err := r.db.GetContext(ctx, &entry, query, requestID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListForUser returns the most recent journal entries for a user.
func (r *LedgerRepository) ListForUser(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	const query = `SELECT id, user_id, request_id, delta, balance, created_at FROM ledger_entries
WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	var entries []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}
