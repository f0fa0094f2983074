package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/credpoints-api/internal/models"
	appErrors "github.com/noah-isme/credpoints-api/pkg/errors"
)

type ledgerStore interface {
	Apply(ctx context.Context, userID string, delta int, requestID *string) (*models.LedgerEntry, bool, error)
	Balance(ctx context.Context, userID string) (int, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error)
}

// LedgerService applies point movements to user balances.
type LedgerService struct {
	repo   ledgerStore
	logger *zap.Logger
}

// NewLedgerService constructs the service.
func NewLedgerService(repo ledgerStore, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{repo: repo, logger: logger}
}

// Credit adds amount to the user's balance and returns the new balance.
func (s *LedgerService) Credit(ctx context.Context, userID string, amount int) (int, error) {
	if amount < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "credit amount must not be negative")
	}
	entry, _, err := s.post(ctx, userID, amount, nil)
	if err != nil {
		return 0, err
	}
	return entry.Balance, nil
}

// Debit subtracts amount from the user's balance and returns the new balance.
func (s *LedgerService) Debit(ctx context.Context, userID string, amount int) (int, error) {
	if amount < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "debit amount must not be negative")
	}
	entry, _, err := s.post(ctx, userID, -amount, nil)
	if err != nil {
		return 0, err
	}
	return entry.Balance, nil
}

// PostForRequest applies the signed delta owed for a request and reports whether a new entry was written.
// Repeated calls for the same request return the original entry without touching the balance again.
func (s *LedgerService) PostForRequest(ctx context.Context, userID string, delta int, requestID string) (*models.LedgerEntry, bool, error) {
	return s.post(ctx, userID, delta, &requestID)
}

// GetBalance returns the user's current balance.
func (s *LedgerService) GetBalance(ctx context.Context, userID string) (*models.Balance, error) {
	points, err := s.repo.Balance(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load balance")
	}
	return &models.Balance{UserID: userID, Points: points}, nil
}

// History lists the most recent ledger entries of a user.
func (s *LedgerService) History(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	entries, err := s.repo.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger history")
	}
	return entries, nil
}

func (s *LedgerService) post(ctx context.Context, userID string, delta int, requestID *string) (*models.LedgerEntry, bool, error) {
	entry, applied, err := s.repo.Apply(ctx, userID, delta, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update balance")
	}
	if !applied {
		s.logger.Debug("ledger entry already recorded", zap.String("user_id", userID), zap.Stringp("request_id", requestID))
	}
	return entry, applied, nil
}
