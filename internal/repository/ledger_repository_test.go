package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var ledgerRowColumns = []string{"id", "user_id", "request_id", "delta", "balance", "created_at"}

func TestLedgerRepositoryApplyCredit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	requestID := "req-1"
	mock.ExpectQuery(regexp.QuoteMeta("FROM ledger_entries WHERE request_id = $1")).
		WithArgs(requestID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET credpoints = credpoints + $2")).
		WithArgs("staff-1", 25, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"credpoints"}).AddRow(125))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_entries")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entry, applied, err := repo.Apply(context.Background(), "staff-1", 25, &requestID)
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, 25, entry.Delta)
	require.Equal(t, 125, entry.Balance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryApplyReplayIsNoop(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	requestID := "req-1"
	mock.ExpectQuery(regexp.QuoteMeta("FROM ledger_entries WHERE request_id = $1")).
		WithArgs(requestID).
		WillReturnRows(sqlmock.NewRows(ledgerRowColumns).AddRow("led-1", "staff-1", requestID, 25, 125, time.Now()))

	entry, applied, err := repo.Apply(context.Background(), "staff-1", 25, &requestID)
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, "led-1", entry.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryApplyLosesInsertRace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	requestID := "req-1"
	mock.ExpectQuery(regexp.QuoteMeta("FROM ledger_entries WHERE request_id = $1")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET credpoints")).
		WillReturnRows(sqlmock.NewRows([]string{"credpoints"}).AddRow(150))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_entries")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	mock.ExpectQuery(regexp.QuoteMeta("FROM ledger_entries WHERE request_id = $1")).
		WillReturnRows(sqlmock.NewRows(ledgerRowColumns).AddRow("led-other", "staff-1", requestID, 25, 125, time.Now()))

	entry, applied, err := repo.Apply(context.Background(), "staff-1", 25, &requestID)
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, "led-other", entry.ID)
	require.Equal(t, 125, entry.Balance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryApplyUnknownUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET credpoints")).
		WithArgs("ghost", -5, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"credpoints"}))
	mock.ExpectRollback()

	_, _, err := repo.Apply(context.Background(), "ghost", -5, nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryBalance(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT credpoints FROM users WHERE id = $1")).
		WithArgs("staff-1").
		WillReturnRows(sqlmock.NewRows([]string{"credpoints"}).AddRow(75))

	balance, err := repo.Balance(context.Background(), "staff-1")
	require.NoError(t, err)
	require.Equal(t, 75, balance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryListForUserDefaultsLimit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2")).
		WithArgs("staff-1", 50).
		WillReturnRows(sqlmock.NewRows(ledgerRowColumns).
			AddRow("l2", "staff-1", "req-2", 15, 40, now).
			AddRow("l1", "staff-1", "req-1", 25, 25, now.Add(-time.Hour)))

	entries, err := repo.ListForUser(context.Background(), "staff-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "l2", entries[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
