package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/credpoints-api/internal/dto"
	"github.com/noah-isme/credpoints-api/internal/models"
	appErrors "github.com/noah-isme/credpoints-api/pkg/errors"
)

func newStatementFixture(t *testing.T) (*ExportService, *memLedgerRepo) {
	t.Helper()
	ledger := newMemLedgerRepo("S1")
	_, _, err := ledger.Apply(context.Background(), "S1", 25, nil)
	require.NoError(t, err)

	activities := &memActivityRepo{}
	for _, a := range []models.Activity{
		{UserID: "S1", ActivityType: models.ActivityCredit, Points: 25, Description: "Credited 25 points for: Science fair"},
		{UserID: "S1", ActivityType: models.ActivityRequestRejected, Description: "Request rejected: Hall duty"},
		{UserID: "S2", ActivityType: models.ActivityCredit, Points: 9, Description: "Not mine"},
	} {
		activity := a
		_, err := activities.Append(context.Background(), &activity)
		require.NoError(t, err)
	}

	svc := NewExportService(NewActivityService(activities, nil), NewLedgerService(ledger, nil), zap.NewNop(), nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC) }
	return svc, ledger
}

func TestExportServiceActivityStatementCSV(t *testing.T) {
	svc, _ := newStatementFixture(t)

	file, err := svc.ActivityStatement(context.Background(), "S1", dto.ExportFormatCSV)
	require.NoError(t, err)

	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "credpoints_S1_20240601_083000.csv", file.Filename)
	body := string(file.Body)
	assert.Contains(t, body, "Date,Type,Description,Points")
	assert.Contains(t, body, "+25")
	assert.Contains(t, body, "request rejected")
	assert.Contains(t, body, "Current balance: 25 points")
	assert.NotContains(t, body, "Not mine")
}

func TestExportServiceActivityStatementPDF(t *testing.T) {
	svc, _ := newStatementFixture(t)

	file, err := svc.ActivityStatement(context.Background(), "S1", "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Body, []byte("%PDF")))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc, _ := newStatementFixture(t)

	_, err := svc.ActivityStatement(context.Background(), "S1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
}

func TestExportServiceUnknownUser(t *testing.T) {
	svc, _ := newStatementFixture(t)

	_, err := svc.ActivityStatement(context.Background(), "ghost", dto.ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(err))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "na", sanitizeFilename(""))
	assert.Equal(t, "a-b_c", sanitizeFilename("a/b c"))
}
