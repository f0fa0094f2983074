package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/credpoints-api/internal/dto"
	"github.com/noah-isme/credpoints-api/internal/models"
	appErrors "github.com/noah-isme/credpoints-api/pkg/errors"
	"github.com/noah-isme/credpoints-api/pkg/export"
)

const statementActivityLimit = 500

type statementActivitySource interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]models.Activity, error)
}

type statementBalanceSource interface {
	GetBalance(ctx context.Context, userID string) (*models.Balance, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService renders a user's activity statement for download.
type ExportService struct {
	activities statementActivitySource
	balances   statementBalanceSource
	csv        csvRenderer
	pdf        pdfRenderer
	logger     *zap.Logger
	now        func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults of pkg/export.
func NewExportService(activities statementActivitySource, balances statementBalanceSource, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = &export.PDFExporter{Widths: map[string]float64{"Date": 40, "Type": 40, "Points": 25}}
	}
	return &ExportService{
		activities: activities,
		balances:   balances,
		csv:        csv,
		pdf:        pdf,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ActivityStatement renders the user's recent activities and current balance as CSV or PDF.
func (s *ExportService) ActivityStatement(ctx context.Context, userID string, format dto.ExportFormat) (*dto.ExportedFile, error) {
	format = dto.ExportFormat(strings.ToLower(string(format)))
	if format == "" {
		format = dto.ExportFormatCSV
	}
	if format != dto.ExportFormatCSV && format != dto.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	activities, err := s.activities.ListForUser(ctx, userID, statementActivityLimit)
	if err != nil {
		return nil, err
	}
	balance, err := s.balances.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	generatedAt := s.now()
	dataset := buildStatementDataset(activities, balance, generatedAt)

	var body []byte
	var contentType string
	switch format {
	case dto.ExportFormatPDF:
		body, err = s.pdf.Render(dataset, "CredPoints activity statement")
		contentType = "application/pdf"
	default:
		body, err = s.csv.Render(dataset)
		contentType = "text/csv"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
	}
	s.logger.Debug("statement rendered", zap.String("user_id", userID), zap.String("format", string(format)), zap.Int("rows", len(activities)))

	return &dto.ExportedFile{
		Filename:    fmt.Sprintf("credpoints_%s_%s.%s", sanitizeFilename(userID), generatedAt.Format("20060102_150405"), format),
		ContentType: contentType,
		Body:        body,
	}, nil
}

func buildStatementDataset(activities []models.Activity, balance *models.Balance, generatedAt time.Time) export.Dataset {
	headers := []string{"Date", "Type", "Description", "Points"}
	rows := make([]map[string]string, 0, len(activities))
	for _, a := range activities {
		points := strconv.Itoa(a.Points)
		switch a.ActivityType {
		case models.ActivityCredit:
			points = "+" + points
		case models.ActivityDebit:
			points = "-" + points
		}
		rows = append(rows, map[string]string{
			"Date":        a.CreatedAt.UTC().Format("2006-01-02 15:04"),
			"Type":        strings.ReplaceAll(string(a.ActivityType), "_", " "),
			"Description": a.Description,
			"Points":      points,
		})
	}
	return export.Dataset{
		Headers: headers,
		Rows:    rows,
		Summary: []string{
			fmt.Sprintf("Current balance: %d points", balance.Points),
			"Generated at: " + generatedAt.Format(time.RFC3339),
		},
	}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
