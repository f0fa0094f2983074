package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/credpoints-api/internal/dto"
	"github.com/noah-isme/credpoints-api/internal/models"
	appErrors "github.com/noah-isme/credpoints-api/pkg/errors"
)

type requestQueryStore interface {
	List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error)
	Count(ctx context.Context, filter models.RequestFilter) (int, error)
	Stats(ctx context.Context, filter models.RequestFilter) (*models.RequestStats, error)
}

// QueryService is the read side over requests.
type QueryService struct {
	repo     requestQueryStore
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewQueryService constructs the service. cache may be nil.
func NewQueryService(repo requestQueryStore, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{repo: repo, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// ListForStaff returns the staff member's requests, newest first.
func (s *QueryService) ListForStaff(ctx context.Context, staffID string, page, pageSize int) ([]models.Request, *models.Pagination, error) {
	return s.list(ctx, models.RequestFilter{StaffID: staffID}, page, pageSize)
}

// ListPendingForAdvisor returns the requests awaiting the advisor's review.
func (s *QueryService) ListPendingForAdvisor(ctx context.Context, advisorID string, page, pageSize int) ([]models.Request, *models.Pagination, error) {
	return s.list(ctx, models.RequestFilter{AdvisorID: advisorID, Status: []models.RequestStatus{models.RequestStatusPending}}, page, pageSize)
}

// ListAllForAdvisor returns every request routed to the advisor.
func (s *QueryService) ListAllForAdvisor(ctx context.Context, advisorID string, page, pageSize int) ([]models.Request, *models.Pagination, error) {
	return s.list(ctx, models.RequestFilter{AdvisorID: advisorID}, page, pageSize)
}

// Filter applies arbitrary criteria, scoped to what the actor may see.
func (s *QueryService) Filter(ctx context.Context, actor models.Actor, query dto.RequestQuery) ([]models.Request, *models.Pagination, error) {
	filter, err := buildFilter(query)
	if err != nil {
		return nil, nil, err
	}
	switch actor.Role {
	case models.RoleStaff:
		filter.StaffID = actor.ID
	case models.RoleAdvisor:
		filter.AdvisorID = actor.ID
	case models.RoleAdmin:
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot list requests")
	}
	return s.list(ctx, filter, query.Page, query.PageSize)
}

// StatsForStaff aggregates per-status counts and point totals. Results are cached per staff and window.
func (s *QueryService) StatsForStaff(ctx context.Context, query dto.StatsQuery) (*models.RequestStats, error) {
	if strings.TrimSpace(query.StaffID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "staff_id is required")
	}
	if err := checkDateRange(query.DateFrom, query.DateTo); err != nil {
		return nil, err
	}

	return Remember(ctx, s.cache, statsCacheKey(query), s.cacheTTL, func(ctx context.Context) (*models.RequestStats, error) {
		stats, err := s.repo.Stats(ctx, models.RequestFilter{StaffID: query.StaffID, DateFrom: query.DateFrom, DateTo: query.DateTo})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute request stats")
		}
		return stats, nil
	})
}

// CountPendingForAdvisor counts requests awaiting the advisor.
func (s *QueryService) CountPendingForAdvisor(ctx context.Context, advisorID string) (int, error) {
	return s.count(ctx, models.RequestFilter{AdvisorID: advisorID, Status: []models.RequestStatus{models.RequestStatusPending}})
}

// CountCorrectionForStaff counts the staff member's requests waiting for revision.
func (s *QueryService) CountCorrectionForStaff(ctx context.Context, staffID string) (int, error) {
	return s.count(ctx, models.RequestFilter{StaffID: staffID, Status: []models.RequestStatus{models.RequestStatusCorrection}})
}

// OnTransition drops cached stats of the staff member whose request changed.
func (s *QueryService) OnTransition(ctx context.Context, event models.TransitionEvent) error {
	return s.cache.InvalidatePrefix(ctx, fmt.Sprintf("requests:stats:%s:", event.Request.StaffID))
}

func (s *QueryService) list(ctx context.Context, filter models.RequestFilter, page, pageSize int) ([]models.Request, *models.Pagination, error) {
	page, pageSize = normalizePage(page, pageSize)
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

func (s *QueryService) count(ctx context.Context, filter models.RequestFilter) (int, error) {
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count requests")
	}
	return total, nil
}

func buildFilter(query dto.RequestQuery) (models.RequestFilter, error) {
	if err := checkDateRange(query.DateFrom, query.DateTo); err != nil {
		return models.RequestFilter{}, err
	}
	filter := models.RequestFilter{
		StaffID:   strings.TrimSpace(query.StaffID),
		AdvisorID: strings.TrimSpace(query.AdvisorID),
		ClassID:   strings.TrimSpace(query.ClassID),
		DateFrom:  query.DateFrom,
		DateTo:    query.DateTo,
	}
	for _, raw := range query.Status {
		status := models.RequestStatus(strings.ToLower(strings.TrimSpace(raw)))
		if status == "" {
			continue
		}
		if !status.Valid() {
			return models.RequestFilter{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", raw))
		}
		filter.Status = append(filter.Status, status)
	}
	return filter, nil
}

func checkDateRange(from, to *time.Time) error {
	if from != nil && to != nil && from.After(*to) {
		return appErrors.Clone(appErrors.ErrValidation, "date_from must not be after date_to")
	}
	return nil
}

func statsCacheKey(query dto.StatsQuery) string {
	return fmt.Sprintf("requests:stats:%s:%s:%s", query.StaffID, formatBound(query.DateFrom), formatBound(query.DateTo))
}

func formatBound(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
