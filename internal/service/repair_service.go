package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/credpoints-api/internal/dto"
	"github.com/noah-isme/credpoints-api/internal/models"
	appErrors "github.com/noah-isme/credpoints-api/pkg/errors"
	"github.com/noah-isme/credpoints-api/pkg/jobs"
)

// JobTypeRequestRepair identifies per-request repair jobs on the workflow queue.
const JobTypeRequestRepair = "request.repair"

type repairStore interface {
	GetByID(ctx context.Context, id string) (*models.Request, error)
	ListIncomplete(ctx context.Context, cutoff time.Time, limit int) ([]models.Request, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// RepairConfig tunes sweeps.
type RepairConfig struct {
	BatchSize int
	// Grace is the minimum age of a request before a sweep considers it; younger ones may still be mid fan-out.
	Grace time.Duration
}

// RepairService completes follow-up records missing for a request's current status.
type RepairService struct {
	repo    repairStore
	fanout  fanoutRunner
	queue   jobEnqueuer
	metrics *MetricsService
	logger  *zap.Logger
	cfg     RepairConfig
	now     func() time.Time
}

// NewRepairService constructs the service. The queue is attached later with AttachQueue because the queue
// itself dispatches into HandleJob.
func NewRepairService(repo repairStore, fanout fanoutRunner, metrics *MetricsService, cfg RepairConfig, logger *zap.Logger) *RepairService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Grace <= 0 {
		cfg.Grace = time.Minute
	}
	return &RepairService{
		repo:    repo,
		fanout:  fanout,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AttachQueue sets the queue used by ScheduleRepair.
func (s *RepairService) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
}

// ScheduleRepair queues a repair for one request. Requests already queued are rejected with jobs.ErrDuplicate.
func (s *RepairService) ScheduleRepair(requestID string) error {
	if s.queue == nil {
		return errors.New("repair queue not configured")
	}
	return s.queue.Enqueue(jobs.Job{
		ID:      "repair:" + requestID,
		Type:    JobTypeRequestRepair,
		Payload: requestID,
	})
}

// HandleJob is the queue handler for repair jobs.
func (s *RepairService) HandleJob(ctx context.Context, job jobs.Job) error {
	requestID, ok := job.Payload.(string)
	if !ok || requestID == "" {
		s.logger.Error("invalid repair job payload", zap.String("job_id", job.ID))
		return nil
	}
	_, err := s.RepairRequest(ctx, requestID)
	if appErrors.HasCode(err, appErrors.ErrNotFound.Code) {
		return nil
	}
	return err
}

// RepairRequest re-derives the expected plan from the request's current status and runs it.
// Repaired is 1 only when at least one missing record was written.
func (s *RepairService) RepairRequest(ctx context.Context, requestID string) (*dto.RepairReport, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	report := &dto.RepairReport{Scanned: 1}
	written, err := s.repair(ctx, req)
	if err != nil {
		return nil, err
	}
	if written > 0 {
		report.Repaired = 1
	}
	return report, nil
}

// Sweep repairs a batch of requests whose status implies a missing ledger entry, activity or notification.
func (s *RepairService) Sweep(ctx context.Context) (*dto.RepairReport, error) {
	cutoff := s.now().Add(-s.cfg.Grace)
	requests, err := s.repo.ListIncomplete(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list incomplete requests")
	}
	report := &dto.RepairReport{Scanned: len(requests)}
	for i := range requests {
		written, err := s.repair(ctx, &requests[i])
		if err != nil {
			report.Failed = append(report.Failed, requests[i].ID)
			continue
		}
		if written > 0 {
			report.Repaired++
		}
	}
	if report.Scanned > 0 {
		s.logger.Info("repair sweep finished",
			zap.Int("scanned", report.Scanned),
			zap.Int("repaired", report.Repaired),
			zap.Int("failed", len(report.Failed)),
		)
	}
	return report, nil
}

// RunScheduledSweep adapts Sweep to the cron scheduler.
func (s *RepairService) RunScheduledSweep(ctx context.Context) error {
	report, err := s.Sweep(ctx)
	if err != nil {
		return err
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("repair sweep: %d of %d requests still incomplete", len(report.Failed), report.Scanned)
	}
	return nil
}

// repair runs the plan for req and returns how many steps wrote a missing record.
func (s *RepairService) repair(ctx context.Context, req *models.Request) (int, error) {
	written, err := s.fanout.Run(ctx, req)
	for _, step := range written {
		s.metrics.RecordRepairStep(step)
	}
	if err != nil {
		return len(written), appErrors.Wrap(err, appErrors.ErrDependencyFailure.Code, appErrors.ErrDependencyFailure.Status, "repair incomplete")
	}
	return len(written), nil
}
