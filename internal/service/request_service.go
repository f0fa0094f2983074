package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/credpoints-api/internal/dto"
	"github.com/noah-isme/credpoints-api/internal/models"
	"github.com/noah-isme/credpoints-api/internal/repository"
	appErrors "github.com/noah-isme/credpoints-api/pkg/errors"
	"github.com/noah-isme/credpoints-api/pkg/jobs"
)

type requestStore interface {
	Create(ctx context.Context, req *models.Request) error
	GetByID(ctx context.Context, id string) (*models.Request, error)
	Transition(ctx context.Context, params repository.TransitionParams) (*models.Request, error)
	Resubmit(ctx context.Context, params repository.ResubmitParams) (*models.Request, error)
}

type advisorResolver interface {
	ResolveAdvisor(ctx context.Context, staffID string, classID *string) (*models.AdvisorAssignment, error)
}

type fanoutRunner interface {
	Run(ctx context.Context, req *models.Request) ([]FanoutStep, error)
}

type repairScheduler interface {
	ScheduleRepair(requestID string) error
}

// RequestObserver is told about every committed transition. Errors are logged and never affect the caller.
type RequestObserver interface {
	OnTransition(ctx context.Context, event models.TransitionEvent) error
}

// RequestObserverFunc adapts a function to RequestObserver.
type RequestObserverFunc func(ctx context.Context, event models.TransitionEvent) error

// OnTransition implements RequestObserver.
func (f RequestObserverFunc) OnTransition(ctx context.Context, event models.TransitionEvent) error {
	return f(ctx, event)
}

// RequestService is the request lifecycle engine.
type RequestService struct {
	repo      requestStore
	advisors  advisorResolver
	fanout    fanoutRunner
	repairs   repairScheduler
	observers []RequestObserver
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// RequestServiceOption configures the engine.
type RequestServiceOption func(*RequestService)

// WithRequestObservers registers transition observers.
func WithRequestObservers(observers ...RequestObserver) RequestServiceOption {
	return func(s *RequestService) {
		for _, o := range observers {
			if o != nil {
				s.observers = append(s.observers, o)
			}
		}
	}
}

// WithRepairScheduler sets where incomplete fan-outs are handed for retry.
func WithRepairScheduler(scheduler repairScheduler) RequestServiceOption {
	return func(s *RequestService) {
		s.repairs = scheduler
	}
}

// WithRequestClock overrides the time source.
func WithRequestClock(now func() time.Time) RequestServiceOption {
	return func(s *RequestService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRequestService constructs the engine.
func NewRequestService(repo requestStore, advisors advisorResolver, fanout fanoutRunner, logger *zap.Logger, opts ...RequestServiceOption) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RequestService{
		repo:      repo,
		advisors:  advisors,
		fanout:    fanout,
		validator: newWorkflowValidator(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit creates a pending request routed to the advisor of the staff member's active class.
func (s *RequestService) Submit(ctx context.Context, actor models.Actor, req dto.SubmitRequest) (*models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if actor.Role != models.RoleStaff {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff members can submit requests")
	}

	assignment, err := s.advisors.ResolveAdvisor(ctx, actor.ID, trimmedOrNil(req.ClassID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no advisor found for an active class of this staff member")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve advisor")
	}
	if advisorID := strings.TrimSpace(req.AdvisorID); advisorID != "" && advisorID != assignment.AdvisorID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "advisor_id does not match the advisor of the active class")
	}

	classID := assignment.ClassID
	created := &models.Request{
		StaffID:         actor.ID,
		AdvisorID:       assignment.AdvisorID,
		ClassID:         &classID,
		WorkDescription: strings.TrimSpace(req.WorkDescription),
		RequestedPoints: req.RequestedPoints,
		Status:          models.RequestStatusPending,
		Revision:        1,
		CreatedAt:       s.now(),
	}
	if err := s.repo.Create(ctx, created); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	return s.complete(ctx, models.RequestEventSubmit, "", created)
}

// Approve moves a pending request to approved and credits the staff member.
func (s *RequestService) Approve(ctx context.Context, actor models.Actor, id string, req dto.ApproveRequest) (*models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	current, err := s.loadForAdvisor(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(current, models.RequestStatusPending, "approved"); err != nil {
		return nil, err
	}
	points := req.ApprovedPoints
	return s.transition(ctx, models.RequestEventApprove, repository.TransitionParams{
		ID:              current.ID,
		From:            models.RequestStatusPending,
		To:              models.RequestStatusApproved,
		ResponseMessage: trimmedOrNil(req.Message),
		ApprovedPoints:  &points,
	})
}

// Reject closes a pending request without points.
func (s *RequestService) Reject(ctx context.Context, actor models.Actor, id string, req dto.RejectRequest) (*models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	current, err := s.loadForAdvisor(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(current, models.RequestStatusPending, "rejected"); err != nil {
		return nil, err
	}
	return s.transition(ctx, models.RequestEventReject, repository.TransitionParams{
		ID:              current.ID,
		From:            models.RequestStatusPending,
		To:              models.RequestStatusRejected,
		ResponseMessage: trimmedOrNil(req.Reason),
	})
}

// RequestCorrection sends a pending request back to the staff member for revision.
func (s *RequestService) RequestCorrection(ctx context.Context, actor models.Actor, id string, req dto.CorrectionRequest) (*models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	current, err := s.loadForAdvisor(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(current, models.RequestStatusPending, "sent back for correction"); err != nil {
		return nil, err
	}
	note := strings.TrimSpace(req.Note)
	return s.transition(ctx, models.RequestEventCorrection, repository.TransitionParams{
		ID:              current.ID,
		From:            models.RequestStatusPending,
		To:              models.RequestStatusCorrection,
		ResponseMessage: &note,
	})
}

// Resubmit returns a request under correction to pending with revised content.
func (s *RequestService) Resubmit(ctx context.Context, actor models.Actor, id string, req dto.ResubmitRequest) (*models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.StaffID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the submitting staff member can resubmit this request")
	}
	if err := requireStatus(current, models.RequestStatusCorrection, "resubmitted"); err != nil {
		return nil, err
	}

	updated, err := s.repo.Resubmit(ctx, repository.ResubmitParams{
		ID:              current.ID,
		WorkDescription: strings.TrimSpace(req.WorkDescription),
		RequestedPoints: req.RequestedPoints,
		UpdatedAt:       s.now(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "request changed while resubmitting; refresh and try again")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resubmit request")
	}
	return s.complete(ctx, models.RequestEventResubmit, models.RequestStatusCorrection, updated)
}

// Get returns a request visible to the actor.
func (s *RequestService) Get(ctx context.Context, actor models.Actor, id string) (*models.Request, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && actor.ID != req.StaffID && actor.ID != req.AdvisorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another user")
	}
	return req, nil
}

func (s *RequestService) transition(ctx context.Context, event models.RequestEvent, params repository.TransitionParams) (*models.Request, error) {
	params.RespondedAt = s.now()
	updated, err := s.repo.Transition(ctx, params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// another reviewer won the compare-and-transition
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "request is no longer pending; refresh and try again")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request")
	}
	return s.complete(ctx, event, params.From, updated)
}

// complete runs the follow-up plan once the status write has committed. The caller's cancellation no longer
// applies from here on.
func (s *RequestService) complete(ctx context.Context, event models.RequestEvent, from models.RequestStatus, req *models.Request) (*models.Request, error) {
	detached := context.WithoutCancel(ctx)

	_, runErr := s.fanout.Run(detached, req)
	s.publish(detached, models.TransitionEvent{Event: event, From: from, To: req.Status, Request: *req, At: s.now()})
	if runErr == nil {
		return req, nil
	}

	if s.repairs != nil {
		if err := s.repairs.ScheduleRepair(req.ID); err != nil && !errors.Is(err, jobs.ErrDuplicate) {
			s.logger.Warn("failed to schedule request repair", zap.String("request_id", req.ID), zap.Error(err))
		}
	}

	pending := "follow-up records"
	var stepErr *PendingStepsError
	if errors.As(runErr, &stepErr) {
		pending = strings.Join(stepErr.StepNames(), ", ")
	}
	message := fmt.Sprintf("request is %s but %s did not complete; a repair has been scheduled", req.Status, pending)
	return req, appErrors.Wrap(runErr, appErrors.ErrDependencyFailure.Code, appErrors.ErrDependencyFailure.Status, message)
}

func (s *RequestService) publish(ctx context.Context, event models.TransitionEvent) {
	for _, observer := range s.observers {
		if err := observer.OnTransition(ctx, event); err != nil {
			s.logger.Warn("request observer failed",
				zap.String("request_id", event.Request.ID),
				zap.String("event", string(event.Event)),
				zap.Error(err),
			)
		}
	}
}

func (s *RequestService) load(ctx context.Context, id string) (*models.Request, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return req, nil
}

func (s *RequestService) loadForAdvisor(ctx context.Context, actor models.Actor, id string) (*models.Request, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.AdvisorID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned advisor can review this request")
	}
	return req, nil
}

func requireStatus(req *models.Request, want models.RequestStatus, verb string) error {
	if req.Status == want {
		return nil
	}
	return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("request is %s; only %s requests can be %s", req.Status, want, verb))
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
