package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/credpoints-api/internal/models"
)

// FanoutStep names one follow-up write owed by a committed status transition.
type FanoutStep string

const (
	StepLedger       FanoutStep = "ledger"
	StepActivity     FanoutStep = "activity"
	StepNotification FanoutStep = "notification"
)

// PendingStepsError reports the follow-up steps of a request that did not complete.
type PendingStepsError struct {
	RequestID string
	Steps     []FanoutStep
	Err       error
}

func (e *PendingStepsError) Error() string {
	return fmt.Sprintf("request %s: pending steps %s: %v", e.RequestID, strings.Join(e.StepNames(), ", "), e.Err)
}

func (e *PendingStepsError) Unwrap() error {
	return e.Err
}

// StepNames returns the pending steps as plain strings.
func (e *PendingStepsError) StepNames() []string {
	names := make([]string, len(e.Steps))
	for i, step := range e.Steps {
		names[i] = string(step)
	}
	return names
}

type ledgerPoster interface {
	PostForRequest(ctx context.Context, userID string, delta int, requestID string) (*models.LedgerEntry, bool, error)
}

type activityAppender interface {
	Append(ctx context.Context, activity *models.Activity) (*models.Activity, bool, error)
}

type notificationCreator interface {
	Create(ctx context.Context, n *models.Notification) (*models.Notification, bool, error)
}

// FanoutRunner executes the ordered follow-up plan of a request's current status.
// Every step is keyed by request id, revision and step, so running a plan again only fills gaps.
type FanoutRunner struct {
	ledger        ledgerPoster
	activities    activityAppender
	notifications notificationCreator
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewFanoutRunner constructs a runner.
func NewFanoutRunner(ledger ledgerPoster, activities activityAppender, notifications notificationCreator, metrics *MetricsService, logger *zap.Logger) *FanoutRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FanoutRunner{ledger: ledger, activities: activities, notifications: notifications, metrics: metrics, logger: logger}
}

// PlanFor returns the steps a request in its current status must have completed, in execution order.
func PlanFor(req *models.Request) []FanoutStep {
	switch req.Status {
	case models.RequestStatusPending:
		return []FanoutStep{StepNotification}
	case models.RequestStatusApproved:
		return []FanoutStep{StepLedger, StepActivity, StepNotification}
	case models.RequestStatusRejected, models.RequestStatusCorrection:
		return []FanoutStep{StepActivity, StepNotification}
	default:
		return nil
	}
}

// Run executes the plan for req and returns the steps that wrote a new record; steps already on file are
// skipped in the result. The first failing step stops the plan and a *PendingStepsError lists it together
// with every step after it.
func (f *FanoutRunner) Run(ctx context.Context, req *models.Request) ([]FanoutStep, error) {
	steps := PlanFor(req)
	written := make([]FanoutStep, 0, len(steps))
	for i, step := range steps {
		wrote, err := f.runStep(ctx, step, req)
		if err != nil {
			f.logger.Error("fan-out step failed",
				zap.String("request_id", req.ID),
				zap.String("step", string(step)),
				zap.Int("revision", req.Revision),
				zap.String("status", string(req.Status)),
				zap.Error(err),
			)
			f.metrics.RecordFanoutFailure(step)
			return written, &PendingStepsError{RequestID: req.ID, Steps: append([]FanoutStep(nil), steps[i:]...), Err: err}
		}
		if wrote {
			written = append(written, step)
		}
	}
	return written, nil
}

func (f *FanoutRunner) runStep(ctx context.Context, step FanoutStep, req *models.Request) (bool, error) {
	switch step {
	case StepLedger:
		if req.ApprovedPoints == nil {
			return false, fmt.Errorf("approved request %s has no approved points", req.ID)
		}
		delta, _, _ := ledgerEffect(*req.ApprovedPoints)
		_, applied, err := f.ledger.PostForRequest(ctx, req.StaffID, delta, req.ID)
		return applied, err
	case StepActivity:
		activity := activityFor(req)
		if activity == nil {
			return false, nil
		}
		_, created, err := f.activities.Append(ctx, activity)
		return created, err
	case StepNotification:
		n, err := notificationFor(req)
		if err != nil {
			return false, err
		}
		_, created, err := f.notifications.Create(ctx, n)
		return created, err
	default:
		return false, fmt.Errorf("unknown fan-out step %q", step)
	}
}

// ledgerEffect maps approved points onto the signed ledger delta, the activity type and its magnitude.
func ledgerEffect(points int) (int, models.ActivityType, int) {
	if points < 0 {
		return points, models.ActivityDebit, -points
	}
	return points, models.ActivityCredit, points
}

func activityFor(req *models.Request) *models.Activity {
	requestID := req.ID
	revision := req.Revision
	activity := &models.Activity{
		UserID:           req.StaffID,
		RelatedRequestID: &requestID,
		RequestRevision:  &revision,
	}
	switch req.Status {
	case models.RequestStatusApproved:
		if req.ApprovedPoints == nil {
			return nil
		}
		_, kind, magnitude := ledgerEffect(*req.ApprovedPoints)
		activity.ActivityType = kind
		activity.Points = magnitude
		activity.Description = approvalDescription(kind, *req.ApprovedPoints, req.RequestedPoints, req.WorkDescription)
	case models.RequestStatusRejected:
		activity.ActivityType = models.ActivityRequestRejected
		activity.Description = "Request rejected: " + req.WorkDescription
	case models.RequestStatusCorrection:
		activity.ActivityType = models.ActivityRequestCorrection
		activity.Description = "Correction requested: " + req.WorkDescription
	default:
		return nil
	}
	return activity
}

func approvalDescription(kind models.ActivityType, approved, requested int, description string) string {
	verb := "Credited"
	if kind == models.ActivityDebit {
		verb = "Debited"
	}
	magnitude := approved
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if approved != requested {
		return fmt.Sprintf("%s %d points (approved %d of %d requested) for: %s", verb, magnitude, approved, requested, description)
	}
	return fmt.Sprintf("%s %d points for: %s", verb, magnitude, description)
}

func notificationFor(req *models.Request) (*models.Notification, error) {
	requestID := req.ID
	revision := req.Revision
	resubmission := req.Status == models.RequestStatusPending && req.Revision > 1

	payload, err := json.Marshal(models.NotificationRequestData{
		RequestID:       req.ID,
		StaffID:         req.StaffID,
		WorkDescription: req.WorkDescription,
		RequestedPoints: req.RequestedPoints,
		ApprovedPoints:  req.ApprovedPoints,
		Status:          req.Status,
		Revision:        req.Revision,
		Resubmission:    resubmission,
		ResponseMessage: req.ResponseMessage,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal notification payload: %w", err)
	}

	n := &models.Notification{
		UserID:           req.StaffID,
		RelatedRequestID: &requestID,
		RequestRevision:  &revision,
		RequestData:      payload,
	}
	switch req.Status {
	case models.RequestStatusPending:
		n.UserID = req.AdvisorID
		n.Type = models.NotificationRequestSubmitted
		if resubmission {
			n.Title = "Request resubmitted"
			n.Message = fmt.Sprintf("Resubmitted for %d points: %s", req.RequestedPoints, req.WorkDescription)
		} else {
			n.Title = "New CredPoints request"
			n.Message = fmt.Sprintf("%d points requested for: %s", req.RequestedPoints, req.WorkDescription)
		}
	case models.RequestStatusApproved:
		n.Type = models.NotificationRequestApproved
		n.Title = "Request approved"
		approved := 0
		if req.ApprovedPoints != nil {
			approved = *req.ApprovedPoints
		}
		if approved != req.RequestedPoints {
			n.Message = fmt.Sprintf("Approved %d of %d requested points for: %s", approved, req.RequestedPoints, req.WorkDescription)
		} else {
			n.Message = fmt.Sprintf("Approved %d points for: %s", approved, req.WorkDescription)
		}
		n.Message = withNote(n.Message, "Message", req.ResponseMessage)
	case models.RequestStatusRejected:
		n.Type = models.NotificationRequestRejected
		n.Title = "Request rejected"
		n.Message = withNote("Your request was rejected: "+req.WorkDescription, "Reason", req.ResponseMessage)
	case models.RequestStatusCorrection:
		n.Type = models.NotificationRequestCorrection
		n.Title = "Correction requested"
		n.Message = withNote("Please revise your request: "+req.WorkDescription, "Note", req.ResponseMessage)
	default:
		return nil, fmt.Errorf("no notification defined for status %q", req.Status)
	}
	return n, nil
}

func withNote(message, label string, note *string) string {
	if note == nil || strings.TrimSpace(*note) == "" {
		return message
	}
	return fmt.Sprintf("%s. %s: %s", message, label, *note)
}
