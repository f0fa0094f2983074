package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/credpoints-api/internal/models"
	"github.com/noah-isme/credpoints-api/internal/repository"
	appErrors "github.com/noah-isme/credpoints-api/pkg/errors"
)

type memRequestRepo struct {
	mu       sync.Mutex
	requests map[string]*models.Request
}

func newMemRequestRepo() *memRequestRepo {
	return &memRequestRepo{requests: make(map[string]*models.Request)}
}

func (m *memRequestRepo) Create(ctx context.Context, req *models.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.UpdatedAt = req.CreatedAt
	copy := *req
	m.requests[req.ID] = &copy
	return nil
}

func (m *memRequestRepo) GetByID(ctx context.Context, id string) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *req
	return &copy, nil
}

func (m *memRequestRepo) Transition(ctx context.Context, params repository.TransitionParams) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[params.ID]
	if !ok || req.Status != params.From {
		return nil, sql.ErrNoRows
	}
	req.Status = params.To
	req.ResponseMessage = params.ResponseMessage
	req.ApprovedPoints = params.ApprovedPoints
	respondedAt := params.RespondedAt
	req.RespondedAt = &respondedAt
	req.UpdatedAt = params.RespondedAt
	copy := *req
	return &copy, nil
}

func (m *memRequestRepo) Resubmit(ctx context.Context, params repository.ResubmitParams) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[params.ID]
	if !ok || req.Status != models.RequestStatusCorrection {
		return nil, sql.ErrNoRows
	}
	req.Status = models.RequestStatusPending
	req.WorkDescription = params.WorkDescription
	req.RequestedPoints = params.RequestedPoints
	req.ResponseMessage = nil
	req.ApprovedPoints = nil
	req.RespondedAt = nil
	req.Revision++
	req.UpdatedAt = params.UpdatedAt
	copy := *req
	return &copy, nil
}

func (m *memRequestRepo) ListIncomplete(ctx context.Context, cutoff time.Time, limit int) ([]models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.Request
	for _, req := range m.requests {
		if req.UpdatedAt.Before(cutoff) {
			result = append(result, *req)
		}
	}
	return result, nil
}

func (m *memRequestRepo) all() []models.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]models.Request, 0, len(m.requests))
	for _, req := range m.requests {
		result = append(result, *req)
	}
	return result
}

type memLedgerRepo struct {
	mu        sync.Mutex
	balances  map[string]int
	byRequest map[string]*models.LedgerEntry
	entries   []models.LedgerEntry
	fail      error
}

func newMemLedgerRepo(users ...string) *memLedgerRepo {
	repo := &memLedgerRepo{balances: make(map[string]int), byRequest: make(map[string]*models.LedgerEntry)}
	for _, u := range users {
		repo.balances[u] = 0
	}
	return repo
}

func (m *memLedgerRepo) Apply(ctx context.Context, userID string, delta int, requestID *string) (*models.LedgerEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, false, m.fail
	}
	if requestID != nil {
		if existing, ok := m.byRequest[*requestID]; ok {
			return existing, false, nil
		}
	}
	balance, ok := m.balances[userID]
	if !ok {
		return nil, false, sql.ErrNoRows
	}
	balance += delta
	m.balances[userID] = balance
	entry := models.LedgerEntry{ID: uuid.NewString(), UserID: userID, RequestID: requestID, Delta: delta, Balance: balance, CreatedAt: time.Now()}
	m.entries = append(m.entries, entry)
	if requestID != nil {
		m.byRequest[*requestID] = &entry
	}
	return &entry, true, nil
}

func (m *memLedgerRepo) Balance(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[userID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	return balance, nil
}

func (m *memLedgerRepo) ListForUser(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.LedgerEntry
	for _, e := range m.entries {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *memLedgerRepo) setFail(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

func (m *memLedgerRepo) creditsFor(requestID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, e := range m.entries {
		if e.RequestID != nil && *e.RequestID == requestID {
			count++
		}
	}
	return count
}

type memActivityRepo struct {
	mu         sync.Mutex
	activities []models.Activity
	fail       error
}

func (m *memActivityRepo) Append(ctx context.Context, activity *models.Activity) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return false, m.fail
	}
	if activity.RelatedRequestID != nil {
		for _, a := range m.activities {
			if a.RelatedRequestID != nil && *a.RelatedRequestID == *activity.RelatedRequestID &&
				*a.RequestRevision == *activity.RequestRevision && a.ActivityType == activity.ActivityType {
				return false, nil
			}
		}
	}
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	activity.CreatedAt = time.Now().Add(time.Duration(len(m.activities)) * time.Millisecond)
	m.activities = append(m.activities, *activity)
	return true, nil
}

func (m *memActivityRepo) ListForUser(ctx context.Context, userID string, limit int) ([]models.Activity, error) {
	return m.filter(func(a models.Activity) bool { return a.UserID == userID }), nil
}

func (m *memActivityRepo) ListForRequest(ctx context.Context, requestID string) ([]models.Activity, error) {
	return m.filter(func(a models.Activity) bool { return a.RelatedRequestID != nil && *a.RelatedRequestID == requestID }), nil
}

func (m *memActivityRepo) filter(keep func(models.Activity) bool) []models.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.Activity
	for _, a := range m.activities {
		if keep(a) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

type memNotificationRepo struct {
	mu            sync.Mutex
	notifications []*models.Notification
	fail          error
}

func (m *memNotificationRepo) Create(ctx context.Context, n *models.Notification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return false, m.fail
	}
	if n.RelatedRequestID != nil {
		for _, existing := range m.notifications {
			if existing.RelatedRequestID != nil && *existing.RelatedRequestID == *n.RelatedRequestID &&
				*existing.RequestRevision == *n.RequestRevision && existing.Type == n.Type {
				return false, nil
			}
		}
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	copy := *n
	m.notifications = append(m.notifications, &copy)
	return true, nil
}

func (m *memNotificationRepo) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == id {
			copy := *n
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memNotificationRepo) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.Notification
	for _, n := range m.notifications {
		if n.UserID == userID && (!unreadOnly || !n.Read) {
			result = append(result, *n)
		}
	}
	return result, nil
}

func (m *memNotificationRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	list, _ := m.ListForUser(ctx, userID, true, 0, 0)
	return len(list), nil
}

func (m *memNotificationRepo) MarkRead(ctx context.Context, id, userID string, at time.Time) (int64, error) {
	return m.mark(func(n *models.Notification) bool { return n.ID == id && n.UserID == userID }, at), nil
}

func (m *memNotificationRepo) MarkReadByRequest(ctx context.Context, userID, requestID string, at time.Time) (int64, error) {
	return m.mark(func(n *models.Notification) bool {
		return n.UserID == userID && n.RelatedRequestID != nil && *n.RelatedRequestID == requestID
	}, at), nil
}

func (m *memNotificationRepo) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	return m.mark(func(n *models.Notification) bool { return n.UserID == userID }, at), nil
}

func (m *memNotificationRepo) mark(match func(*models.Notification) bool, at time.Time) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var updated int64
	for _, n := range m.notifications {
		if match(n) && !n.Read {
			n.Read = true
			readAt := at
			n.ReadAt = &readAt
			updated++
		}
	}
	return updated
}

func (m *memNotificationRepo) forUser(userID string, kind models.NotificationType) []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.Notification
	for _, n := range m.notifications {
		if n.UserID == userID && n.Type == kind {
			result = append(result, *n)
		}
	}
	return result
}

type advisorStub struct {
	assignments map[string]models.AdvisorAssignment
}

func (a *advisorStub) ResolveAdvisor(ctx context.Context, staffID string, classID *string) (*models.AdvisorAssignment, error) {
	assignment, ok := a.assignments[staffID]
	if !ok || (classID != nil && *classID != assignment.ClassID) {
		return nil, sql.ErrNoRows
	}
	return &assignment, nil
}

type repairRecorder struct {
	mu        sync.Mutex
	scheduled []string
}

func (r *repairRecorder) ScheduleRepair(requestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, requestID)
	return nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []models.TransitionEvent
	err    error
}

func (e *eventRecorder) OnTransition(ctx context.Context, event models.TransitionEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return e.err
}

// workflowHarness wires the engine to in-memory stores: staff S1/S2 belong to class C1 advised by A1.
type workflowHarness struct {
	requests      *memRequestRepo
	ledgerRepo    *memLedgerRepo
	activityRepo  *memActivityRepo
	notifications *memNotificationRepo
	repairs       *repairRecorder
	events        *eventRecorder
	ledger        *LedgerService
	fanout        *FanoutRunner
	engine        *RequestService
}

var (
	staffS1   = models.Actor{ID: "S1", Role: models.RoleStaff}
	staffS2   = models.Actor{ID: "S2", Role: models.RoleStaff}
	advisorA1 = models.Actor{ID: "A1", Role: models.RoleAdvisor}
	advisorA2 = models.Actor{ID: "A2", Role: models.RoleAdvisor}
)

func newWorkflowHarness() *workflowHarness {
	h := &workflowHarness{
		requests:      newMemRequestRepo(),
		ledgerRepo:    newMemLedgerRepo("S1", "S2", "A1"),
		activityRepo:  &memActivityRepo{},
		notifications: &memNotificationRepo{},
		repairs:       &repairRecorder{},
		events:        &eventRecorder{},
	}
	h.ledger = NewLedgerService(h.ledgerRepo, nil)
	h.fanout = NewFanoutRunner(h.ledger, NewActivityService(h.activityRepo, nil), NewNotificationService(h.notifications, nil), nil, nil)
	advisors := &advisorStub{assignments: map[string]models.AdvisorAssignment{
		"S1": {ClassID: "C1", AdvisorID: "A1"},
		"S2": {ClassID: "C1", AdvisorID: "A1"},
	}}
	h.engine = NewRequestService(h.requests, advisors, h.fanout, nil,
		WithRequestObservers(h.events),
		WithRepairScheduler(h.repairs),
	)
	return h
}

func (h *workflowHarness) balance(userID string) int {
	balance, _ := h.ledgerRepo.Balance(context.Background(), userID)
	return balance
}

func errorCode(err error) string {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
