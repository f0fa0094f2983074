package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/credpoints-api/internal/dto"
	"github.com/noah-isme/credpoints-api/internal/models"
	appErrors "github.com/noah-isme/credpoints-api/pkg/errors"
)

type notificationServiceMock struct {
	unreadOnly bool
	page       int
	markedID   string
}

func (m *notificationServiceMock) List(ctx context.Context, userID string, unreadOnly bool, page, pageSize int) ([]models.Notification, error) {
	m.unreadOnly, m.page = unreadOnly, page
	return []models.Notification{{ID: "n1", UserID: userID}}, nil
}

func (m *notificationServiceMock) UnreadCount(ctx context.Context, userID string) (*dto.UnreadCount, error) {
	return &dto.UnreadCount{Unread: 3}, nil
}

func (m *notificationServiceMock) MarkRead(ctx context.Context, userID, id string) (*dto.MarkReadResult, error) {
	m.markedID = id
	if id == "foreign" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "notification belongs to another user")
	}
	return &dto.MarkReadResult{Updated: 1}, nil
}

func (m *notificationServiceMock) MarkAllRead(ctx context.Context, userID string) (*dto.MarkReadResult, error) {
	return &dto.MarkReadResult{Updated: 4}, nil
}

func TestNotificationHandlerList(t *testing.T) {
	svc := &notificationServiceMock{}
	handler := NewNotificationHandler(svc)

	c, w := newTestContext(http.MethodGet, "/notifications?unread=true&page=3", "", advisorClaims)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.unreadOnly)
	assert.Equal(t, 3, svc.page)
}

func TestNotificationHandlerUnreadCount(t *testing.T) {
	handler := NewNotificationHandler(&notificationServiceMock{})

	c, w := newTestContext(http.MethodGet, "/notifications/unread-count", "", advisorClaims)
	handler.UnreadCount(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), `"unread":3`)
}

func TestNotificationHandlerMarkRead(t *testing.T) {
	svc := &notificationServiceMock{}
	handler := NewNotificationHandler(svc)

	c, w := newTestContext(http.MethodPost, "/notifications/foreign/read", "", advisorClaims)
	c.Params = gin.Params{{Key: "id", Value: "foreign"}}
	handler.MarkRead(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	c, w = newTestContext(http.MethodPost, "/notifications/n1/read", "", advisorClaims)
	c.Params = gin.Params{{Key: "id", Value: "n1"}}
	handler.MarkRead(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "n1", svc.markedID)

	c, w = newTestContext(http.MethodPost, "/notifications/read-all", "", advisorClaims)
	handler.MarkAllRead(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), `"updated":4`)
}

type badgeServiceMock struct{ rebuilt bool }

func (m *badgeServiceMock) Counts(ctx context.Context, userID string) (*models.BadgeCounts, error) {
	return &models.BadgeCounts{UserID: userID, Pending: 2}, nil
}

func (m *badgeServiceMock) Rebuild(ctx context.Context, userID string) (*models.BadgeCounts, error) {
	m.rebuilt = true
	return &models.BadgeCounts{UserID: userID, Pending: 1}, nil
}

func TestBadgeHandler(t *testing.T) {
	svc := &badgeServiceMock{}
	handler := NewBadgeHandler(svc)

	c, w := newTestContext(http.MethodGet, "/badges", "", advisorClaims)
	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), `"pending":2`)

	c, w = newTestContext(http.MethodPost, "/badges/rebuild", "", advisorClaims)
	handler.Rebuild(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.rebuilt)
}

type repairRunnerMock struct {
	repaired string
	err      error
}

func (m *repairRunnerMock) Sweep(ctx context.Context) (*dto.RepairReport, error) {
	return &dto.RepairReport{Scanned: 3, Repaired: 2, Failed: []string{"r3"}}, m.err
}

func (m *repairRunnerMock) RepairRequest(ctx context.Context, requestID string) (*dto.RepairReport, error) {
	m.repaired = requestID
	if m.err != nil {
		return nil, m.err
	}
	return &dto.RepairReport{Scanned: 1}, nil
}

func TestAdminHandlerRepair(t *testing.T) {
	runner := &repairRunnerMock{}
	handler := NewAdminHandler(runner)
	admin := &models.JWTClaims{UserID: "root", Role: models.RoleAdmin}

	c, w := newTestContext(http.MethodPost, "/admin/repair", "", admin)
	handler.Repair(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), `"failed":["r3"]`)

	c, w = newTestContext(http.MethodPost, "/admin/repair?request_id=r7", "", admin)
	handler.Repair(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "r7", runner.repaired)
	assert.Contains(t, string(decode(t, w).Data), `"repaired":0`)

	runner.err = appErrors.Wrap(errors.New("db down"), appErrors.ErrDependencyFailure.Code, appErrors.ErrDependencyFailure.Status, "repair incomplete")
	c, w = newTestContext(http.MethodPost, "/admin/repair?request_id=r7", "", admin)
	handler.Repair(c)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
