package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/credpoints-api/internal/dto"
	"github.com/noah-isme/credpoints-api/internal/models"
	"github.com/noah-isme/credpoints-api/internal/service"
	appErrors "github.com/noah-isme/credpoints-api/pkg/errors"
	"github.com/noah-isme/credpoints-api/pkg/response"
)

type requestEngine interface {
	Submit(ctx context.Context, actor models.Actor, req dto.SubmitRequest) (*models.Request, error)
	Approve(ctx context.Context, actor models.Actor, id string, req dto.ApproveRequest) (*models.Request, error)
	Reject(ctx context.Context, actor models.Actor, id string, req dto.RejectRequest) (*models.Request, error)
	RequestCorrection(ctx context.Context, actor models.Actor, id string, req dto.CorrectionRequest) (*models.Request, error)
	Resubmit(ctx context.Context, actor models.Actor, id string, req dto.ResubmitRequest) (*models.Request, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Request, error)
}

type requestQueries interface {
	Filter(ctx context.Context, actor models.Actor, query dto.RequestQuery) ([]models.Request, *models.Pagination, error)
	ListPendingForAdvisor(ctx context.Context, advisorID string, page, pageSize int) ([]models.Request, *models.Pagination, error)
	StatsForStaff(ctx context.Context, query dto.StatsQuery) (*models.RequestStats, error)
}

type requestActivities interface {
	ListForRequest(ctx context.Context, requestID string) ([]models.Activity, error)
}

type requestNotifications interface {
	MarkReadByRequest(ctx context.Context, userID, requestID string) (*dto.MarkReadResult, error)
}

// RequestHandler exposes the CredPoints request lifecycle.
type RequestHandler struct {
	engine        requestEngine
	queries       requestQueries
	activities    requestActivities
	notifications requestNotifications
}

// NewRequestHandler builds a new handler.
func NewRequestHandler(engine requestEngine, queries requestQueries, activities requestActivities, notifications requestNotifications) *RequestHandler {
	return &RequestHandler{engine: engine, queries: queries, activities: activities, notifications: notifications}
}

// Submit godoc
// @Summary Submit a CredPoints request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.SubmitRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}
	created, err := h.engine.Submit(c.Request.Context(), actor, req)
	respondTransition(c, http.StatusCreated, created, err)
}

// List godoc
// @Summary List requests visible to the caller
// @Tags Requests
// @Produce json
// @Param status query []string false "Status filter" collectionFormat(multi)
// @Param staff_id query string false "Staff filter (advisor/admin)"
// @Param class_id query string false "Class filter"
// @Param date_from query string false "Created on or after (YYYY-MM-DD)"
// @Param date_to query string false "Created on or before (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	query := dto.RequestQuery{
		StaffID:   c.Query("staff_id"),
		AdvisorID: c.Query("advisor_id"),
		ClassID:   c.Query("class_id"),
	}
	for _, raw := range c.QueryArray("status") {
		query.Status = append(query.Status, strings.Split(raw, ",")...)
	}
	if query.DateFrom, err = dateParam(c, "date_from"); err != nil {
		response.Error(c, err)
		return
	}
	if query.DateTo, err = dateParam(c, "date_to"); err != nil {
		response.Error(c, err)
		return
	}
	query.Page, query.PageSize = pageParams(c)

	items, pagination, err := h.queries.Filter(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Pending godoc
// @Summary List requests awaiting the advisor's review
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /requests/pending [get]
func (h *RequestHandler) Pending(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, pageSize := pageParams(c)
	items, pagination, err := h.queries.ListPendingForAdvisor(c.Request.Context(), actor.ID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Stats godoc
// @Summary Request statistics for a staff member
// @Tags Requests
// @Produce json
// @Param staff_id query string false "Staff ID (advisor/admin only, defaults to caller)"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /requests/stats [get]
func (h *RequestHandler) Stats(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	query := dto.StatsQuery{StaffID: actor.ID}
	if staffID := strings.TrimSpace(c.Query("staff_id")); staffID != "" && staffID != actor.ID {
		if actor.Role == models.RoleStaff {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "staff members can only view their own statistics"))
			return
		}
		query.StaffID = staffID
	}
	if query.DateFrom, err = dateParam(c, "date_from"); err != nil {
		response.Error(c, err)
		return
	}
	if query.DateTo, err = dateParam(c, "date_to"); err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.queries.StatsForStaff(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Get godoc
// @Summary Get a request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	req, err := h.engine.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// Approve godoc
// @Summary Approve a pending request
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ApproveRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/approve [post]
func (h *RequestHandler) Approve(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approval payload"))
		return
	}
	updated, err := h.engine.Approve(c.Request.Context(), actor, c.Param("id"), req)
	respondTransition(c, http.StatusOK, updated, err)
}

// Reject godoc
// @Summary Reject a pending request
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.RejectRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/reject [post]
func (h *RequestHandler) Reject(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.RejectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rejection payload"))
			return
		}
	}
	updated, err := h.engine.Reject(c.Request.Context(), actor, c.Param("id"), req)
	respondTransition(c, http.StatusOK, updated, err)
}

// Correction godoc
// @Summary Send a pending request back for correction
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.CorrectionRequest true "Correction note"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/correction [post]
func (h *RequestHandler) Correction(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid correction payload"))
		return
	}
	updated, err := h.engine.RequestCorrection(c.Request.Context(), actor, c.Param("id"), req)
	respondTransition(c, http.StatusOK, updated, err)
}

// Resubmit godoc
// @Summary Resubmit a request after correction
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ResubmitRequest true "Revised request"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/resubmit [post]
func (h *RequestHandler) Resubmit(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ResubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resubmission payload"))
		return
	}
	updated, err := h.engine.Resubmit(c.Request.Context(), actor, c.Param("id"), req)
	respondTransition(c, http.StatusOK, updated, err)
}

// Activities godoc
// @Summary Audit trail of a request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/activities [get]
func (h *RequestHandler) Activities(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	req, err := h.engine.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.activities.ListForRequest(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// MarkNotificationsRead godoc
// @Summary Mark the caller's notifications about a request as read
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/notifications/read [post]
func (h *RequestHandler) MarkNotificationsRead(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.notifications.MarkReadByRequest(c.Request.Context(), actor.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// respondTransition writes a committed transition. A DEPENDENCY_FAILURE still carries the updated request
// and is reported as 202 with the follow-up steps still owed.
func respondTransition(c *gin.Context, status int, req *models.Request, err error) {
	if err == nil {
		response.JSON(c, status, req, nil)
		return
	}
	if req != nil && appErrors.HasCode(err, appErrors.ErrDependencyFailure.Code) {
		meta := map[string]interface{}{}
		var pending *service.PendingStepsError
		if errors.As(err, &pending) {
			meta["pending_steps"] = pending.StepNames()
		}
		response.Degraded(c, req, err, meta)
		return
	}
	response.Error(c, err)
}
