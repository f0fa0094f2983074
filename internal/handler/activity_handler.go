package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/credpoints-api/internal/dto"
	"github.com/noah-isme/credpoints-api/internal/models"
	"github.com/noah-isme/credpoints-api/pkg/response"
)

type activityLister interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]models.Activity, error)
}

type statementExporter interface {
	ActivityStatement(ctx context.Context, userID string, format dto.ExportFormat) (*dto.ExportedFile, error)
}

type balanceReader interface {
	GetBalance(ctx context.Context, userID string) (*models.Balance, error)
	History(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error)
}

// ActivityHandler exposes the caller's audit trail and point balance.
type ActivityHandler struct {
	activities activityLister
	exporter   statementExporter
	balances   balanceReader
}

// NewActivityHandler builds a new handler.
func NewActivityHandler(activities activityLister, exporter statementExporter, balances balanceReader) *ActivityHandler {
	return &ActivityHandler{activities: activities, exporter: exporter, balances: balances}
}

// List godoc
// @Summary List the caller's activities
// @Tags Activities
// @Produce json
// @Param limit query int false "Maximum entries (default 50)"
// @Success 200 {object} response.Envelope
// @Router /activities [get]
func (h *ActivityHandler) List(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.activities.ListForUser(c.Request.Context(), actor.ID, limitParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Export godoc
// @Summary Download the caller's activity statement
// @Tags Activities
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /activities/export [get]
func (h *ActivityHandler) Export(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.ActivityStatement(c.Request.Context(), actor.ID, dto.ExportFormat(c.DefaultQuery("format", "csv")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// Balance godoc
// @Summary Current CredPoints balance of the caller
// @Tags Points
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /points/balance [get]
func (h *ActivityHandler) Balance(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	balance, err := h.balances.GetBalance(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance, nil)
}

// History godoc
// @Summary Ledger entries of the caller, newest first
// @Tags Points
// @Produce json
// @Param limit query int false "Maximum entries (default 50)"
// @Success 200 {object} response.Envelope
// @Router /points/history [get]
func (h *ActivityHandler) History(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.balances.History(c.Request.Context(), actor.ID, limitParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

func limitParam(c *gin.Context) int {
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 500 {
		return v
	}
	return 50
}
