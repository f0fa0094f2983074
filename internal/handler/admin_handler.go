package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/credpoints-api/internal/dto"
	"github.com/noah-isme/credpoints-api/pkg/response"
)

type repairRunner interface {
	Sweep(ctx context.Context) (*dto.RepairReport, error)
	RepairRequest(ctx context.Context, requestID string) (*dto.RepairReport, error)
}

// AdminHandler exposes maintenance endpoints.
type AdminHandler struct {
	repairs repairRunner
}

// NewAdminHandler builds a new handler.
func NewAdminHandler(repairs repairRunner) *AdminHandler {
	return &AdminHandler{repairs: repairs}
}

// Repair godoc
// @Summary Complete missing follow-up records
// @Description Repairs a single request when request_id is given, otherwise runs a sweep.
// @Tags Admin
// @Produce json
// @Param request_id query string false "Request ID"
// @Success 200 {object} response.Envelope
// @Router /admin/repair [post]
func (h *AdminHandler) Repair(c *gin.Context) {
	if requestID := c.Query("request_id"); requestID != "" {
		report, err := h.repairs.RepairRequest(c.Request.Context(), requestID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, report, nil)
		return
	}
	report, err := h.repairs.Sweep(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
