package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/credpoints-api/internal/models"
	"github.com/noah-isme/credpoints-api/pkg/response"
)

type badgeService interface {
	Counts(ctx context.Context, userID string) (*models.BadgeCounts, error)
	Rebuild(ctx context.Context, userID string) (*models.BadgeCounts, error)
}

// BadgeHandler serves the cached pending/correction counters.
type BadgeHandler struct {
	service badgeService
}

// NewBadgeHandler builds a new handler.
func NewBadgeHandler(service badgeService) *BadgeHandler {
	return &BadgeHandler{service: service}
}

// Get godoc
// @Summary Badge counters of the caller
// @Tags Badges
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /badges [get]
func (h *BadgeHandler) Get(c *gin.Context) {
	h.respond(c, h.service.Counts)
}

// Rebuild godoc
// @Summary Recompute badge counters from request state
// @Tags Badges
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /badges/rebuild [post]
func (h *BadgeHandler) Rebuild(c *gin.Context) {
	h.respond(c, h.service.Rebuild)
}

func (h *BadgeHandler) respond(c *gin.Context, fn func(ctx context.Context, userID string) (*models.BadgeCounts, error)) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	counts, err := fn(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts, nil)
}
