package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-compass-api/internal/models"
	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
	"github.com/noah-isme/institute-compass-api/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context, months int) (*models.DashboardSummary, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Summary godoc
// @Summary Institute summary
// @Description Student, fee, catalog and enquiry totals with monthly collections
// @Tags Dashboard
// @Produce json
// @Param months query int false "Months of collections to include (1-24, default 6)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	months := 0
	if raw := c.Query("months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "months must be a number"))
			return
		}
		months = parsed
	}
	summary, cacheHit, err := h.service.Summary(c.Request.Context(), months)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondListed(c, summary, cacheHit)
}
