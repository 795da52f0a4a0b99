package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-compass-api/internal/models"
	"github.com/noah-isme/institute-compass-api/pkg/response"
)

type settingService interface {
	List(ctx context.Context) ([]models.Setting, bool, error)
	Get(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, key string, req models.SettingRequest) (*models.Setting, error)
}

// SettingHandler exposes site settings.
type SettingHandler struct {
	settings settingService
}

// NewSettingHandler constructs a SettingHandler.
func NewSettingHandler(settings settingService) *SettingHandler {
	return &SettingHandler{settings: settings}
}

// List godoc
// @Summary List settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings [get]
func (h *SettingHandler) List(c *gin.Context) {
	settings, hit, err := h.settings.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	respondListed(c, settings, hit)
}

// Get godoc
// @Summary Get setting
// @Tags Settings
// @Produce json
// @Param key path string true "Setting key"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /settings/{key} [get]
func (h *SettingHandler) Get(c *gin.Context) {
	setting, err := h.settings.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, setting, nil)
}

// Upsert godoc
// @Summary Create or replace setting
// @Tags Settings
// @Accept json
// @Produce json
// @Param key path string true "Setting key"
// @Param payload body models.SettingRequest true "Value"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /settings/{key} [put]
func (h *SettingHandler) Upsert(c *gin.Context) {
	var req models.SettingRequest
	if !bindJSON(c, &req, "invalid setting payload") {
		return
	}
	setting, err := h.settings.Upsert(c.Request.Context(), c.Param("key"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, setting, nil)
}
