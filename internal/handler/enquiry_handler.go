package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-compass-api/internal/models"
	"github.com/noah-isme/institute-compass-api/internal/service"
	"github.com/noah-isme/institute-compass-api/pkg/response"
)

// EnquiryHandler exposes the public contact form and its staff inbox.
type EnquiryHandler struct {
	enquiries *service.EnquiryService
}

// NewEnquiryHandler constructs an EnquiryHandler.
func NewEnquiryHandler(enquiries *service.EnquiryService) *EnquiryHandler {
	return &EnquiryHandler{enquiries: enquiries}
}

// Submit godoc
// @Summary Submit enquiry
// @Tags Enquiries
// @Accept json
// @Produce json
// @Param payload body models.EnquiryRequest true "Enquiry"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enquiries [post]
func (h *EnquiryHandler) Submit(c *gin.Context) {
	var req models.EnquiryRequest
	if !bindJSON(c, &req, "invalid enquiry payload") {
		return
	}
	enquiry, err := h.enquiries.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enquiry)
}

// List godoc
// @Summary List enquiries
// @Tags Enquiries
// @Produce json
// @Param status query string false "Status"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enquiries [get]
func (h *EnquiryHandler) List(c *gin.Context) {
	filter := models.EnquiryFilter{Status: c.Query("status")}
	filter.Page, filter.PageSize = pageParams(c)
	enquiries, pagination, err := h.enquiries.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enquiries, pagination)
}

// UpdateStatus godoc
// @Summary Update enquiry status
// @Tags Enquiries
// @Accept json
// @Produce json
// @Param id path string true "Enquiry ID"
// @Param payload body models.EnquiryStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /enquiries/{id} [put]
func (h *EnquiryHandler) UpdateStatus(c *gin.Context) {
	var req models.EnquiryStatusRequest
	if !bindJSON(c, &req, "invalid enquiry status") {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	enquiry, err := h.enquiries.UpdateStatus(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enquiry, nil)
}

// Delete godoc
// @Summary Delete enquiry
// @Tags Enquiries
// @Produce json
// @Param id path string true "Enquiry ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enquiries/{id} [delete]
func (h *EnquiryHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.enquiries.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "enquiry deleted")
}
