package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-compass-api/internal/models"
	"github.com/noah-isme/institute-compass-api/pkg/response"
)

type feeService interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error)
	Export(ctx context.Context, filter models.PaymentFilter) ([]byte, error)
	Get(ctx context.Context, id string) (*models.Payment, error)
	Receipt(ctx context.Context, id string) ([]byte, string, error)
	RecordPayment(ctx context.Context, req models.PaymentRequest, actor *models.Identity) (*models.PaymentResult, error)
	DeletePayment(ctx context.Context, id string, actor *models.Identity) (*models.PaymentResult, error)
}

// FeeHandler exposes the fee ledger.
type FeeHandler struct {
	fees feeService
}

// NewFeeHandler constructs a FeeHandler.
func NewFeeHandler(fees feeService) *FeeHandler {
	return &FeeHandler{fees: fees}
}

// List godoc
// @Summary List payments
// @Tags Fees
// @Produce json
// @Param student_id query string false "Student"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees [get]
func (h *FeeHandler) List(c *gin.Context) {
	filter, ok := paymentFilter(c)
	if !ok {
		return
	}
	filter.Page, filter.PageSize = pageParams(c)
	payments, pagination, err := h.fees.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, pagination)
}

// Export godoc
// @Summary Export payments as CSV
// @Tags Fees
// @Produce text/csv
// @Param student_id query string false "Student"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /fees/export [get]
func (h *FeeHandler) Export(c *gin.Context) {
	filter, ok := paymentFilter(c)
	if !ok {
		return
	}
	body, err := h.fees.Export(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("payments-%s.csv", time.Now().UTC().Format("20060102"))
	response.Attachment(c, "text/csv; charset=utf-8", filename, body)
}

// Get godoc
// @Summary Get payment
// @Tags Fees
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/{id} [get]
func (h *FeeHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	payment, err := h.fees.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Receipt godoc
// @Summary Download payment receipt
// @Tags Fees
// @Produce application/pdf
// @Param id path string true "Payment ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/{id}/receipt [get]
func (h *FeeHandler) Receipt(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	body, filename, err := h.fees.Receipt(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "application/pdf", filename, body)
}

// Create godoc
// @Summary Record payment
// @Description Records a payment and returns it with the student's updated ledger
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body models.PaymentRequest true "Payment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /fees [post]
func (h *FeeHandler) Create(c *gin.Context) {
	var req models.PaymentRequest
	if !bindJSON(c, &req, "invalid payment payload") {
		return
	}
	res, err := h.fees.RecordPayment(c.Request.Context(), req, identityFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Delete godoc
// @Summary Delete payment
// @Description Reverses a payment and returns the student's updated ledger
// @Tags Fees
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/{id} [delete]
func (h *FeeHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	res, err := h.fees.DeletePayment(c.Request.Context(), id, identityFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

func paymentFilter(c *gin.Context) (models.PaymentFilter, bool) {
	filter := models.PaymentFilter{StudentID: c.Query("student_id")}
	var err error
	if filter.From, err = dateQuery(c, "from"); err != nil {
		response.Error(c, err)
		return filter, false
	}
	if filter.To, err = dateQuery(c, "to"); err != nil {
		response.Error(c, err)
		return filter, false
	}
	return filter, true
}
