package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-compass-api/internal/models"
	"github.com/noah-isme/institute-compass-api/internal/service"
	"github.com/noah-isme/institute-compass-api/pkg/response"
)

// AssessmentHandler exposes tests and marks.
type AssessmentHandler struct {
	assessments *service.AssessmentService
}

// NewAssessmentHandler constructs an AssessmentHandler.
func NewAssessmentHandler(assessments *service.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments}
}

// ListTests godoc
// @Summary List tests
// @Tags Assessments
// @Produce json
// @Param course_id query string false "Course"
// @Param batch_id query string false "Batch"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /tests [get]
func (h *AssessmentHandler) ListTests(c *gin.Context) {
	filter := models.CatalogFilter{CourseID: c.Query("course_id"), BatchID: c.Query("batch_id")}
	tests, err := h.assessments.ListTests(c.Request.Context(), filter, identityFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tests, nil)
}

// CreateTest godoc
// @Summary Create test
// @Tags Assessments
// @Accept json
// @Produce json
// @Param payload body models.TestRequest true "Test"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /tests [post]
func (h *AssessmentHandler) CreateTest(c *gin.Context) {
	var req models.TestRequest
	if !bindJSON(c, &req, "invalid test payload") {
		return
	}
	test, err := h.assessments.CreateTest(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, test)
}

// UpdateTest godoc
// @Summary Update test
// @Tags Assessments
// @Accept json
// @Produce json
// @Param id path string true "Test ID"
// @Param payload body models.TestRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /tests/{id} [put]
func (h *AssessmentHandler) UpdateTest(c *gin.Context) {
	var req models.TestRequest
	if !bindJSON(c, &req, "invalid test payload") {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	test, err := h.assessments.UpdateTest(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, test, nil)
}

// DeleteTest godoc
// @Summary Delete test
// @Tags Assessments
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /tests/{id} [delete]
func (h *AssessmentHandler) DeleteTest(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.assessments.DeleteTest(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "test deleted")
}

// ListMarks godoc
// @Summary List marks for a test
// @Description Students only receive their own mark
// @Tags Assessments
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /tests/{id}/marks [get]
func (h *AssessmentHandler) ListMarks(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	marks, err := h.assessments.ListMarks(c.Request.Context(), id, identityFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, marks, nil)
}

// RecordMark godoc
// @Summary Record a mark
// @Description Creates or replaces a student's mark for the test
// @Tags Assessments
// @Accept json
// @Produce json
// @Param id path string true "Test ID"
// @Param payload body models.MarkRequest true "Mark"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /tests/{id}/marks [post]
func (h *AssessmentHandler) RecordMark(c *gin.Context) {
	var req models.MarkRequest
	if !bindJSON(c, &req, "invalid mark payload") {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	mark, err := h.assessments.RecordMark(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mark, nil)
}
