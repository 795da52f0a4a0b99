package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-compass-api/internal/models"
	"github.com/noah-isme/institute-compass-api/pkg/database"
	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
)

const (
	defaultMaxMarks     = 100
	defaultPassingMarks = 40
)

type assessmentRepository interface {
	ListTests(ctx context.Context, filter models.CatalogFilter) ([]models.Test, error)
	FindTest(ctx context.Context, id string) (*models.Test, error)
	CreateTest(ctx context.Context, test *models.Test) error
	UpdateTest(ctx context.Context, test *models.Test) error
	DeleteTest(ctx context.Context, id string) (bool, error)
	ListMarks(ctx context.Context, testID, ownerUserID string) ([]models.Mark, error)
	UpsertMark(ctx context.Context, mark *models.Mark) error
}

// AssessmentService manages tests and the marks recorded against them.
type AssessmentService struct {
	repo      assessmentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssessmentService constructs an AssessmentService.
func NewAssessmentService(repo assessmentRepository, validate *validator.Validate, logger *zap.Logger) *AssessmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentService{repo: repo, validator: validate, logger: logger}
}

// ListTests returns tests; callers outside staff only see active ones.
func (s *AssessmentService) ListTests(ctx context.Context, filter models.CatalogFilter, caller *models.Identity) ([]models.Test, error) {
	filter.ActiveOnly = !caller.IsStaff()
	tests, err := s.repo.ListTests(ctx, filter)
	if err != nil {
		return nil, storeError(err, "failed to list tests")
	}
	if tests == nil {
		tests = []models.Test{}
	}
	return tests, nil
}

// CreateTest adds a test.
func (s *AssessmentService) CreateTest(ctx context.Context, req models.TestRequest) (*models.Test, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid test payload")
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "test name is required")
	}
	test := &models.Test{MaxMarks: defaultMaxMarks, PassingMarks: defaultPassingMarks, IsActive: true}
	if err := applyTestPatch(test, req); err != nil {
		return nil, err
	}
	if err := s.repo.CreateTest(ctx, test); err != nil {
		return nil, storeError(err, "failed to create test")
	}
	return s.findTest(ctx, test.ID)
}

// UpdateTest patches a test.
func (s *AssessmentService) UpdateTest(ctx context.Context, id string, req models.TestRequest) (*models.Test, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid test payload")
	}
	test, err := s.findTest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyTestPatch(test, req); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTest(ctx, test); err != nil {
		return nil, storeError(err, "failed to update test")
	}
	return s.findTest(ctx, id)
}

// DeleteTest removes a test and its marks.
func (s *AssessmentService) DeleteTest(ctx context.Context, id string) error {
	deleted, err := s.repo.DeleteTest(ctx, id)
	if err != nil {
		return storeError(err, "failed to delete test")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "test not found")
	}
	return nil
}

// ListMarks returns a test's marks. Non-staff callers only see marks of students linked to them.
func (s *AssessmentService) ListMarks(ctx context.Context, testID string, caller *models.Identity) ([]models.Mark, error) {
	if caller == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if _, err := s.findTest(ctx, testID); err != nil {
		return nil, err
	}
	owner := ""
	if !caller.IsStaff() {
		owner = caller.UserID
	}
	marks, err := s.repo.ListMarks(ctx, testID, owner)
	if err != nil {
		return nil, storeError(err, "failed to list marks")
	}
	if marks == nil {
		marks = []models.Mark{}
	}
	return marks, nil
}

// RecordMark inserts or replaces a student's mark for a test.
func (s *AssessmentService) RecordMark(ctx context.Context, testID string, req models.MarkRequest) (*models.Mark, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid mark payload")
	}
	test, err := s.findTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	obtained := *req.MarksObtained
	if obtained.IsNegative() || obtained.GreaterThan(decimal.NewFromInt(int64(test.MaxMarks))) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("marks must be between 0 and %d", test.MaxMarks))
	}

	mark := &models.Mark{StudentID: req.StudentID, TestID: testID, MarksObtained: obtained, Remarks: trimmed(req.Remarks)}
	if err := s.repo.UpsertMark(ctx, mark); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student not found")
		}
		return nil, storeError(err, "failed to record mark")
	}
	return mark, nil
}

func (s *AssessmentService) findTest(ctx context.Context, id string) (*models.Test, error) {
	test, err := s.repo.FindTest(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "test not found")
		}
		return nil, storeError(err, "failed to load test")
	}
	return test, nil
}

func applyTestPatch(t *models.Test, req models.TestRequest) error {
	if req.Name != nil {
		t.Name = strings.TrimSpace(*req.Name)
	}
	if req.CourseID != nil {
		t.CourseID = emptyToNil(*req.CourseID)
	}
	if req.BatchID != nil {
		t.BatchID = emptyToNil(*req.BatchID)
	}
	if req.MaxMarks != nil {
		t.MaxMarks = *req.MaxMarks
	}
	if req.PassingMarks != nil {
		t.PassingMarks = *req.PassingMarks
	}
	if req.TestDate != nil {
		t.TestDate = req.TestDate
	}
	if req.Description != nil {
		t.Description = trimmed(req.Description)
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if t.PassingMarks > t.MaxMarks {
		return appErrors.Clone(appErrors.ErrValidation, "passing_marks cannot exceed max_marks")
	}
	return nil
}
