package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-compass-api/internal/models"
	"github.com/noah-isme/institute-compass-api/pkg/database"
	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ExistsByEnrollmentNumber(ctx context.Context, number string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, id string, apply func(*models.Student) error) (*models.Student, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, storeError(err, "failed to list students")
	}
	if students == nil {
		students = []models.StudentDetail{}
	}
	return students, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns detailed student information to staff or the linked account.
func (s *StudentService) Get(ctx context.Context, id string, caller *models.Identity) (*models.StudentDetail, error) {
	student, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSeeStudent(caller, &student.Student) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied")
	}
	return student, nil
}

// Create enrols a new student with nothing paid yet.
func (s *StudentService) Create(ctx context.Context, req models.CreateStudentRequest) (*models.StudentDetail, error) {
	req.EnrollmentNumber = strings.TrimSpace(req.EnrollmentNumber)
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	if err := validateMoney("total_fee", req.TotalFee); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueEnrollment(ctx, req.EnrollmentNumber, ""); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.StudentStatusActive
	}
	student := &models.Student{
		EnrollmentNumber: req.EnrollmentNumber,
		FullName:         req.FullName,
		Email:            req.Email,
		Phone:            trimmed(req.Phone),
		Address:          trimmed(req.Address),
		DateOfBirth:      req.DateOfBirth,
		GuardianName:     trimmed(req.GuardianName),
		GuardianPhone:    trimmed(req.GuardianPhone),
		CourseID:         req.CourseID,
		BatchID:          req.BatchID,
		Status:           status,
		TotalFee:         req.TotalFee,
		PaidFee:          decimal.Zero,
		FeeStatus:        models.DeriveFeeStatus(decimal.Zero, req.TotalFee),
		Notes:            trimmed(req.Notes),
		UserID:           req.UserID,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment number already used")
		}
		if database.IsForeignKeyViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "course, batch or user does not exist")
		}
		return nil, storeError(err, "failed to create student")
	}
	s.logger.Info("student created", zap.String("student_id", student.ID), zap.String("enrollment_number", student.EnrollmentNumber))
	return s.find(ctx, student.ID)
}

// Update patches a student. Changing total_fee re-derives fee_status from the stored paid_fee.
func (s *StudentService) Update(ctx context.Context, id string, req models.UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	if req.TotalFee != nil {
		if err := validateMoney("total_fee", *req.TotalFee); err != nil {
			return nil, err
		}
	}
	if req.EnrollmentNumber != nil {
		number := strings.TrimSpace(*req.EnrollmentNumber)
		req.EnrollmentNumber = &number
		if err := s.ensureUniqueEnrollment(ctx, number, id); err != nil {
			return nil, err
		}
	}

	_, err := s.repo.Update(ctx, id, func(st *models.Student) error {
		applyStudentPatch(st, req)
		status := models.NextFeeStatus(st.FeeStatus, st.PaidFee, st.TotalFee)
		if req.FeeStatus != nil {
			status = models.DeriveFeeStatus(st.PaidFee, st.TotalFee)
			if *req.FeeStatus == models.FeeStatusOverdue {
				if status == models.FeeStatusPaid {
					return appErrors.Clone(appErrors.ErrValidation, "a fully paid fee cannot be overdue")
				}
				status = models.FeeStatusOverdue
			}
		}
		st.FeeStatus = status
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		case database.IsUniqueViolation(err):
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment number already used")
		case database.IsForeignKeyViolation(err):
			return nil, appErrors.Clone(appErrors.ErrValidation, "course, batch or user does not exist")
		}
		return nil, storeError(err, "failed to update student")
	}
	return s.find(ctx, id)
}

// Delete removes a student together with their payments and marks.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return storeError(err, "failed to delete student")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	s.logger.Info("student deleted", zap.String("student_id", id))
	return nil
}

func (s *StudentService) find(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, storeError(err, "failed to load student")
	}
	return student, nil
}

func (s *StudentService) ensureUniqueEnrollment(ctx context.Context, number, excludeID string) error {
	exists, err := s.repo.ExistsByEnrollmentNumber(ctx, number, excludeID)
	if err != nil {
		return storeError(err, "failed to validate enrollment number")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "enrollment number already used")
	}
	return nil
}

func applyStudentPatch(st *models.Student, req models.UpdateStudentRequest) {
	if req.EnrollmentNumber != nil {
		st.EnrollmentNumber = *req.EnrollmentNumber
	}
	if req.FullName != nil {
		st.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Email != nil {
		st.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		st.Phone = trimmed(req.Phone)
	}
	if req.Address != nil {
		st.Address = trimmed(req.Address)
	}
	if req.DateOfBirth != nil {
		st.DateOfBirth = req.DateOfBirth
	}
	if req.GuardianName != nil {
		st.GuardianName = trimmed(req.GuardianName)
	}
	if req.GuardianPhone != nil {
		st.GuardianPhone = trimmed(req.GuardianPhone)
	}
	if req.CourseID != nil {
		st.CourseID = req.CourseID
	}
	if req.BatchID != nil {
		st.BatchID = req.BatchID
	}
	if req.Status != nil {
		st.Status = *req.Status
	}
	if req.TotalFee != nil {
		st.TotalFee = *req.TotalFee
	}
	if req.Notes != nil {
		st.Notes = trimmed(req.Notes)
	}
	if req.UserID != nil {
		st.UserID = req.UserID
	}
}

// validateMoney accepts non-negative amounts that fit NUMERIC(12,2).
func validateMoney(field string, v decimal.Decimal) error {
	switch {
	case v.IsNegative():
		return appErrors.Clone(appErrors.ErrValidation, field+" cannot be negative")
	case !v.Equal(v.Round(2)):
		return appErrors.Clone(appErrors.ErrValidation, field+" supports at most two decimal places")
	case v.GreaterThanOrEqual(maxPayment):
		return appErrors.Clone(appErrors.ErrValidation, field+" is too large")
	}
	return nil
}
