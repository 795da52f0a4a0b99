package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-compass-api/internal/models"
	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
)

type enquiryRepository interface {
	Create(ctx context.Context, enquiry *models.Enquiry) error
	List(ctx context.Context, filter models.EnquiryFilter) ([]models.Enquiry, int, error)
	UpdateStatus(ctx context.Context, id string, status models.EnquiryStatus) (*models.Enquiry, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// EnquiryService accepts contact form submissions and tracks their follow-up.
type EnquiryService struct {
	repo      enquiryRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnquiryService constructs an EnquiryService.
func NewEnquiryService(repo enquiryRepository, validate *validator.Validate, logger *zap.Logger) *EnquiryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnquiryService{repo: repo, validator: validate, logger: logger}
}

// Submit stores a new enquiry.
func (s *EnquiryService) Submit(ctx context.Context, req models.EnquiryRequest) (*models.Enquiry, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "name and a valid email are required")
	}
	enquiry := &models.Enquiry{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          trimmed(req.Phone),
		CourseInterest: trimmed(req.CourseInterest),
		Message:        trimmed(req.Message),
		Status:         models.EnquiryStatusNew,
	}
	if err := s.repo.Create(ctx, enquiry); err != nil {
		return nil, storeError(err, "failed to submit enquiry")
	}
	s.logger.Info("enquiry received", zap.String("enquiry_id", enquiry.ID))
	return enquiry, nil
}

// List returns a page of enquiries.
func (s *EnquiryService) List(ctx context.Context, filter models.EnquiryFilter) ([]models.Enquiry, *models.Pagination, error) {
	enquiries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, storeError(err, "failed to list enquiries")
	}
	if enquiries == nil {
		enquiries = []models.Enquiry{}
	}
	return enquiries, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// UpdateStatus moves an enquiry to another follow-up state.
func (s *EnquiryService) UpdateStatus(ctx context.Context, id string, req models.EnquiryStatusRequest) (*models.Enquiry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "status must be one of new, contacted, converted, closed")
	}
	enquiry, err := s.repo.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enquiry not found")
		}
		return nil, storeError(err, "failed to update enquiry")
	}
	return enquiry, nil
}

// Delete removes an enquiry.
func (s *EnquiryService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return storeError(err, "failed to delete enquiry")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "enquiry not found")
	}
	return nil
}
