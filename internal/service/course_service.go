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
	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
)

const (
	defaultCourseMonths  = 12
	defaultBatchCapacity = 30
)

type courseRepository interface {
	List(ctx context.Context, filter models.CatalogFilter) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) (bool, error)
}

// CourseService manages the course catalogue. Public listings are cached.
type CourseService struct {
	repo      courseRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns every course to staff and only active courses to everyone else.
// The bool reports whether the listing came from cache.
func (s *CourseService) List(ctx context.Context, caller *models.Identity) ([]models.Course, bool, error) {
	filter := models.CatalogFilter{ActiveOnly: !caller.IsStaff()}
	load := func() ([]models.Course, error) {
		courses, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, storeError(err, "failed to list courses")
		}
		if courses == nil {
			courses = []models.Course{}
		}
		return courses, nil
	}
	if !filter.ActiveOnly {
		courses, err := load()
		return courses, false, err
	}
	return Cached(ctx, s.cache, s.cache.Key(CacheGroupCourses, "public"), load)
}

// Get returns one course. Inactive courses are hidden from non-staff.
func (s *CourseService) Get(ctx context.Context, id string, caller *models.Identity) (*models.Course, error) {
	course, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !course.IsActive && !caller.IsStaff() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return course, nil
}

// Create adds a course.
func (s *CourseService) Create(ctx context.Context, req models.CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course payload")
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course name is required")
	}
	course := &models.Course{DurationMonths: defaultCourseMonths, FeeAmount: decimal.Zero, IsActive: true}
	if err := applyCoursePatch(course, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, storeError(err, "failed to create course")
	}
	s.cache.Invalidate(ctx, CacheGroupCourses)
	return course, nil
}

// Update patches a course.
func (s *CourseService) Update(ctx context.Context, id string, req models.CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course payload")
	}
	course, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyCoursePatch(course, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, storeError(err, "failed to update course")
	}
	s.cache.Invalidate(ctx, CacheGroupCourses)
	s.cache.Invalidate(ctx, CacheGroupBatches)
	return course, nil
}

// Delete removes a course. Students and batches keep existing without it.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return storeError(err, "failed to delete course")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	s.cache.Invalidate(ctx, CacheGroupCourses)
	s.cache.Invalidate(ctx, CacheGroupBatches)
	s.logger.Info("course deleted", zap.String("course_id", id))
	return nil
}

func (s *CourseService) find(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, storeError(err, "failed to load course")
	}
	return course, nil
}

func applyCoursePatch(course *models.Course, req models.CourseRequest) error {
	if req.Name != nil {
		course.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		course.Description = trimmed(req.Description)
	}
	if req.DurationMonths != nil {
		course.DurationMonths = *req.DurationMonths
	}
	if req.FeeAmount != nil {
		if err := validateMoney("fee_amount", *req.FeeAmount); err != nil {
			return err
		}
		course.FeeAmount = *req.FeeAmount
	}
	if req.ImageURL != nil {
		course.ImageURL = trimmed(req.ImageURL)
	}
	if req.IsActive != nil {
		course.IsActive = *req.IsActive
	}
	return nil
}

type batchRepository interface {
	List(ctx context.Context, filter models.CatalogFilter) ([]models.Batch, error)
	FindByID(ctx context.Context, id string) (*models.Batch, error)
	Create(ctx context.Context, batch *models.Batch) error
	Update(ctx context.Context, batch *models.Batch) error
	Delete(ctx context.Context, id string) (bool, error)
}

// BatchService manages course batches.
type BatchService struct {
	repo      batchRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBatchService constructs a BatchService.
func NewBatchService(repo batchRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns batches, optionally for one course. Non-staff only see active batches.
func (s *BatchService) List(ctx context.Context, courseID string, caller *models.Identity) ([]models.Batch, bool, error) {
	filter := models.CatalogFilter{ActiveOnly: !caller.IsStaff(), CourseID: strings.TrimSpace(courseID)}
	load := func() ([]models.Batch, error) {
		batches, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, storeError(err, "failed to list batches")
		}
		if batches == nil {
			batches = []models.Batch{}
		}
		return batches, nil
	}
	if !filter.ActiveOnly {
		batches, err := load()
		return batches, false, err
	}
	scope := filter.CourseID
	if scope == "" {
		scope = "all"
	}
	return Cached(ctx, s.cache, s.cache.Key(CacheGroupBatches, "public", scope), load)
}

// Get returns one batch.
func (s *BatchService) Get(ctx context.Context, id string) (*models.Batch, error) {
	batch, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, storeError(err, "failed to load batch")
	}
	return batch, nil
}

// Create adds a batch.
func (s *BatchService) Create(ctx context.Context, req models.BatchRequest) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid batch payload")
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch name is required")
	}
	batch := &models.Batch{Capacity: defaultBatchCapacity, IsActive: true}
	if err := applyBatchPatch(batch, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, batch); err != nil {
		return nil, storeError(err, "failed to create batch")
	}
	s.cache.Invalidate(ctx, CacheGroupBatches)
	return s.Get(ctx, batch.ID)
}

// Update patches a batch.
func (s *BatchService) Update(ctx context.Context, id string, req models.BatchRequest) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid batch payload")
	}
	batch, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyBatchPatch(batch, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, batch); err != nil {
		return nil, storeError(err, "failed to update batch")
	}
	s.cache.Invalidate(ctx, CacheGroupBatches)
	return s.Get(ctx, id)
}

// Delete removes a batch.
func (s *BatchService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return storeError(err, "failed to delete batch")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "batch not found")
	}
	s.cache.Invalidate(ctx, CacheGroupBatches)
	return nil
}

func applyBatchPatch(batch *models.Batch, req models.BatchRequest) error {
	if req.Name != nil {
		batch.Name = strings.TrimSpace(*req.Name)
	}
	if req.CourseID != nil {
		batch.CourseID = emptyToNil(*req.CourseID)
	}
	if req.StartDate != nil {
		batch.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		batch.EndDate = req.EndDate
	}
	if req.Capacity != nil {
		batch.Capacity = *req.Capacity
	}
	if req.IsActive != nil {
		batch.IsActive = *req.IsActive
	}
	if batch.StartDate != nil && batch.EndDate != nil && batch.EndDate.Before(batch.StartDate.Time) {
		return appErrors.Clone(appErrors.ErrValidation, "end_date must not precede start_date")
	}
	return nil
}
