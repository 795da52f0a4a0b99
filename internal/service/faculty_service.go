package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-compass-api/internal/models"
	"github.com/noah-isme/institute-compass-api/pkg/database"
	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
)

type facultyRepository interface {
	List(ctx context.Context, filter models.CatalogFilter) ([]models.Faculty, error)
	FindByID(ctx context.Context, id string) (*models.Faculty, error)
	Create(ctx context.Context, member *models.Faculty) error
	Update(ctx context.Context, member *models.Faculty) error
	Delete(ctx context.Context, id string) (bool, error)
}

// FacultyService manages faculty profiles. Non-staff callers get the public view.
type FacultyService struct {
	repo      facultyRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFacultyService constructs a FacultyService.
func NewFacultyService(repo facultyRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *FacultyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FacultyService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns faculty profiles.
func (s *FacultyService) List(ctx context.Context, caller *models.Identity) ([]models.Faculty, bool, error) {
	staff := caller.IsStaff()
	load := func() ([]models.Faculty, error) {
		members, err := s.repo.List(ctx, models.CatalogFilter{ActiveOnly: !staff})
		if err != nil {
			return nil, storeError(err, "failed to list faculty")
		}
		out := make([]models.Faculty, 0, len(members))
		for _, m := range members {
			if !staff {
				m = m.Public()
			}
			out = append(out, m)
		}
		return out, nil
	}
	if staff {
		members, err := load()
		return members, false, err
	}
	return Cached(ctx, s.cache, s.cache.Key(CacheGroupFaculty, "public"), load)
}

// Get returns one faculty profile.
func (s *FacultyService) Get(ctx context.Context, id string, caller *models.Identity) (*models.Faculty, error) {
	member, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.IsStaff() {
		return member, nil
	}
	if !member.IsActive {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
	}
	public := member.Public()
	return &public, nil
}

// Create adds a faculty profile.
func (s *FacultyService) Create(ctx context.Context, req models.FacultyRequest) (*models.Faculty, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid faculty payload")
	}
	if req.FullName == nil || strings.TrimSpace(*req.FullName) == "" || req.Email == nil || strings.TrimSpace(*req.Email) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name and email are required")
	}
	member := &models.Faculty{IsActive: true}
	if err := applyFacultyPatch(member, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, member); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "faculty email already registered")
		}
		return nil, storeError(err, "failed to create faculty")
	}
	s.cache.Invalidate(ctx, CacheGroupFaculty)
	return member, nil
}

// Update patches a faculty profile.
func (s *FacultyService) Update(ctx context.Context, id string, req models.FacultyRequest) (*models.Faculty, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid faculty payload")
	}
	member, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyFacultyPatch(member, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, member); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "faculty email already registered")
		}
		return nil, storeError(err, "failed to update faculty")
	}
	s.cache.Invalidate(ctx, CacheGroupFaculty)
	return member, nil
}

// Delete removes a faculty profile.
func (s *FacultyService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return storeError(err, "failed to delete faculty")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
	}
	s.cache.Invalidate(ctx, CacheGroupFaculty)
	return nil
}

func (s *FacultyService) find(ctx context.Context, id string) (*models.Faculty, error) {
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return nil, storeError(err, "failed to load faculty")
	}
	return member, nil
}

func applyFacultyPatch(m *models.Faculty, req models.FacultyRequest) error {
	if req.FullName != nil {
		m.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Email != nil {
		m.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		m.Phone = trimmed(req.Phone)
	}
	if req.Qualification != nil {
		m.Qualification = trimmed(req.Qualification)
	}
	if req.Specialization != nil {
		m.Specialization = trimmed(req.Specialization)
	}
	if req.ExperienceYears != nil {
		m.ExperienceYears = *req.ExperienceYears
	}
	if req.JoiningDate != nil {
		m.JoiningDate = req.JoiningDate
	}
	if req.Salary != nil {
		if err := validateMoney("salary", *req.Salary); err != nil {
			return err
		}
		salary := *req.Salary
		m.Salary = &salary
	}
	if req.Address != nil {
		m.Address = trimmed(req.Address)
	}
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}
	if req.Bio != nil {
		m.Bio = trimmed(req.Bio)
	}
	if req.AvatarURL != nil {
		m.AvatarURL = trimmed(req.AvatarURL)
	}
	return nil
}
