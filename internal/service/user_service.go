package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-compass-api/internal/models"
	"github.com/noah-isme/institute-compass-api/pkg/database"
	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Roles(ctx context.Context, userID string) (models.RoleSet, error)
	RolesFor(ctx context.Context, userIDs []string) (map[string]models.RoleSet, error)
	AddRole(ctx context.Context, userID string, role models.Role) (*models.UserRole, error)
	RemoveRole(ctx context.Context, userID string, role models.Role) (bool, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UserService handles user listing and role administration.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated users with their roles.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid role filter")
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, storeError(err, "failed to list users")
	}

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	roles, err := s.repo.RolesFor(ctx, ids)
	if err != nil {
		return nil, nil, storeError(err, "failed to load roles")
	}
	for i := range users {
		users[i].Roles = roles[users[i].ID]
		if users[i].Roles == nil {
			users[i].Roles = models.NewRoleSet()
		}
	}
	if users == nil {
		users = []models.User{}
	}
	return users, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Roles returns the roles held by a user.
func (s *UserService) Roles(ctx context.Context, userID string) ([]models.Role, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	roles, err := s.repo.Roles(ctx, userID)
	if err != nil {
		return nil, storeError(err, "failed to load roles")
	}
	return roles.Slice(), nil
}

// AddRole grants a role to a user.
func (s *UserService) AddRole(ctx context.Context, userID string, req models.RoleRequest, actorID string, meta models.RequestMeta) (*models.UserRole, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid role payload")
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid role")
	}
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	granted, err := s.repo.AddRole(ctx, userID, role)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "user already has role "+string(role))
		}
		if database.IsForeignKeyViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, storeError(err, "failed to add role")
	}

	s.logger.Info("role granted", zap.String("user_id", userID), zap.String("role", string(role)), zap.String("actor_id", actorID))
	s.audit(ctx, models.AuditActionRoleGrant, userID, role, actorID, meta)
	return granted, nil
}

// RemoveRole revokes a role from a user.
func (s *UserService) RemoveRole(ctx context.Context, userID, rawRole, actorID string, meta models.RequestMeta) error {
	role, ok := models.ParseRole(rawRole)
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "invalid role")
	}
	removed, err := s.repo.RemoveRole(ctx, userID, role)
	if err != nil {
		return storeError(err, "failed to remove role")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "role assignment not found")
	}

	s.logger.Info("role revoked", zap.String("user_id", userID), zap.String("role", string(role)), zap.String("actor_id", actorID))
	s.audit(ctx, models.AuditActionRoleRevoke, userID, role, actorID, meta)
	return nil
}

func (s *UserService) ensureUser(ctx context.Context, userID string) error {
	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return storeError(err, "failed to load user")
	}
	return nil
}

func (s *UserService) audit(ctx context.Context, action, userID string, role models.Role, actorID string, meta models.RequestMeta) {
	entry := models.NewAuditLog(action, "user_roles", meta).
		By(actorID).
		On(userID).
		With(map[string]string{"user_id": userID, "role": string(role)})
	entry.RequestID = requestIDFrom(ctx)
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record role audit log", zap.String("action", action), zap.Error(err))
	}
}
