package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-compass-api/internal/models"
)

const profileColumns = `id, email, password_hash, full_name, phone, avatar_url, token_version, created_at, updated_at`

// UserRepository provides database access for identities and their roles.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// Roles returns the role set of one user.
func (r *UserRepository) Roles(ctx context.Context, userID string) (models.RoleSet, error) {
	const query = `SELECT role FROM user_roles WHERE user_id = $1`
	var roles []models.Role
	if err := r.db.SelectContext(ctx, &roles, query, userID); err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	return models.NewRoleSet(roles...), nil
}

// RolesFor loads the role sets of several users in one query.
func (r *UserRepository) RolesFor(ctx context.Context, userIDs []string) (map[string]models.RoleSet, error) {
	out := make(map[string]models.RoleSet, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT user_id, role FROM user_roles WHERE user_id IN (?)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("build roles query: %w", err)
	}
	var rows []models.UserRole
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list roles for users: %w", err)
	}
	for _, row := range rows {
		set, ok := out[row.UserID]
		if !ok {
			set = models.RoleSet{}
			out[row.UserID] = set
		}
		set[row.Role] = struct{}{}
	}
	return out, nil
}

// CreateWithRole inserts a profile together with its first role in one transaction.
func (r *UserRepository) CreateWithRole(ctx context.Context, user *models.User, role models.Role) (err error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.TokenVersion == 0 {
		user.TokenVersion = 1
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertProfile = `INSERT INTO profiles (id, email, password_hash, full_name, phone, avatar_url, token_version, created_at, updated_at)
VALUES (:id, :email, :password_hash, :full_name, :phone, :avatar_url, :token_version, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertProfile, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	const insertRole = `INSERT INTO user_roles (id, user_id, role) VALUES ($1, $2, $3)`
	if _, err = tx.ExecContext(ctx, insertRole, uuid.NewString(), user.ID, role); err != nil {
		return fmt.Errorf("assign initial role: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create user: %w", err)
	}
	user.Roles = models.NewRoleSet(role)
	return nil
}

// UpdateProfile updates the mutable profile fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE profiles SET full_name = :full_name, phone = :phone, avatar_url = :avatar_url, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// UpdatePassword stores a new hash and bumps token_version, returning the new version.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) (int, error) {
	const query = `UPDATE profiles SET password_hash = $2, token_version = token_version + 1, updated_at = $3 WHERE id = $1 RETURNING token_version`
	var version int
	if err := r.db.GetContext(ctx, &version, query, id, passwordHash, updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("update password: %w", err)
	}
	return version, nil
}

// List returns users based on filters with total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery := `FROM profiles p WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM user_roles ur WHERE ur.user_id = p.id AND ur.role = $%d)", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(p.email) LIKE $%d OR LOWER(p.full_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page, pageSize := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT p.id, p.email, p.password_hash, p.full_name, p.phone, p.avatar_url, p.token_version, p.created_at, p.updated_at %s ORDER BY p.created_at DESC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

// AddRole attaches a role. A duplicate surfaces as a unique violation.
func (r *UserRepository) AddRole(ctx context.Context, userID string, role models.Role) (*models.UserRole, error) {
	row := &models.UserRole{ID: uuid.NewString(), UserID: userID, Role: role}
	const query = `INSERT INTO user_roles (id, user_id, role) VALUES (:id, :user_id, :role)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return nil, fmt.Errorf("add role: %w", err)
	}
	return row, nil
}

// RemoveRole detaches a role and reports whether it was present.
func (r *UserRepository) RemoveRole(ctx context.Context, userID string, role models.Role) (bool, error) {
	const query = `DELETE FROM user_roles WHERE user_id = $1 AND role = $2`
	res, err := r.db.ExecContext(ctx, query, userID, role)
	if err != nil {
		return false, fmt.Errorf("remove role: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove role rows: %w", err)
	}
	return affected > 0, nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, request_id, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :request_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
