package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-compass-api/internal/models"
)

const facultyColumns = `id, full_name, email, phone, qualification, specialization, experience_years, joining_date, salary, address,
        is_active, bio, avatar_url, created_at, updated_at`

// FacultyRepository persists faculty profiles.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository constructs a FacultyRepository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

// List returns faculty newest first.
func (r *FacultyRepository) List(ctx context.Context, filter models.CatalogFilter) ([]models.Faculty, error) {
	query := `SELECT ` + facultyColumns + ` FROM faculty`
	if filter.ActiveOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY created_at DESC`
	var faculty []models.Faculty
	if err := r.db.SelectContext(ctx, &faculty, query); err != nil {
		return nil, fmt.Errorf("list faculty: %w", err)
	}
	return faculty, nil
}

// FindByID returns one faculty profile.
func (r *FacultyRepository) FindByID(ctx context.Context, id string) (*models.Faculty, error) {
	var member models.Faculty
	if err := r.db.GetContext(ctx, &member, `SELECT `+facultyColumns+` FROM faculty WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find faculty: %w", err)
	}
	return &member, nil
}

// Create inserts a faculty profile.
func (r *FacultyRepository) Create(ctx context.Context, member *models.Faculty) error {
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	member.CreatedAt, member.UpdatedAt = now, now
	const query = `INSERT INTO faculty (id, full_name, email, phone, qualification, specialization, experience_years, joining_date, salary,
        address, is_active, bio, avatar_url, created_at, updated_at)
        VALUES (:id, :full_name, :email, :phone, :qualification, :specialization, :experience_years, :joining_date, :salary,
        :address, :is_active, :bio, :avatar_url, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, member); err != nil {
		return fmt.Errorf("create faculty: %w", err)
	}
	return nil
}

// Update writes every mutable column of a faculty profile.
func (r *FacultyRepository) Update(ctx context.Context, member *models.Faculty) error {
	member.UpdatedAt = time.Now().UTC()
	const query = `UPDATE faculty SET full_name = :full_name, email = :email, phone = :phone, qualification = :qualification,
        specialization = :specialization, experience_years = :experience_years, joining_date = :joining_date, salary = :salary,
        address = :address, is_active = :is_active, bio = :bio, avatar_url = :avatar_url, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, member); err != nil {
		return fmt.Errorf("update faculty: %w", err)
	}
	return nil
}

// Delete removes a faculty profile.
func (r *FacultyRepository) Delete(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "faculty", id)
}
