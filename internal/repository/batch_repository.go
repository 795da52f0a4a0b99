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

const batchSelect = `SELECT b.id, b.name, b.course_id, c.name AS course_name, b.start_date, b.end_date, b.capacity, b.is_active, b.created_at, b.updated_at
        FROM batches b LEFT JOIN courses c ON c.id = b.course_id`

// BatchRepository persists batches.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository constructs a BatchRepository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// List returns batches with their course name.
func (r *BatchRepository) List(ctx context.Context, filter models.CatalogFilter) ([]models.Batch, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.ActiveOnly {
		conditions = append(conditions, "b.is_active = TRUE")
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("b.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	query := fmt.Sprintf("%s WHERE %s ORDER BY b.created_at DESC", batchSelect, strings.Join(conditions, " AND "))
	var batches []models.Batch
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}

// FindByID returns a batch.
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, batchSelect+` WHERE b.id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find batch: %w", err)
	}
	return &batch, nil
}

// Create inserts a batch.
func (r *BatchRepository) Create(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	batch.CreatedAt, batch.UpdatedAt = now, now
	const query = `INSERT INTO batches (id, name, course_id, start_date, end_date, capacity, is_active, created_at, updated_at)
        VALUES (:id, :name, :course_id, :start_date, :end_date, :capacity, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// Update writes every mutable column of a batch.
func (r *BatchRepository) Update(ctx context.Context, batch *models.Batch) error {
	batch.UpdatedAt = time.Now().UTC()
	const query = `UPDATE batches SET name = :name, course_id = :course_id, start_date = :start_date, end_date = :end_date,
        capacity = :capacity, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	return nil
}

// Delete removes a batch.
func (r *BatchRepository) Delete(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "batches", id)
}
