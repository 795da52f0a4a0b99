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

const enquiryColumns = `id, name, email, phone, course_interest, message, status, created_at, updated_at`

// EnquiryRepository persists contact form submissions.
type EnquiryRepository struct {
	db *sqlx.DB
}

// NewEnquiryRepository constructs an EnquiryRepository.
func NewEnquiryRepository(db *sqlx.DB) *EnquiryRepository {
	return &EnquiryRepository{db: db}
}

// Create stores a new enquiry.
func (r *EnquiryRepository) Create(ctx context.Context, enquiry *models.Enquiry) error {
	if enquiry.ID == "" {
		enquiry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	enquiry.CreatedAt, enquiry.UpdatedAt = now, now
	const query = `INSERT INTO enquiries (id, name, email, phone, course_interest, message, status, created_at, updated_at)
        VALUES (:id, :name, :email, :phone, :course_interest, :message, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enquiry); err != nil {
		return fmt.Errorf("create enquiry: %w", err)
	}
	return nil
}

// List returns a page of enquiries newest first.
func (r *EnquiryRepository) List(ctx context.Context, filter models.EnquiryFilter) ([]models.Enquiry, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	if filter.Status != "" && filter.Status != "all" {
		where += " AND status = $1"
		args = append(args, filter.Status)
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM enquiries %s ORDER BY created_at DESC LIMIT %d OFFSET %d", enquiryColumns, where, size, (page-1)*size)
	var enquiries []models.Enquiry
	if err := r.db.SelectContext(ctx, &enquiries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enquiries: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM enquiries "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count enquiries: %w", err)
	}
	return enquiries, total, nil
}

// UpdateStatus sets the follow-up status and returns the updated row.
func (r *EnquiryRepository) UpdateStatus(ctx context.Context, id string, status models.EnquiryStatus) (*models.Enquiry, error) {
	query := `UPDATE enquiries SET status = $2, updated_at = $3 WHERE id = $1 RETURNING ` + enquiryColumns
	var enquiry models.Enquiry
	if err := r.db.GetContext(ctx, &enquiry, query, id, status, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update enquiry status: %w", err)
	}
	return &enquiry, nil
}

// Delete removes an enquiry.
func (r *EnquiryRepository) Delete(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "enquiries", id)
}
