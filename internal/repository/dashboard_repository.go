package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-compass-api/internal/models"
)

// DashboardRepository exposes read-only aggregate queries for the staff dashboard.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository instantiates the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// StudentBreakdown groups students by status and fee status with their fee sums.
func (r *DashboardRepository) StudentBreakdown(ctx context.Context) ([]models.StudentBreakdownRow, error) {
	const query = `SELECT status, fee_status, COUNT(*) AS count,
        COALESCE(SUM(total_fee), 0) AS total_fee,
        COALESCE(SUM(paid_fee), 0) AS paid_fee,
        COALESCE(SUM(GREATEST(total_fee - paid_fee, 0)), 0) AS outstanding
        FROM students GROUP BY status, fee_status`
	var rows []models.StudentBreakdownRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("query student breakdown: %w", err)
	}
	return rows, nil
}

// CatalogCounts counts active courses, batches, faculty and tests in one round trip.
func (r *DashboardRepository) CatalogCounts(ctx context.Context) (*models.CatalogCounts, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM courses WHERE is_active = TRUE) AS active_courses,
        (SELECT COUNT(*) FROM batches WHERE is_active = TRUE) AS active_batches,
        (SELECT COUNT(*) FROM faculty WHERE is_active = TRUE) AS active_faculty,
        (SELECT COUNT(*) FROM tests WHERE is_active = TRUE) AS active_tests`
	var counts models.CatalogCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("query catalog counts: %w", err)
	}
	return &counts, nil
}

// EnquiryCounts groups enquiries by follow-up status.
func (r *DashboardRepository) EnquiryCounts(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM enquiries GROUP BY status`
	var rows []models.StatusCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("query enquiry counts: %w", err)
	}
	return rows, nil
}

// MonthlyCollections sums payments per month from since onwards, oldest first.
func (r *DashboardRepository) MonthlyCollections(ctx context.Context, since models.Date) ([]models.MonthlyCollection, error) {
	const query = `SELECT to_char(date_trunc('month', payment_date), 'YYYY-MM') AS month,
        SUM(amount) AS amount, COUNT(*) AS payments
        FROM fee_payments WHERE payment_date >= $1
        GROUP BY 1 ORDER BY 1`
	var rows []models.MonthlyCollection
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("query monthly collections: %w", err)
	}
	return rows, nil
}
