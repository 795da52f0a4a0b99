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

const testSelect = `SELECT t.id, t.name, t.course_id, c.name AS course_name, t.batch_id, b.name AS batch_name, t.max_marks, t.passing_marks,
        t.test_date, t.description, t.is_active, t.created_at, t.updated_at
        FROM tests t LEFT JOIN courses c ON c.id = t.course_id LEFT JOIN batches b ON b.id = t.batch_id`

// AssessmentRepository persists tests and the marks recorded against them.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository constructs an AssessmentRepository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// ListTests returns tests ordered by date.
func (r *AssessmentRepository) ListTests(ctx context.Context, filter models.CatalogFilter) ([]models.Test, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.ActiveOnly {
		conditions = append(conditions, "t.is_active = TRUE")
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("t.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("t.batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	query := fmt.Sprintf("%s WHERE %s ORDER BY t.test_date DESC NULLS LAST, t.created_at DESC", testSelect, strings.Join(conditions, " AND "))
	var tests []models.Test
	if err := r.db.SelectContext(ctx, &tests, query, args...); err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	return tests, nil
}

// FindTest returns one test.
func (r *AssessmentRepository) FindTest(ctx context.Context, id string) (*models.Test, error) {
	var test models.Test
	if err := r.db.GetContext(ctx, &test, testSelect+` WHERE t.id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find test: %w", err)
	}
	return &test, nil
}

// CreateTest inserts a test.
func (r *AssessmentRepository) CreateTest(ctx context.Context, test *models.Test) error {
	if test.ID == "" {
		test.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	test.CreatedAt, test.UpdatedAt = now, now
	const query = `INSERT INTO tests (id, name, course_id, batch_id, max_marks, passing_marks, test_date, description, is_active, created_at, updated_at)
        VALUES (:id, :name, :course_id, :batch_id, :max_marks, :passing_marks, :test_date, :description, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, test); err != nil {
		return fmt.Errorf("create test: %w", err)
	}
	return nil
}

// UpdateTest writes every mutable column of a test.
func (r *AssessmentRepository) UpdateTest(ctx context.Context, test *models.Test) error {
	test.UpdatedAt = time.Now().UTC()
	const query = `UPDATE tests SET name = :name, course_id = :course_id, batch_id = :batch_id, max_marks = :max_marks,
        passing_marks = :passing_marks, test_date = :test_date, description = :description, is_active = :is_active,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, test); err != nil {
		return fmt.Errorf("update test: %w", err)
	}
	return nil
}

// DeleteTest removes a test; its marks cascade.
func (r *AssessmentRepository) DeleteTest(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "tests", id)
}

// ListMarks returns marks for a test. A non-empty ownerUserID limits rows to that user's student records.
func (r *AssessmentRepository) ListMarks(ctx context.Context, testID, ownerUserID string) ([]models.Mark, error) {
	query := `SELECT m.id, m.student_id, m.test_id, m.marks_obtained, m.remarks, s.full_name AS student_name, s.enrollment_number,
        m.created_at, m.updated_at
        FROM marks m JOIN students s ON s.id = m.student_id WHERE m.test_id = $1`
	args := []interface{}{testID}
	if ownerUserID != "" {
		query += ` AND s.user_id = $2`
		args = append(args, ownerUserID)
	}
	query += ` ORDER BY s.full_name`
	var marks []models.Mark
	if err := r.db.SelectContext(ctx, &marks, query, args...); err != nil {
		return nil, fmt.Errorf("list marks: %w", err)
	}
	return marks, nil
}

// UpsertMark inserts or replaces the mark for a (student, test) pair.
func (r *AssessmentRepository) UpsertMark(ctx context.Context, mark *models.Mark) error {
	if mark.ID == "" {
		mark.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	mark.CreatedAt, mark.UpdatedAt = now, now
	const query = `INSERT INTO marks (id, student_id, test_id, marks_obtained, remarks, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (student_id, test_id) DO UPDATE SET marks_obtained = EXCLUDED.marks_obtained, remarks = EXCLUDED.remarks, updated_at = EXCLUDED.updated_at
        RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query, mark.ID, mark.StudentID, mark.TestID, mark.MarksObtained, mark.Remarks, mark.CreatedAt, mark.UpdatedAt)
	if err := row.Scan(&mark.ID, &mark.CreatedAt); err != nil {
		return fmt.Errorf("upsert mark: %w", err)
	}
	return nil
}
