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

const studentColumns = `s.id, s.enrollment_number, s.full_name, s.email, s.phone, s.address, s.date_of_birth, s.guardian_name, s.guardian_phone,
        s.course_id, s.batch_id, s.status, s.total_fee, s.paid_fee, s.fee_status, s.notes, s.user_id, s.created_at, s.updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := "FROM students s LEFT JOIN courses c ON c.id = s.course_id LEFT JOIN batches b ON b.id = s.batch_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Status != "" && filter.Status != "all" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.FeeStatus != "" && filter.FeeStatus != "all" {
		conditions = append(conditions, fmt.Sprintf("s.fee_status = $%d", len(args)+1))
		args = append(args, filter.FeeStatus)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("s.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("s.batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.Search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR LOWER(s.email) LIKE $%d OR LOWER(s.enrollment_number) LIKE $%d)", n, n, n))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s, c.name AS course_name, b.name AS batch_name
        %s ORDER BY s.created_at DESC LIMIT %d OFFSET %d`, studentColumns, base, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student detail by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := `SELECT ` + studentColumns + `, c.name AS course_name, b.name AS batch_name
        FROM students s
        LEFT JOIN courses c ON c.id = s.course_id
        LEFT JOIN batches b ON b.id = s.batch_id
        WHERE s.id = $1`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &detail, nil
}

// ExistsByEnrollmentNumber checks if an enrollment number is taken, optionally excluding an ID.
func (r *StudentRepository) ExistsByEnrollmentNumber(ctx context.Context, number string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE enrollment_number = $1"
	args := []interface{}{number}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment number: %w", err)
	}
	return true, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, enrollment_number, full_name, email, phone, address, date_of_birth, guardian_name, guardian_phone,
        course_id, batch_id, status, total_fee, paid_fee, fee_status, notes, user_id, created_at, updated_at)
        VALUES (:id, :enrollment_number, :full_name, :email, :phone, :address, :date_of_birth, :guardian_name, :guardian_phone,
        :course_id, :batch_id, :status, :total_fee, :paid_fee, :fee_status, :notes, :user_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update locks the student row, lets apply mutate it and writes it back in one transaction.
// paid_fee is never written here; the fee ledger owns it.
func (r *StudentRepository) Update(ctx context.Context, id string, apply func(*models.Student) error) (student *models.Student, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update student: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Student
	selectQuery := `SELECT ` + studentColumns + ` FROM students s WHERE s.id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, selectQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock student: %w", err)
	}

	if err = apply(&current); err != nil {
		return nil, err
	}
	current.UpdatedAt = time.Now().UTC()

	const updateQuery = `UPDATE students SET enrollment_number = :enrollment_number, full_name = :full_name, email = :email, phone = :phone,
        address = :address, date_of_birth = :date_of_birth, guardian_name = :guardian_name, guardian_phone = :guardian_phone,
        course_id = :course_id, batch_id = :batch_id, status = :status, total_fee = :total_fee, fee_status = :fee_status,
        notes = :notes, user_id = :user_id, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, updateQuery, &current); err != nil {
		return nil, fmt.Errorf("update student: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update student: %w", err)
	}
	return &current, nil
}

// Delete removes a student; payments and marks cascade.
func (r *StudentRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete student rows: %w", err)
	}
	return affected > 0, nil
}
