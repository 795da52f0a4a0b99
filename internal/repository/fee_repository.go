package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/institute-compass-api/internal/models"
)

const paymentColumns = `fp.id, fp.student_id, fp.amount, fp.payment_date, fp.payment_method, fp.receipt_number, fp.notes, fp.created_by, fp.created_at,
        s.full_name AS student_name, s.enrollment_number`

// FeeRepository persists fee payments and keeps students.paid_fee in step with them.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs a FeeRepository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// RecordPayment inserts a payment and recomputes the student's ledger in one transaction.
// sql.ErrNoRows means the student does not exist.
func (r *FeeRepository) RecordPayment(ctx context.Context, payment *models.Payment) (snapshot *models.LedgerSnapshot, err error) {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin record payment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if snapshot, err = lockLedger(ctx, tx, payment.StudentID); err != nil {
		return nil, err
	}

	const insertQuery = `INSERT INTO fee_payments (id, student_id, amount, payment_date, payment_method, receipt_number, notes, created_by, created_at)
        VALUES (:id, :student_id, :amount, :payment_date, :payment_method, :receipt_number, :notes, :created_by, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, payment); err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	if err = recomputeLedger(ctx, tx, snapshot); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit record payment: %w", err)
	}
	return snapshot, nil
}

// DeletePayment removes a payment and recomputes the owning student's ledger.
// sql.ErrNoRows means the payment does not exist.
func (r *FeeRepository) DeletePayment(ctx context.Context, id string) (payment *models.Payment, snapshot *models.LedgerSnapshot, err error) {
	var studentID string
	if err = r.db.GetContext(ctx, &studentID, `SELECT student_id FROM fee_payments WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("find payment: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin delete payment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if snapshot, err = lockLedger(ctx, tx, studentID); err != nil {
		return nil, nil, err
	}

	var deleted models.Payment
	const deleteQuery = `DELETE FROM fee_payments WHERE id = $1 AND student_id = $2
        RETURNING id, student_id, amount, payment_date, payment_method, receipt_number, notes, created_by, created_at`
	if err = tx.GetContext(ctx, &deleted, deleteQuery, id, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("delete payment: %w", err)
	}

	if err = recomputeLedger(ctx, tx, snapshot); err != nil {
		return nil, nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit delete payment: %w", err)
	}
	return &deleted, snapshot, nil
}

func lockLedger(ctx context.Context, tx *sqlx.Tx, studentID string) (*models.LedgerSnapshot, error) {
	var snapshot models.LedgerSnapshot
	const query = `SELECT id, total_fee, paid_fee, fee_status FROM students WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &snapshot, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock student ledger: %w", err)
	}
	return &snapshot, nil
}

// recomputeLedger sets paid_fee to the sum of surviving payments and re-derives the status.
func recomputeLedger(ctx context.Context, tx *sqlx.Tx, snapshot *models.LedgerSnapshot) error {
	var sum decimal.Decimal
	const sumQuery = `SELECT COALESCE(SUM(amount), 0) FROM fee_payments WHERE student_id = $1`
	if err := tx.GetContext(ctx, &sum, sumQuery, snapshot.StudentID); err != nil {
		return fmt.Errorf("sum payments: %w", err)
	}
	if sum.IsNegative() {
		sum = decimal.Zero
	}
	snapshot.PaidFee = sum
	snapshot.FeeStatus = models.NextFeeStatus(snapshot.FeeStatus, sum, snapshot.TotalFee)
	snapshot.Balance = decimal.Max(snapshot.TotalFee.Sub(sum), decimal.Zero)

	const updateQuery = `UPDATE students SET paid_fee = $2, fee_status = $3, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateQuery, snapshot.StudentID, snapshot.PaidFee, snapshot.FeeStatus, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student ledger: %w", err)
	}
	return nil
}

func paymentConditions(filter models.PaymentFilter) (string, []interface{}) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("fp.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("fp.payment_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("fp.payment_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	return "FROM fee_payments fp JOIN students s ON s.id = fp.student_id WHERE " + strings.Join(conditions, " AND "), args
}

// List returns a page of payments newest first.
func (r *FeeRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	base, args := paymentConditions(filter)
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY fp.payment_date DESC, fp.created_at DESC LIMIT %d OFFSET %d", paymentColumns, base, size, offset)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// ListAll returns every payment matching the filter, ignoring paging.
func (r *FeeRepository) ListAll(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	base, args := paymentConditions(filter)
	query := fmt.Sprintf("SELECT %s %s ORDER BY fp.payment_date DESC, fp.created_at DESC", paymentColumns, base)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, fmt.Errorf("list all payments: %w", err)
	}
	return payments, nil
}

// FindByID fetches one payment with the student's name.
func (r *FeeRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM fee_payments fp JOIN students s ON s.id = fp.student_id WHERE fp.id = $1", paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return &payment, nil
}
