package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-compass-api/internal/models"
)

func expectLedgerLock(mock sqlmock.Sqlmock, studentID, total, paid string, status models.FeeStatus) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, total_fee, paid_fee, fee_status FROM students WHERE id = $1 FOR UPDATE")).
		WithArgs(studentID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "total_fee", "paid_fee", "fee_status"}).AddRow(studentID, total, paid, string(status)))
}

func TestRecordPaymentRecomputesFromSum(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectBegin()
	expectLedgerLock(mock, "s1", "10000.00", "0.00", models.FeeStatusPending)
	mock.ExpectExec("INSERT INTO fee_payments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0) FROM fee_payments WHERE student_id = $1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("5000.00"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET paid_fee = $2, fee_status = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("s1", sqlmock.AnyArg(), string(models.FeeStatusPartial), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payment := &models.Payment{StudentID: "s1", Amount: decimal.NewFromInt(5000), PaymentDate: models.NewDate(time.Now())}
	snapshot, err := repo.RecordPayment(context.Background(), payment)
	require.NoError(t, err)
	assert.NotEmpty(t, payment.ID)
	assert.True(t, snapshot.PaidFee.Equal(decimal.NewFromInt(5000)))
	assert.True(t, snapshot.Balance.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, models.FeeStatusPartial, snapshot.FeeStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPaymentUnknownStudentRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.RecordPayment(context.Background(), &models.Payment{StudentID: "ghost", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPaymentInsertFailureLeavesLedgerUntouched(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectBegin()
	expectLedgerLock(mock, "s1", "100", "0", models.FeeStatusPending)
	mock.ExpectExec("INSERT INTO fee_payments").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.RecordPayment(context.Background(), &models.Payment{StudentID: "s1", Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePaymentRestoresPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_id FROM fee_payments WHERE id = $1")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("s1"))
	mock.ExpectBegin()
	expectLedgerLock(mock, "s1", "10000", "5000", models.FeeStatusPartial)
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM fee_payments WHERE id = $1 AND student_id = $2")).
		WithArgs("p1", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "amount", "payment_date", "payment_method", "receipt_number", "notes", "created_by", "created_at"}).
			AddRow("p1", "s1", "5000", now, nil, nil, nil, nil, now))
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\)").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("0"))
	mock.ExpectExec("UPDATE students SET paid_fee").
		WithArgs("s1", sqlmock.AnyArg(), string(models.FeeStatusPending), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payment, snapshot, err := repo.DeletePayment(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", payment.ID)
	assert.True(t, snapshot.PaidFee.IsZero())
	assert.Equal(t, models.FeeStatusPending, snapshot.FeeStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePaymentMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectQuery("SELECT student_id FROM fee_payments").WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, _, err := repo.DeletePayment(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPaymentsFiltersByStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM fee_payments fp JOIN students s ON s.id = fp.student_id WHERE 1=1 AND fp.student_id = $1 ORDER BY fp.payment_date DESC, fp.created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "amount", "payment_date", "payment_method", "receipt_number", "notes", "created_by", "created_at", "student_name", "enrollment_number"}).
			AddRow("p1", "s1", "250.50", now, "cash", "RCPT-1", nil, "staff-1", now, "Asha", "ENR-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM fee_payments fp")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	payments, total, err := repo.List(context.Background(), models.PaymentFilter{StudentID: "s1"})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "250.5", payments[0].Amount.String())
	assert.Equal(t, "Asha", *payments[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
