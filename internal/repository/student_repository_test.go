package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-compass-api/internal/models"
)

var studentRowColumns = []string{"id", "enrollment_number", "full_name", "email", "phone", "address", "date_of_birth", "guardian_name", "guardian_phone",
	"course_id", "batch_id", "status", "total_fee", "paid_fee", "fee_status", "notes", "user_id", "created_at", "updated_at"}

func studentRow(id, total, paid string, status models.FeeStatus) []driver.Value {
	now := time.Now()
	return []driver.Value{id, "ENR-1", "Asha", "asha@example.com", nil, nil, nil, nil, nil,
		nil, nil, "active", total, paid, string(status), nil, "user-1", now, now}
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows(append(append([]string{}, studentRowColumns...), "course_name", "batch_name")).
		AddRow(append(studentRow("s1", "10000.00", "5000.00", models.FeeStatusPartial), "JEE", "Morning")...)
	mock.ExpectQuery(regexp.QuoteMeta("FROM students s LEFT JOIN courses c ON c.id = s.course_id LEFT JOIN batches b ON b.id = s.batch_id WHERE 1=1 AND s.fee_status = $1 AND (LOWER(s.full_name) LIKE $2 OR LOWER(s.email) LIKE $2 OR LOWER(s.enrollment_number) LIKE $2) ORDER BY s.created_at DESC LIMIT 10 OFFSET 10")).
		WithArgs("partial", "%ash%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students s")).
		WithArgs("partial", "%ash%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	students, total, err := repo.List(context.Background(), models.StudentFilter{FeeStatus: "partial", Search: "Ash", Page: 2, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, 11, total)
	assert.True(t, students[0].PaidFee.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, "JEE", *students[0].CourseName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{EnrollmentNumber: "ENR-2", FullName: "Ravi", Email: "ravi@example.com", Status: models.StudentStatusActive, FeeStatus: models.FeeStatusPending}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.NotEmpty(t, student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdateLocksRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM students s WHERE s.id = $1 FOR UPDATE")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(studentRowColumns).AddRow(studentRow("s1", "10000", "5000", models.FeeStatusPartial)...))
	mock.ExpectExec("UPDATE students SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := repo.Update(context.Background(), "s1", func(s *models.Student) error {
		s.TotalFee = decimal.NewFromInt(5000)
		s.FeeStatus = models.DeriveFeeStatus(s.PaidFee, s.TotalFee)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPaid, updated.FeeStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("nope").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), "nope", func(*models.Student) error { return nil })
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM students WHERE id = $1")).WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.Delete(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
