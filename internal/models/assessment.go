package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Test is an assessment scheduled for a course or batch.
type Test struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	CourseID     *string   `db:"course_id" json:"course_id,omitempty"`
	CourseName   *string   `db:"course_name" json:"course_name,omitempty"`
	BatchID      *string   `db:"batch_id" json:"batch_id,omitempty"`
	BatchName    *string   `db:"batch_name" json:"batch_name,omitempty"`
	MaxMarks     int       `db:"max_marks" json:"max_marks"`
	PassingMarks int       `db:"passing_marks" json:"passing_marks"`
	TestDate     *Date     `db:"test_date" json:"test_date,omitempty"`
	Description  *string   `db:"description" json:"description,omitempty"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// TestRequest creates or patches a test.
type TestRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=255"`
	CourseID     *string `json:"course_id" validate:"omitempty,uuid"`
	BatchID      *string `json:"batch_id" validate:"omitempty,uuid"`
	MaxMarks     *int    `json:"max_marks" validate:"omitempty,min=1,max=10000"`
	PassingMarks *int    `json:"passing_marks" validate:"omitempty,min=0,max=10000"`
	TestDate     *Date   `json:"test_date"`
	Description  *string `json:"description"`
	IsActive     *bool   `json:"is_active"`
}

// Mark is a student's score on a test.
type Mark struct {
	ID               string          `db:"id" json:"id"`
	StudentID        string          `db:"student_id" json:"student_id"`
	TestID           string          `db:"test_id" json:"test_id"`
	MarksObtained    decimal.Decimal `db:"marks_obtained" json:"marks_obtained"`
	Remarks          *string         `db:"remarks" json:"remarks,omitempty"`
	StudentName      *string         `db:"student_name" json:"student_name,omitempty"`
	EnrollmentNumber *string         `db:"enrollment_number" json:"enrollment_number,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// MarkRequest upserts a student's mark for a test.
type MarkRequest struct {
	StudentID     string           `json:"student_id" validate:"required,uuid"`
	MarksObtained *decimal.Decimal `json:"marks_obtained" validate:"required"`
	Remarks       *string          `json:"remarks"`
}
