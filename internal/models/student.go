package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StudentStatus describes where a student is in their enrollment.
type StudentStatus string

const (
	StudentStatusActive    StudentStatus = "active"
	StudentStatusInactive  StudentStatus = "inactive"
	StudentStatusCompleted StudentStatus = "completed"
	StudentStatusDropped   StudentStatus = "dropped"
)

// Student represents a learner enrolled at the institute.
type Student struct {
	ID               string          `db:"id" json:"id"`
	EnrollmentNumber string          `db:"enrollment_number" json:"enrollment_number"`
	FullName         string          `db:"full_name" json:"full_name"`
	Email            string          `db:"email" json:"email"`
	Phone            *string         `db:"phone" json:"phone,omitempty"`
	Address          *string         `db:"address" json:"address,omitempty"`
	DateOfBirth      *Date           `db:"date_of_birth" json:"date_of_birth,omitempty"`
	GuardianName     *string         `db:"guardian_name" json:"guardian_name,omitempty"`
	GuardianPhone    *string         `db:"guardian_phone" json:"guardian_phone,omitempty"`
	CourseID         *string         `db:"course_id" json:"course_id,omitempty"`
	BatchID          *string         `db:"batch_id" json:"batch_id,omitempty"`
	Status           StudentStatus   `db:"status" json:"status"`
	TotalFee         decimal.Decimal `db:"total_fee" json:"total_fee"`
	PaidFee          decimal.Decimal `db:"paid_fee" json:"paid_fee"`
	FeeStatus        FeeStatus       `db:"fee_status" json:"fee_status"`
	Notes            *string         `db:"notes" json:"notes,omitempty"`
	UserID           *string         `db:"user_id" json:"user_id,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// StudentDetail adds the joined course and batch names.
type StudentDetail struct {
	Student
	CourseName *string `db:"course_name" json:"course_name,omitempty"`
	BatchName  *string `db:"batch_name" json:"batch_name,omitempty"`
}

// Balance is the outstanding amount, never negative.
func (s *Student) Balance() decimal.Decimal {
	balance := s.TotalFee.Sub(s.PaidFee)
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Status    string
	FeeStatus string
	CourseID  string
	BatchID   string
	Page      int
	PageSize  int
}

// CreateStudentRequest is the payload for enrolling a student.
type CreateStudentRequest struct {
	EnrollmentNumber string          `json:"enrollment_number" validate:"required,max=64"`
	FullName         string          `json:"full_name" validate:"required,max=255"`
	Email            string          `json:"email" validate:"required,email"`
	Phone            *string         `json:"phone" validate:"omitempty,max=32"`
	Address          *string         `json:"address"`
	DateOfBirth      *Date           `json:"date_of_birth"`
	GuardianName     *string         `json:"guardian_name" validate:"omitempty,max=255"`
	GuardianPhone    *string         `json:"guardian_phone" validate:"omitempty,max=32"`
	CourseID         *string         `json:"course_id" validate:"omitempty,uuid"`
	BatchID          *string         `json:"batch_id" validate:"omitempty,uuid"`
	Status           StudentStatus   `json:"status" validate:"omitempty,oneof=active inactive completed dropped"`
	TotalFee         decimal.Decimal `json:"total_fee"`
	Notes            *string         `json:"notes"`
	UserID           *string         `json:"user_id" validate:"omitempty,uuid"`
}

// UpdateStudentRequest patches a student; nil fields keep their stored value.
// FeeStatus only accepts "overdue" as a manual flag, any other value clears it.
type UpdateStudentRequest struct {
	EnrollmentNumber *string          `json:"enrollment_number" validate:"omitempty,min=1,max=64"`
	FullName         *string          `json:"full_name" validate:"omitempty,min=1,max=255"`
	Email            *string          `json:"email" validate:"omitempty,email"`
	Phone            *string          `json:"phone" validate:"omitempty,max=32"`
	Address          *string          `json:"address"`
	DateOfBirth      *Date            `json:"date_of_birth"`
	GuardianName     *string          `json:"guardian_name" validate:"omitempty,max=255"`
	GuardianPhone    *string          `json:"guardian_phone" validate:"omitempty,max=32"`
	CourseID         *string          `json:"course_id" validate:"omitempty,uuid"`
	BatchID          *string          `json:"batch_id" validate:"omitempty,uuid"`
	Status           *StudentStatus   `json:"status" validate:"omitempty,oneof=active inactive completed dropped"`
	TotalFee         *decimal.Decimal `json:"total_fee"`
	FeeStatus        *FeeStatus       `json:"fee_status" validate:"omitempty,oneof=pending partial paid overdue"`
	Notes            *string          `json:"notes"`
	UserID           *string          `json:"user_id" validate:"omitempty,uuid"`
}
