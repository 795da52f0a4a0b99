package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeStatus summarises how much of a student's fee has been paid.
type FeeStatus string

const (
	FeeStatusPending FeeStatus = "pending"
	FeeStatusPartial FeeStatus = "partial"
	FeeStatusPaid    FeeStatus = "paid"
	FeeStatusOverdue FeeStatus = "overdue"
)

// DeriveFeeStatus computes the status from the amounts alone. It never yields overdue.
func DeriveFeeStatus(paid, total decimal.Decimal) FeeStatus {
	switch {
	case !paid.IsPositive():
		return FeeStatusPending
	case paid.LessThan(total):
		return FeeStatusPartial
	default:
		return FeeStatusPaid
	}
}

// NextFeeStatus applies a ledger change to a student whose status is current.
// A manual overdue flag survives while a balance remains on a partially paid fee.
func NextFeeStatus(current FeeStatus, paid, total decimal.Decimal) FeeStatus {
	derived := DeriveFeeStatus(paid, total)
	if current == FeeStatusOverdue && derived == FeeStatusPartial {
		return FeeStatusOverdue
	}
	return derived
}

// Payment is one fee payment recorded against a student.
type Payment struct {
	ID               string          `db:"id" json:"id"`
	StudentID        string          `db:"student_id" json:"student_id"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	PaymentDate      Date            `db:"payment_date" json:"payment_date"`
	PaymentMethod    *string         `db:"payment_method" json:"payment_method,omitempty"`
	ReceiptNumber    *string         `db:"receipt_number" json:"receipt_number,omitempty"`
	Notes            *string         `db:"notes" json:"notes,omitempty"`
	CreatedBy        *string         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	StudentName      *string         `db:"student_name" json:"student_name,omitempty"`
	EnrollmentNumber *string         `db:"enrollment_number" json:"enrollment_number,omitempty"`
}

// PaymentRequest records a payment.
type PaymentRequest struct {
	StudentID     string          `json:"student_id" validate:"required,uuid"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   *Date           `json:"payment_date"`
	PaymentMethod *string         `json:"payment_method" validate:"omitempty,max=50"`
	ReceiptNumber *string         `json:"receipt_number" validate:"omitempty,max=64"`
	Notes         *string         `json:"notes"`
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	StudentID string
	From      *Date
	To        *Date
	Page      int
	PageSize  int
}

// LedgerSnapshot is a student's fee position right after a ledger change.
type LedgerSnapshot struct {
	StudentID string          `db:"id" json:"student_id"`
	TotalFee  decimal.Decimal `db:"total_fee" json:"total_fee"`
	PaidFee   decimal.Decimal `db:"paid_fee" json:"paid_fee"`
	FeeStatus FeeStatus       `db:"fee_status" json:"fee_status"`
	Balance   decimal.Decimal `db:"-" json:"balance"`
}

// PaymentResult is returned by ledger mutations.
type PaymentResult struct {
	Payment *Payment        `json:"payment"`
	Ledger  *LedgerSnapshot `json:"ledger"`
}

// StudentLedger lists a student's fee position with every surviving payment.
type StudentLedger struct {
	Student  *StudentDetail  `json:"student"`
	Payments []Payment       `json:"payments"`
	Balance  decimal.Decimal `json:"balance"`
}
