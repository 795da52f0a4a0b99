package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DashboardSummary aggregates institute-wide figures for the staff dashboard.
type DashboardSummary struct {
	Students           StudentCounts       `json:"students"`
	Fees               FeeTotals           `json:"fees"`
	Catalog            CatalogCounts       `json:"catalog"`
	Enquiries          map[string]int      `json:"enquiries"`
	MonthlyCollections []MonthlyCollection `json:"monthly_collections"`
	GeneratedAt        time.Time           `json:"generated_at"`
}

// StudentCounts breaks enrolment down by lifecycle and fee status.
type StudentCounts struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"by_status"`
	ByFeeStatus map[string]int `json:"by_fee_status"`
}

// FeeTotals sums billed, collected and outstanding fees across students.
type FeeTotals struct {
	Billed      decimal.Decimal `json:"billed"`
	Collected   decimal.Decimal `json:"collected"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// CatalogCounts counts active catalog entries.
type CatalogCounts struct {
	ActiveCourses int `db:"active_courses" json:"active_courses"`
	ActiveBatches int `db:"active_batches" json:"active_batches"`
	ActiveFaculty int `db:"active_faculty" json:"active_faculty"`
	ActiveTests   int `db:"active_tests" json:"active_tests"`
}

// StudentBreakdownRow is one (status, fee_status) group of students.
type StudentBreakdownRow struct {
	Status      string          `db:"status"`
	FeeStatus   string          `db:"fee_status"`
	Count       int             `db:"count"`
	TotalFee    decimal.Decimal `db:"total_fee"`
	PaidFee     decimal.Decimal `db:"paid_fee"`
	Outstanding decimal.Decimal `db:"outstanding"`
}

// StatusCount is a grouped count keyed by status.
type StatusCount struct {
	Status string `db:"status"`
	Count  int    `db:"count"`
}

// MonthlyCollection is the sum of payments received in one calendar month.
type MonthlyCollection struct {
	Month    string          `db:"month" json:"month"`
	Amount   decimal.Decimal `db:"amount" json:"amount"`
	Payments int             `db:"payments" json:"payments"`
}
