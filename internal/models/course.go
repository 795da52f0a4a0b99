package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Course is a programme offered by the institute.
type Course struct {
	ID             string          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	Description    *string         `db:"description" json:"description,omitempty"`
	DurationMonths int             `db:"duration_months" json:"duration_months"`
	FeeAmount      decimal.Decimal `db:"fee_amount" json:"fee_amount"`
	ImageURL       *string         `db:"image_url" json:"image_url,omitempty"`
	IsActive       bool            `db:"is_active" json:"is_active"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// CourseRequest creates or patches a course. Create requires a name.
type CourseRequest struct {
	Name           *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Description    *string          `json:"description"`
	DurationMonths *int             `json:"duration_months" validate:"omitempty,min=1,max=120"`
	FeeAmount      *decimal.Decimal `json:"fee_amount"`
	ImageURL       *string          `json:"image_url" validate:"omitempty,url"`
	IsActive       *bool            `json:"is_active"`
}

// Batch is a cohort of students taking a course together.
type Batch struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	CourseID   *string   `db:"course_id" json:"course_id,omitempty"`
	CourseName *string   `db:"course_name" json:"course_name,omitempty"`
	StartDate  *Date     `db:"start_date" json:"start_date,omitempty"`
	EndDate    *Date     `db:"end_date" json:"end_date,omitempty"`
	Capacity   int       `db:"capacity" json:"capacity"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// BatchRequest creates or patches a batch.
type BatchRequest struct {
	Name      *string `json:"name" validate:"omitempty,min=1,max=255"`
	CourseID  *string `json:"course_id" validate:"omitempty,uuid"`
	StartDate *Date   `json:"start_date"`
	EndDate   *Date   `json:"end_date"`
	Capacity  *int    `json:"capacity" validate:"omitempty,min=1,max=10000"`
	IsActive  *bool   `json:"is_active"`
}

// CatalogFilter narrows course, batch, faculty and test listings.
// ActiveOnly is forced for callers that are not staff.
type CatalogFilter struct {
	ActiveOnly bool
	CourseID   string
	BatchID    string
}
