package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Faculty is a teaching staff profile shown on the public site.
type Faculty struct {
	ID              string           `db:"id" json:"id"`
	FullName        string           `db:"full_name" json:"full_name"`
	Email           string           `db:"email" json:"email"`
	Phone           *string          `db:"phone" json:"phone,omitempty"`
	Qualification   *string          `db:"qualification" json:"qualification,omitempty"`
	Specialization  *string          `db:"specialization" json:"specialization,omitempty"`
	ExperienceYears int              `db:"experience_years" json:"experience_years"`
	JoiningDate     *Date            `db:"joining_date" json:"joining_date,omitempty"`
	Salary          *decimal.Decimal `db:"salary" json:"salary,omitempty"`
	Address         *string          `db:"address" json:"address,omitempty"`
	IsActive        bool             `db:"is_active" json:"is_active"`
	Bio             *string          `db:"bio" json:"bio,omitempty"`
	AvatarURL       *string          `db:"avatar_url" json:"avatar_url,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// Public strips the fields only staff may see.
func (f Faculty) Public() Faculty {
	f.Salary = nil
	f.Address = nil
	f.Phone = nil
	return f
}

// FacultyRequest creates or patches a faculty profile. Create requires name and email.
type FacultyRequest struct {
	FullName        *string          `json:"full_name" validate:"omitempty,min=1,max=255"`
	Email           *string          `json:"email" validate:"omitempty,email"`
	Phone           *string          `json:"phone" validate:"omitempty,max=32"`
	Qualification   *string          `json:"qualification" validate:"omitempty,max=255"`
	Specialization  *string          `json:"specialization" validate:"omitempty,max=255"`
	ExperienceYears *int             `json:"experience_years" validate:"omitempty,min=0,max=80"`
	JoiningDate     *Date            `json:"joining_date"`
	Salary          *decimal.Decimal `json:"salary"`
	Address         *string          `json:"address"`
	IsActive        *bool            `json:"is_active"`
	Bio             *string          `json:"bio"`
	AvatarURL       *string          `json:"avatar_url" validate:"omitempty,url"`
}
