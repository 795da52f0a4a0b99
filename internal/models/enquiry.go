package models

import "time"

// EnquiryStatus tracks follow-up on a prospective student's enquiry.
type EnquiryStatus string

const (
	EnquiryStatusNew       EnquiryStatus = "new"
	EnquiryStatusContacted EnquiryStatus = "contacted"
	EnquiryStatusConverted EnquiryStatus = "converted"
	EnquiryStatusClosed    EnquiryStatus = "closed"
)

// Enquiry is a contact form submission from the public site.
type Enquiry struct {
	ID             string        `db:"id" json:"id"`
	Name           string        `db:"name" json:"name"`
	Email          string        `db:"email" json:"email"`
	Phone          *string       `db:"phone" json:"phone,omitempty"`
	CourseInterest *string       `db:"course_interest" json:"course_interest,omitempty"`
	Message        *string       `db:"message" json:"message,omitempty"`
	Status         EnquiryStatus `db:"status" json:"status"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// EnquiryRequest is the public submission payload.
type EnquiryRequest struct {
	Name           string  `json:"name" validate:"required,max=255"`
	Email          string  `json:"email" validate:"required,email"`
	Phone          *string `json:"phone" validate:"omitempty,max=32"`
	CourseInterest *string `json:"course_interest" validate:"omitempty,max=255"`
	Message        *string `json:"message" validate:"omitempty,max=5000"`
}

// EnquiryStatusRequest moves an enquiry through follow-up.
type EnquiryStatusRequest struct {
	Status EnquiryStatus `json:"status" validate:"required,oneof=new contacted converted closed"`
}

// EnquiryFilter narrows enquiry listings.
type EnquiryFilter struct {
	Status   string
	Page     int
	PageSize int
}
