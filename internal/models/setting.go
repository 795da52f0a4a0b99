package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Setting is a key with an arbitrary JSON value, read by the public site.
type Setting struct {
	ID          string         `db:"id" json:"id"`
	Key         string         `db:"key" json:"key"`
	Value       types.JSONText `db:"value" json:"value"`
	Description *string        `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// SettingRequest upserts a setting value.
type SettingRequest struct {
	Value       types.JSONText `json:"value" validate:"required"`
	Description *string        `json:"description" validate:"omitempty,max=1000"`
}
