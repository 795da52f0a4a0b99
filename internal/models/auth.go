package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest creates a new identity with the default student role.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
	FullName  string `json:"full_name" validate:"omitempty,max=255"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// AuthResponse returns the identity together with a fresh session token.
type AuthResponse struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,max=72"`
}

// UpdateProfileRequest patches the caller's profile; nil fields are left untouched.
type UpdateProfileRequest struct {
	FullName  *string `json:"full_name" validate:"omitempty,min=1,max=255"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
}

// RoleRequest attaches a role to a user.
type RoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// JWTClaims represents the JWT payload for session tokens.
type JWTClaims struct {
	UserID  string `json:"user_id"`
	Version int    `json:"ver"`
	jwt.RegisteredClaims
}

// RequestMeta carries caller details recorded in the audit trail.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// Identity is the authenticated caller resolved from a session token.
type Identity struct {
	UserID   string  `json:"id"`
	Email    string  `json:"email"`
	FullName string  `json:"full_name"`
	Roles    RoleSet `json:"roles"`
}

// IsStaff reports whether the caller may manage institute records.
func (i *Identity) IsStaff() bool {
	return i != nil && i.Roles.IsStaff()
}
