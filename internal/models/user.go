package models

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Role is one of the fixed role labels an identity can hold.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleDirector Role = "director"
	RoleFaculty  Role = "faculty"
	RoleStudent  Role = "student"
)

// AllRoles lists the role enumeration in display order.
var AllRoles = []Role{RoleAdmin, RoleDirector, RoleFaculty, RoleStudent}

// StaffRoles may manage institute records.
var StaffRoles = []Role{RoleAdmin, RoleDirector, RoleFaculty}

// Valid reports whether r belongs to the role enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDirector, RoleFaculty, RoleStudent:
		return true
	}
	return false
}

// ParseRole normalises user input into a Role.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// RoleSet is the set of roles attached to one identity.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set, silently dropping duplicates.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s RoleSet) Has(role Role) bool {
	_, ok := s[role]
	return ok
}

// Intersects reports whether any role of s appears in allowed.
func (s RoleSet) Intersects(allowed ...Role) bool {
	for _, r := range allowed {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// IsStaff reports whether the set holds admin, director or faculty.
func (s RoleSet) IsStaff() bool {
	return s.Intersects(StaffRoles...)
}

// Slice returns the roles sorted alphabetically.
func (s RoleSet) Slice() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON renders the set as a sorted array.
func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// UnmarshalJSON accepts an array of role labels.
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var roles []Role
	if err := json.Unmarshal(data, &roles); err != nil {
		return err
	}
	*s = NewRoleSet(roles...)
	return nil
}

// User is a registered identity. Roles are loaded from user_roles separately.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	AvatarURL    *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	TokenVersion int       `db:"token_version" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
	Roles        RoleSet   `db:"-" json:"roles"`
}

// UserRole is one row of the user_roles relation.
type UserRole struct {
	ID     string `db:"id" json:"id"`
	UserID string `db:"user_id" json:"user_id"`
	Role   Role   `db:"role" json:"role"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role     *Role
	Search   string
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// NewPagination normalises paging input the same way the repositories do.
func NewPagination(page, size, total int) *Pagination {
	page, size = NormalizePage(page, size)
	pages := 0
	if total > 0 {
		pages = (total + size - 1) / size
	}
	return &Pagination{Page: page, PageSize: size, TotalCount: total, TotalPages: pages}
}

// NormalizePage clamps page to >= 1 and size to (0, 100], defaulting to 20.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
