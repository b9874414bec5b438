package types

import (
	"strings"
	"time"
)

// Roles recognised by the problem service. Admins and staff can see every
// problem, including private ones set by other users.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
	RoleUser  = "user"
)

// User is an account that sets problems and publishes solutions.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name, shown as the author of solutions.
	Username string `json:"username" db:"username"`

	// Email is the user's email address.
	Email string `json:"email" db:"email"`

	// Name is the user's display name.
	Name string `json:"name" db:"name"`

	// Role is one of RoleAdmin, RoleStaff or RoleUser.
	Role string `json:"role" db:"role"`

	// IsActive is false for disabled accounts, which cannot log in or use
	// the API.
	IsActive bool `json:"is_active" db:"is_active"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the user may see all problems.
func (u User) IsAdmin() bool {
	role := strings.ToLower(strings.TrimSpace(u.Role))
	return role == RoleAdmin || role == RoleStaff
}
