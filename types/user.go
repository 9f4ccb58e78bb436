package types

import (
	"time"

	"github.com/google/uuid"
)

// Role is the access level attached to a user and its session.
type Role string

// Supported roles.
const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

// User represents an account in the back office.
type User struct {
	// ID is the opaque identifier of the user.
	ID uuid.UUID `json:"id" db:"id"`

	// Email is the unique login address of the user.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level (customer or admin).
	Role Role `json:"role" db:"role"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
