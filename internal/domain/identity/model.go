package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/mindlab/health/internal/platform/auth"
)

// User maps to the users table.
type User struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	Email          string    `db:"email" json:"email"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	Role           auth.Role `db:"role" json:"role"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

func (u *User) Principal() auth.Principal {
	return auth.Principal{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// Role is accepted for compatibility and ignored: self-registration
	// always yields a patient.
	Role string `json:"role,omitempty"`
}

type TokenRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type RoleUpdate struct {
	Role string `json:"role"`
}

type RoleUpdateResponse struct {
	Message string    `json:"message"`
	UserID  uuid.UUID `json:"user_id"`
	NewRole auth.Role `json:"new_role"`
}

type StatusUpdate struct {
	IsActive *bool `json:"is_active"`
}

type PermissionsResponse struct {
	Role        auth.Role `json:"role"`
	Permissions []string  `json:"permissions"`
}

type ModulesResponse struct {
	Role    auth.Role       `json:"role"`
	Modules map[string]bool `json:"modules"`
}

// LoginEvent describes one attempt at the token endpoint.
type LoginEvent struct {
	Username      string
	IPAddress     string
	UserAgent     string
	UserID        *uuid.UUID
	Success       bool
	FailureReason string
}

// ListFilter narrows user listings.
type ListFilter struct {
	Role     auth.Role
	IsActive *bool
	Search   string
}
