package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/mindlab/health/internal/platform/auth"
)

// UserRepository persists users. Lookups of missing rows return an apperr
// NotFound error.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*User, int, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role auth.Role) error
	UpdateStatus(ctx context.Context, id uuid.UUID, active bool) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	Delete(ctx context.Context, id uuid.UUID) error
}
