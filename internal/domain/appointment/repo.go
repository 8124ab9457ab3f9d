package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mindlab/health/internal/platform/auth"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	SetCalendarEvent(ctx context.Context, id uuid.UUID, eventID *string, syncedAt time.Time) error
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error)

	GetParty(ctx context.Context, id uuid.UUID) (*Party, error)
	ListByRoles(ctx context.Context, roles []auth.Role) ([]*Party, error)
}
