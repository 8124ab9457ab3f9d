package earnings

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mindlab/health/internal/platform/auth"
)

type Repository interface {
	// ActiveStructure returns the active structure for role and serviceType,
	// or NotFound.
	ActiveStructure(ctx context.Context, role, serviceType string) (*CommissionStructure, error)
	ListStructures(ctx context.Context, activeOnly bool) ([]*CommissionStructure, error)
	GetStructure(ctx context.Context, id uuid.UUID) (*CommissionStructure, error)
	CreateStructure(ctx context.Context, cs *CommissionStructure) error
	UpdateStructure(ctx context.Context, cs *CommissionStructure) error
	DeleteStructure(ctx context.Context, id uuid.UUID) error

	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Record, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error

	// Monthly sums records with service_date >= since, per calendar month.
	Monthly(ctx context.Context, providerID *uuid.UUID, since time.Time) ([]MonthTotals, error)
	Totals(ctx context.Context, providerID *uuid.UUID) (*Totals, error)
	ByRole(ctx context.Context) ([]RoleTotals, error)
	CountByStatus(ctx context.Context, status string) (int, error)

	UserRole(ctx context.Context, id uuid.UUID) (auth.Role, error)
	AppointmentExists(ctx context.Context, id uuid.UUID) (bool, error)
}
