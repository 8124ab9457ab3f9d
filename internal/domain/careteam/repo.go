package careteam

import (
	"context"

	"github.com/google/uuid"

	"github.com/mindlab/health/internal/platform/auth"
)

type Repository interface {
	// UserRole returns the role of a user, or NotFound("user").
	UserRole(ctx context.Context, id uuid.UUID) (auth.Role, error)
	// ListPatients lists every patient, or only those actively assigned to
	// providerID when it is non-nil.
	ListPatients(ctx context.Context, providerID *uuid.UUID, limit, offset int) ([]*Patient, int, error)
	ActiveProviders(ctx context.Context, patientIDs []uuid.UUID) (map[uuid.UUID][]ProviderLink, error)

	GetAssignment(ctx context.Context, patientID, providerID uuid.UUID) (*Assignment, error)
	CreateAssignment(ctx context.Context, a *Assignment) error
	UpdateAssignment(ctx context.Context, a *Assignment) error
	IsAssigned(ctx context.Context, providerID, patientID uuid.UUID) (bool, error)
}
