package rbac

import (
	"context"

	"github.com/google/uuid"
)

// Repository reads and maintains the permission catalog. It also answers the
// appointment relationship questions used by the ownership checks.
type Repository interface {
	ListPermissions(ctx context.Context) ([]*Permission, error)
	PermissionsForRole(ctx context.Context, role string) ([]*Permission, error)
	UpsertPermission(ctx context.Context, d Definition) error
	Grant(ctx context.Context, role, permission string) (bool, error)

	// AppointmentParties returns the patient and provider of an appointment,
	// or an apperr NotFound error.
	AppointmentParties(ctx context.Context, appointmentID uuid.UUID) (patientID, providerID uuid.UUID, err error)
	HasAppointmentLink(ctx context.Context, providerID, patientID uuid.UUID) (bool, error)
}
