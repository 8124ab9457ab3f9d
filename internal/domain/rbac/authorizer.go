package rbac

import (
	"context"

	"github.com/google/uuid"

	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
)

// Authorizer makes ownership decisions about individual resources. It is
// independent of the catalog: endpoints check both where both apply.
type Authorizer struct {
	repo Repository
}

func NewAuthorizer(repo Repository) *Authorizer {
	return &Authorizer{repo: repo}
}

// CanAccessAppointment reports whether p is admin, or the patient or provider
// on the appointment. A missing appointment yields false.
func (a *Authorizer) CanAccessAppointment(ctx context.Context, p *auth.Principal, appointmentID uuid.UUID) (bool, error) {
	if p == nil {
		return false, nil
	}
	patientID, providerID, err := a.repo.AppointmentParties(ctx, appointmentID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if p.Role.IsAdmin() {
		return true, nil
	}
	return p.ID == patientID || p.ID == providerID, nil
}

// CanAccessUserData reports whether p may read target's data: admin, the
// user themself, or a provider linked to target by an appointment.
func (a *Authorizer) CanAccessUserData(ctx context.Context, p *auth.Principal, target uuid.UUID) (bool, error) {
	if p == nil {
		return false, nil
	}
	if p.Role.IsAdmin() || p.ID == target {
		return true, nil
	}
	if !p.Role.IsProvider() {
		return false, nil
	}
	return a.repo.HasAppointmentLink(ctx, p.ID, target)
}
