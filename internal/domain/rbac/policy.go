package rbac

import (
	"context"

	"github.com/google/uuid"

	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
)

// Policy is the authorization surface handed to domain services: catalog
// checks plus ownership checks.
type Policy interface {
	auth.PermissionChecker
	CanAccessAppointment(ctx context.Context, p *auth.Principal, appointmentID uuid.UUID) (bool, error)
	CanAccessUserData(ctx context.Context, p *auth.Principal, target uuid.UUID) (bool, error)
}

type policy struct {
	*Resolver
	*Authorizer
}

// NewPolicy combines a Resolver and an Authorizer.
func NewPolicy(r *Resolver, a *Authorizer) Policy {
	return policy{Resolver: r, Authorizer: a}
}

// HasAny reports whether p holds at least one of permissions.
func HasAny(ctx context.Context, checker auth.PermissionChecker, p *auth.Principal, permissions ...string) (bool, error) {
	for _, perm := range permissions {
		ok, err := checker.HasPermission(ctx, p, perm)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// RequireUserData returns a Forbidden error unless p may read target's data.
func RequireUserData(ctx context.Context, pol Policy, p *auth.Principal, target uuid.UUID) error {
	ok, err := pol.CanAccessUserData(ctx, p, target)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("access to this user's data denied")
	}
	return nil
}
