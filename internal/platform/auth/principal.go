package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const PrincipalKey contextKey = "principal"

// Principal is the authenticated caller resolved from a bearer token.
type Principal struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// PrincipalFromContext returns the caller stored by BearerAuth, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(PrincipalKey).(*Principal)
	return p
}

// UserIDFromContext returns the caller's id as a string, or "" when anonymous.
func UserIDFromContext(ctx context.Context) string {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.ID.String()
	}
	return ""
}
