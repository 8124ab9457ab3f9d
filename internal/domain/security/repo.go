package security

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	CreateEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, f EventFilter, limit, offset int) ([]*Event, int, error)

	CreateLoginAttempt(ctx context.Context, a *LoginAttempt) error
	ListLoginAttempts(ctx context.Context, f LoginFilter, limit, offset int) ([]*LoginAttempt, int, error)
	CountFailedLogins(ctx context.Context, ip string, since time.Time) (int, error)

	CreateAuditLog(ctx context.Context, l *AuditLog) error
	ListAuditLogs(ctx context.Context, f AuditFilter, limit, offset int) ([]*AuditLog, int, error)

	CreateAlert(ctx context.Context, a *Alert) error
	GetAlert(ctx context.Context, id uuid.UUID) (*Alert, error)
	// OpenAlert returns the unresolved alert of alertType for ip, or NotFound.
	OpenAlert(ctx context.Context, alertType, ip string) (*Alert, error)
	BumpAlert(ctx context.Context, a *Alert) error
	ResolveAlert(ctx context.Context, a *Alert) error
	ListAlerts(ctx context.Context, f AlertFilter, limit, offset int) ([]*Alert, int, error)

	Totals(ctx context.Context, since time.Time) (*Totals, error)
}
