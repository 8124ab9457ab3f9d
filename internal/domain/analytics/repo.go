package analytics

import (
	"context"
	"time"
)

type Repository interface {
	UserStats(ctx context.Context, since time.Time) (*UserStats, error)
	AppointmentStats(ctx context.Context, since time.Time) (*AppointmentStats, error)
	MessageStats(ctx context.Context, since time.Time) (*MessageStats, error)
	MealStats(ctx context.Context, since time.Time) (*MealStats, error)
	SystemStats(ctx context.Context) (*SystemStats, error)

	UserGrowth(ctx context.Context, since time.Time) ([]DailyCount, error)
	RoleDistribution(ctx context.Context) ([]LabelCount, error)
	// ActiveUsers counts users who booked, attended, or sent a message
	// since the given time.
	ActiveUsers(ctx context.Context, since time.Time) (int, error)

	AppointmentTrend(ctx context.Context, since time.Time) ([]DailyCount, error)
	AppointmentStatuses(ctx context.Context) ([]LabelCount, error)
	TopProviders(ctx context.Context, since time.Time, limit int) ([]LabelCount, error)

	RecordActivity(ctx context.Context, a *Activity) error
	ListActivities(ctx context.Context, since time.Time, limit int) ([]*Activity, error)
	RecordMetric(ctx context.Context, m *Metric) error
	ListMetrics(ctx context.Context, since time.Time, category string) ([]*Metric, error)
}
