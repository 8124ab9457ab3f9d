package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindlab/health/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) count(ctx context.Context, q string, args ...interface{}) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, q, args...).Scan(&n)
	return n, err
}

func (r *repoPG) labelCounts(ctx context.Context, q string, args ...interface{}) ([]LabelCount, error) {
	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LabelCount
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, err
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

func (r *repoPG) distribution(ctx context.Context, q string, args ...interface{}) (map[string]int, error) {
	counts, err := r.labelCounts(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(counts))
	for _, c := range counts {
		out[c.Label] = c.Count
	}
	return out, nil
}

func (r *repoPG) daily(ctx context.Context, q string, since time.Time) ([]DailyCount, error) {
	rows, err := r.conn(ctx).Query(ctx, q, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyCount
	for rows.Next() {
		var day time.Time
		var dc DailyCount
		if err := rows.Scan(&day, &dc.Count); err != nil {
			return nil, err
		}
		dc.Date = day.Format("2006-01-02")
		out = append(out, dc)
	}
	return out, rows.Err()
}

func (r *repoPG) UserStats(ctx context.Context, since time.Time) (*UserStats, error) {
	s := &UserStats{}
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE created_at >= $1) FROM users`, since).Scan(&s.Total, &s.New)
	if err != nil {
		return nil, err
	}
	s.RoleDistribution, err = r.distribution(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	return s, err
}

func (r *repoPG) AppointmentStats(ctx context.Context, since time.Time) (*AppointmentStats, error) {
	s := &AppointmentStats{}
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE scheduled_at >= $1) FROM appointments`, since).Scan(&s.Total, &s.Recent)
	if err != nil {
		return nil, err
	}
	s.StatusDistribution, err = r.distribution(ctx, `SELECT status, COUNT(*) FROM appointments GROUP BY status`)
	return s, err
}

func (r *repoPG) MessageStats(ctx context.Context, since time.Time) (*MessageStats, error) {
	s := &MessageStats{}
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE sent_at >= $1) FROM messages`, since).Scan(&s.Total, &s.Recent)
	return s, err
}

func (r *repoPG) MealStats(ctx context.Context, since time.Time) (*MealStats, error) {
	s := &MealStats{}
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE created_at >= $1) FROM meals`, since).Scan(&s.Total, &s.Recent)
	if err != nil {
		return nil, err
	}
	s.TypeDistribution, err = r.distribution(ctx,
		`SELECT meal_type, COUNT(*) FROM meals WHERE meal_type <> '' GROUP BY meal_type`)
	return s, err
}

func (r *repoPG) SystemStats(ctx context.Context) (*SystemStats, error) {
	s := &SystemStats{}
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM ingredient_nutrition), (SELECT COUNT(*) FROM system_settings)`).
		Scan(&s.Ingredients, &s.Settings)
	return s, err
}

func (r *repoPG) UserGrowth(ctx context.Context, since time.Time) ([]DailyCount, error) {
	return r.daily(ctx, `
		SELECT date_trunc('day', created_at) AS day, COUNT(*) FROM users
		WHERE created_at >= $1 GROUP BY day ORDER BY day`, since)
}

func (r *repoPG) RoleDistribution(ctx context.Context) ([]LabelCount, error) {
	return r.labelCounts(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role ORDER BY role`)
}

func (r *repoPG) ActiveUsers(ctx context.Context, since time.Time) (int, error) {
	return r.count(ctx, `
		SELECT COUNT(DISTINCT id) FROM (
			SELECT patient_id AS id FROM appointments WHERE scheduled_at >= $1
			UNION SELECT provider_id FROM appointments WHERE scheduled_at >= $1
			UNION SELECT sender_id FROM messages WHERE sent_at >= $1
		) active`, since)
}

func (r *repoPG) AppointmentTrend(ctx context.Context, since time.Time) ([]DailyCount, error) {
	return r.daily(ctx, `
		SELECT date_trunc('day', scheduled_at) AS day, COUNT(*) FROM appointments
		WHERE scheduled_at >= $1 GROUP BY day ORDER BY day`, since)
}

func (r *repoPG) AppointmentStatuses(ctx context.Context) ([]LabelCount, error) {
	return r.labelCounts(ctx, `SELECT status, COUNT(*) FROM appointments GROUP BY status ORDER BY status`)
}

func (r *repoPG) TopProviders(ctx context.Context, since time.Time, limit int) ([]LabelCount, error) {
	return r.labelCounts(ctx, `
		SELECT u.username, COUNT(a.id) AS n FROM appointments a
		JOIN users u ON u.id = a.provider_id
		WHERE a.scheduled_at >= $1
		GROUP BY u.id, u.username ORDER BY n DESC, u.username LIMIT $2`, since, limit)
}

func (r *repoPG) RecordActivity(ctx context.Context, a *Activity) error {
	a.ID = uuid.New()
	details := a.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO user_activities (id, user_id, activity_type, description, ip_address, user_agent, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING occurred_at`,
		a.ID, a.UserID, a.ActivityType, a.Description, a.IPAddress, a.UserAgent, details).Scan(&a.OccurredAt)
}

func (r *repoPG) ListActivities(ctx context.Context, since time.Time, limit int) ([]*Activity, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, user_id, activity_type, description, ip_address, user_agent, details, occurred_at
		FROM user_activities WHERE occurred_at >= $1
		ORDER BY occurred_at DESC LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.ActivityType, &a.Description, &a.IPAddress,
			&a.UserAgent, &a.Details, &a.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *repoPG) RecordMetric(ctx context.Context, m *Metric) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO system_metrics (id, metric_name, metric_value, metric_unit, category)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING recorded_at`,
		m.ID, m.MetricName, m.MetricValue, m.MetricUnit, m.Category).Scan(&m.RecordedAt)
}

func (r *repoPG) ListMetrics(ctx context.Context, since time.Time, category string) ([]*Metric, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, metric_name, metric_value, metric_unit, category, recorded_at
		FROM system_metrics WHERE recorded_at >= $1 AND ($2 = '' OR category = $2)
		ORDER BY recorded_at DESC`, since, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Metric
	for rows.Next() {
		var m Metric
		if err := rows.Scan(&m.ID, &m.MetricName, &m.MetricValue, &m.MetricUnit, &m.Category, &m.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
