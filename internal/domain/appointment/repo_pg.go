package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
	"github.com/mindlab/health/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const apptCols = `id, patient_id, provider_id, scheduled_at, duration_minutes, status, notes,
	appointment_type, location, calendar_event_id, sync_with_calendar, last_calendar_sync,
	reminder_sent, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.ProviderID, &a.ScheduledAt, &a.DurationMinutes,
		&a.Status, &a.Notes, &a.AppointmentType, &a.Location, &a.CalendarEventID,
		&a.SyncWithCalendar, &a.LastCalendarSync, &a.ReminderSent, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err, "appointment")
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, provider_id, scheduled_at, duration_minutes,
			status, notes, appointment_type, location, sync_with_calendar)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.ProviderID, a.ScheduledAt, a.DurationMinutes,
		a.Status, a.Notes, a.AppointmentType, a.Location, a.SyncWithCalendar).
		Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET scheduled_at = $2, duration_minutes = $3, status = $4, notes = $5,
			appointment_type = $6, location = $7, sync_with_calendar = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.ScheduledAt, a.DurationMinutes, a.Status, a.Notes,
		a.AppointmentType, a.Location, a.SyncWithCalendar).Scan(&a.UpdatedAt)
	return db.NotFound(err, "appointment")
}

func (r *repoPG) SetCalendarEvent(ctx context.Context, id uuid.UUID, eventID *string, syncedAt time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET calendar_event_id = $2, last_calendar_sync = $3 WHERE id = $1`,
		id, eventID, syncedAt)
	return err
}

func (r *repoPG) query(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	q := fmt.Sprintf(`SELECT %s FROM appointments WHERE %s ORDER BY scheduled_at DESC LIMIT $%d OFFSET $%d`,
		apptCols, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.query(ctx, `patient_id = $1 OR provider_id = $1`, []interface{}{userID}, limit, offset)
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	where := []string{"1=1"}
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.ProviderID != nil {
		add("provider_id = $%d", *f.ProviderID)
	}
	if f.PatientID != nil {
		add("patient_id = $%d", *f.PatientID)
	}
	if f.From != nil {
		add("scheduled_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("scheduled_at < $%d", *f.To)
	}
	return r.query(ctx, strings.Join(where, " AND "), args, limit, offset)
}

func (r *repoPG) GetParty(ctx context.Context, id uuid.UUID) (*Party, error) {
	var p Party
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, username, email, role, is_active FROM users WHERE id = $1`, id).
		Scan(&p.ID, &p.Username, &p.Email, &p.Role, &p.IsActive)
	if err != nil {
		return nil, db.NotFound(err, "user")
	}
	return &p, nil
}

func (r *repoPG) ListByRoles(ctx context.Context, roles []auth.Role) ([]*Party, error) {
	if len(roles) == 0 {
		return nil, apperr.Validation("at least one role is required")
	}
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = role.String()
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, username, email, role, is_active FROM users
		WHERE role = ANY($1) AND is_active
		ORDER BY username`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Party
	for rows.Next() {
		var p Party
		if err := rows.Scan(&p.ID, &p.Username, &p.Email, &p.Role, &p.IsActive); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
