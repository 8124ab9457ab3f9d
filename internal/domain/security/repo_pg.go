package security

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

// filter accumulates numbered WHERE clauses.
type filter struct {
	clauses []string
	args    []interface{}
}

func (f *filter) add(clause string, v interface{}) {
	f.args = append(f.args, v)
	f.clauses = append(f.clauses, fmt.Sprintf(clause, len(f.args)))
}

func (f *filter) where() string {
	if len(f.clauses) == 0 {
		return "1=1"
	}
	return strings.Join(f.clauses, " AND ")
}

// page runs the COUNT for table under f and then the paged select.
func (r *repoPG) page(ctx context.Context, table, sel, order string, f *filter, limit, offset int) (pgx.Rows, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM `+table+` WHERE `+f.where(), f.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(f.args)
	q := fmt.Sprintf(`%s WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`, sel, f.where(), order, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, q, append(f.args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func jsonOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}

// -- events --

const eventSelect = `SELECT id, event_type, event_category, user_id, ip_address, user_agent, endpoint,
	method, status_code, details, risk_level, occurred_at FROM security_events`

func (r *repoPG) CreateEvent(ctx context.Context, e *Event) error {
	e.ID = uuid.New()
	e.Details = jsonOrEmpty(e.Details)
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO security_events (id, event_type, event_category, user_id, ip_address, user_agent,
			endpoint, method, status_code, details, risk_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING occurred_at`,
		e.ID, e.EventType, e.EventCategory, e.UserID, e.IPAddress, e.UserAgent,
		e.Endpoint, e.Method, e.StatusCode, e.Details, e.RiskLevel).Scan(&e.OccurredAt)
}

func (r *repoPG) ListEvents(ctx context.Context, ef EventFilter, limit, offset int) ([]*Event, int, error) {
	f := &filter{}
	if ef.EventType != "" {
		f.add("event_type = $%d", ef.EventType)
	}
	if ef.RiskLevel != "" {
		f.add("risk_level = $%d", ef.RiskLevel)
	}
	if ef.UserID != nil {
		f.add("user_id = $%d", *ef.UserID)
	}
	if !ef.Since.IsZero() {
		f.add("occurred_at >= $%d", ef.Since)
	}
	rows, total, err := r.page(ctx, "security_events", eventSelect, "occurred_at DESC", f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.EventType, &e.EventCategory, &e.UserID, &e.IPAddress, &e.UserAgent,
			&e.Endpoint, &e.Method, &e.StatusCode, &e.Details, &e.RiskLevel, &e.OccurredAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &e)
	}
	return out, total, rows.Err()
}

// -- login attempts --

const attemptSelect = `SELECT id, username, ip_address, user_agent, success, failure_reason, user_id,
	attempted_at FROM login_attempts`

func (r *repoPG) CreateLoginAttempt(ctx context.Context, a *LoginAttempt) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO login_attempts (id, username, ip_address, user_agent, success, failure_reason, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING attempted_at`,
		a.ID, a.Username, a.IPAddress, a.UserAgent, a.Success, a.FailureReason, a.UserID).Scan(&a.AttemptedAt)
}

func (r *repoPG) ListLoginAttempts(ctx context.Context, lf LoginFilter, limit, offset int) ([]*LoginAttempt, int, error) {
	f := &filter{}
	if lf.Username != "" {
		f.add("username = $%d", lf.Username)
	}
	if lf.IPAddress != "" {
		f.add("ip_address = $%d", lf.IPAddress)
	}
	if lf.Success != nil {
		f.add("success = $%d", *lf.Success)
	}
	if !lf.Since.IsZero() {
		f.add("attempted_at >= $%d", lf.Since)
	}
	rows, total, err := r.page(ctx, "login_attempts", attemptSelect, "attempted_at DESC", f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*LoginAttempt
	for rows.Next() {
		var a LoginAttempt
		if err := rows.Scan(&a.ID, &a.Username, &a.IPAddress, &a.UserAgent, &a.Success, &a.FailureReason,
			&a.UserID, &a.AttemptedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &a)
	}
	return out, total, rows.Err()
}

func (r *repoPG) CountFailedLogins(ctx context.Context, ip string, since time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM login_attempts
		WHERE ip_address = $1 AND NOT success AND attempted_at >= $2`, ip, since).Scan(&n)
	return n, err
}

// -- audit logs --

const auditSelect = `SELECT id, user_id, action, resource_type, resource_id, old_values, new_values,
	ip_address, occurred_at FROM audit_logs`

func (r *repoPG) CreateAuditLog(ctx context.Context, l *AuditLog) error {
	l.ID = uuid.New()
	var oldVals, newVals interface{}
	if len(l.OldValues) > 0 {
		oldVals = l.OldValues
	}
	if len(l.NewValues) > 0 {
		newVals = l.NewValues
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO audit_logs (id, user_id, action, resource_type, resource_id, old_values, new_values, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING occurred_at`,
		l.ID, l.UserID, l.Action, l.ResourceType, l.ResourceID, oldVals, newVals, l.IPAddress).Scan(&l.OccurredAt)
}

func (r *repoPG) ListAuditLogs(ctx context.Context, af AuditFilter, limit, offset int) ([]*AuditLog, int, error) {
	f := &filter{}
	if af.UserID != nil {
		f.add("user_id = $%d", *af.UserID)
	}
	if af.Action != "" {
		f.add("action = $%d", af.Action)
	}
	if af.ResourceType != "" {
		f.add("resource_type = $%d", af.ResourceType)
	}
	if !af.Since.IsZero() {
		f.add("occurred_at >= $%d", af.Since)
	}
	rows, total, err := r.page(ctx, "audit_logs", auditSelect, "occurred_at DESC", f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*AuditLog
	for rows.Next() {
		var l AuditLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.ResourceType, &l.ResourceID, &l.OldValues,
			&l.NewValues, &l.IPAddress, &l.OccurredAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &l)
	}
	return out, total, rows.Err()
}

// -- alerts --

const alertSelect = `SELECT id, alert_type, severity, title, description, ip_address, user_id, endpoint,
	event_count, first_seen, last_seen, resolved, resolved_by, resolved_at, resolution_notes
	FROM security_alerts`

func scanAlert(row pgx.Row) (*Alert, error) {
	var a Alert
	err := row.Scan(&a.ID, &a.AlertType, &a.Severity, &a.Title, &a.Description, &a.IPAddress, &a.UserID,
		&a.Endpoint, &a.EventCount, &a.FirstSeen, &a.LastSeen, &a.Resolved, &a.ResolvedBy, &a.ResolvedAt,
		&a.ResolutionNotes)
	if err != nil {
		return nil, db.NotFound(err, "alert")
	}
	return &a, nil
}

func (r *repoPG) CreateAlert(ctx context.Context, a *Alert) error {
	a.ID = uuid.New()
	if a.EventCount == 0 {
		a.EventCount = 1
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO security_alerts (id, alert_type, severity, title, description, ip_address, user_id,
			endpoint, event_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING first_seen, last_seen`,
		a.ID, a.AlertType, a.Severity, a.Title, a.Description, a.IPAddress, a.UserID,
		a.Endpoint, a.EventCount).Scan(&a.FirstSeen, &a.LastSeen)
}

func (r *repoPG) GetAlert(ctx context.Context, id uuid.UUID) (*Alert, error) {
	return scanAlert(r.conn(ctx).QueryRow(ctx, alertSelect+` WHERE id = $1`, id))
}

func (r *repoPG) OpenAlert(ctx context.Context, alertType, ip string) (*Alert, error) {
	return scanAlert(r.conn(ctx).QueryRow(ctx,
		alertSelect+` WHERE alert_type = $1 AND ip_address = $2 AND NOT resolved
		ORDER BY last_seen DESC LIMIT 1`, alertType, ip))
}

func (r *repoPG) BumpAlert(ctx context.Context, a *Alert) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE security_alerts SET event_count = $2, last_seen = $3, description = $4
		WHERE id = $1`, a.ID, a.EventCount, a.LastSeen, a.Description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("alert")
	}
	return nil
}

func (r *repoPG) ResolveAlert(ctx context.Context, a *Alert) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE security_alerts SET resolved = TRUE, resolved_by = $2, resolved_at = $3, resolution_notes = $4
		WHERE id = $1`, a.ID, a.ResolvedBy, a.ResolvedAt, a.ResolutionNotes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("alert")
	}
	return nil
}

func (r *repoPG) ListAlerts(ctx context.Context, af AlertFilter, limit, offset int) ([]*Alert, int, error) {
	f := &filter{}
	if af.Resolved != nil {
		f.add("resolved = $%d", *af.Resolved)
	}
	if af.Severity != "" {
		f.add("severity = $%d", af.Severity)
	}
	rows, total, err := r.page(ctx, "security_alerts", alertSelect, "last_seen DESC", f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *repoPG) Totals(ctx context.Context, since time.Time) (*Totals, error) {
	var t Totals
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM security_events WHERE occurred_at >= $1),
			(SELECT COUNT(*) FROM security_events WHERE occurred_at >= $1 AND risk_level IN ('high', 'critical')),
			(SELECT COUNT(*) FROM login_attempts WHERE attempted_at >= $1),
			(SELECT COUNT(*) FROM login_attempts WHERE attempted_at >= $1 AND NOT success),
			(SELECT COUNT(*) FROM security_alerts WHERE NOT resolved)`, since).
		Scan(&t.Events, &t.HighRiskEvents, &t.LoginAttempts, &t.FailedLogins, &t.ActiveAlerts)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
