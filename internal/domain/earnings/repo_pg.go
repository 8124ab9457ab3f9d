package earnings

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

// NUMERIC columns are read as float8.
const structureSelect = `SELECT id, provider_role, service_type, commission_rate::float8, minimum_amount::float8,
	maximum_commission::float8, is_active, created_at, updated_at FROM commission_structures`

func scanStructure(row pgx.Row) (*CommissionStructure, error) {
	var cs CommissionStructure
	err := row.Scan(&cs.ID, &cs.ProviderRole, &cs.ServiceType, &cs.CommissionRate, &cs.MinimumAmount,
		&cs.MaximumCommission, &cs.IsActive, &cs.CreatedAt, &cs.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err, "commission structure")
	}
	return &cs, nil
}

func (r *repoPG) ActiveStructure(ctx context.Context, role, serviceType string) (*CommissionStructure, error) {
	return scanStructure(r.conn(ctx).QueryRow(ctx, structureSelect+`
		WHERE provider_role = $1 AND service_type = $2 AND is_active
		ORDER BY updated_at DESC LIMIT 1`, role, serviceType))
}

func (r *repoPG) ListStructures(ctx context.Context, activeOnly bool) ([]*CommissionStructure, error) {
	q := structureSelect
	if activeOnly {
		q += ` WHERE is_active`
	}
	rows, err := r.conn(ctx).Query(ctx, q+` ORDER BY provider_role, service_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CommissionStructure
	for rows.Next() {
		cs, err := scanStructure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (r *repoPG) GetStructure(ctx context.Context, id uuid.UUID) (*CommissionStructure, error) {
	return scanStructure(r.conn(ctx).QueryRow(ctx, structureSelect+` WHERE id = $1`, id))
}

func (r *repoPG) CreateStructure(ctx context.Context, cs *CommissionStructure) error {
	cs.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO commission_structures (id, provider_role, service_type, commission_rate, minimum_amount,
			maximum_commission, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		cs.ID, cs.ProviderRole, cs.ServiceType, cs.CommissionRate, cs.MinimumAmount,
		cs.MaximumCommission, cs.IsActive).Scan(&cs.CreatedAt, &cs.UpdatedAt)
}

func (r *repoPG) UpdateStructure(ctx context.Context, cs *CommissionStructure) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE commission_structures
		SET commission_rate = $2, minimum_amount = $3, maximum_commission = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		cs.ID, cs.CommissionRate, cs.MinimumAmount, cs.MaximumCommission, cs.IsActive).Scan(&cs.UpdatedAt)
	return db.NotFound(err, "commission structure")
}

func (r *repoPG) DeleteStructure(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM commission_structures WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("commission structure")
	}
	return nil
}

const recordSelect = `SELECT e.id, e.provider_id, pr.username, e.patient_id, pt.username, e.appointment_id,
	e.service_type, e.base_amount::float8, e.commission_rate::float8, e.commission_amount::float8,
	e.net_earnings::float8, e.payment_status, e.service_date, e.notes, e.created_at, e.updated_at
	FROM earnings_records e
	JOIN users pr ON pr.id = e.provider_id
	LEFT JOIN users pt ON pt.id = e.patient_id`

func scanRecord(row pgx.Row) (*Record, error) {
	var e Record
	err := row.Scan(&e.ID, &e.ProviderID, &e.ProviderName, &e.PatientID, &e.PatientName, &e.AppointmentID,
		&e.ServiceType, &e.BaseAmount, &e.CommissionRate, &e.CommissionAmount,
		&e.NetEarnings, &e.PaymentStatus, &e.ServiceDate, &e.Notes, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err, "earnings record")
	}
	return &e, nil
}

func (r *repoPG) Create(ctx context.Context, e *Record) error {
	e.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO earnings_records (id, provider_id, patient_id, appointment_id, service_type, base_amount,
			commission_rate, commission_amount, net_earnings, payment_status, service_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		e.ID, e.ProviderID, e.PatientID, e.AppointmentID, e.ServiceType, e.BaseAmount,
		e.CommissionRate, e.CommissionAmount, e.NetEarnings, e.PaymentStatus, e.ServiceDate, e.Notes).
		Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx, recordSelect+` WHERE e.id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Record, int, error) {
	var clauses []string
	var args []interface{}
	if f.ProviderID != nil {
		args = append(args, *f.ProviderID)
		clauses = append(clauses, fmt.Sprintf("e.provider_id = $%d", len(args)))
	}
	if f.PaymentStatus != "" {
		args = append(args, f.PaymentStatus)
		clauses = append(clauses, fmt.Sprintf("e.payment_status = $%d", len(args)))
	}
	where := "1=1"
	if len(clauses) > 0 {
		where = strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM earnings_records e WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	q := fmt.Sprintf(`%s WHERE %s ORDER BY e.service_date DESC LIMIT $%d OFFSET $%d`, recordSelect, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		e, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE earnings_records SET payment_status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("earnings record")
	}
	return nil
}

const sums = `COALESCE(SUM(base_amount), 0)::float8, COALESCE(SUM(commission_amount), 0)::float8,
	COALESCE(SUM(net_earnings), 0)::float8, COUNT(*)`

func (r *repoPG) Monthly(ctx context.Context, providerID *uuid.UUID, since time.Time) ([]MonthTotals, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT to_char(date_trunc('month', service_date), 'YYYY-MM') AS month, `+sums+`
		FROM earnings_records
		WHERE service_date >= $1 AND ($2::uuid IS NULL OR provider_id = $2)
		GROUP BY month ORDER BY month`, since, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MonthTotals
	for rows.Next() {
		var m MonthTotals
		if err := rows.Scan(&m.Month, &m.Gross, &m.Commission, &m.Net, &m.Services); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repoPG) Totals(ctx context.Context, providerID *uuid.UUID) (*Totals, error) {
	var t Totals
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+sums+` FROM earnings_records
		WHERE ($1::uuid IS NULL OR provider_id = $1)`, providerID).
		Scan(&t.Gross, &t.Commission, &t.Net, &t.Services)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repoPG) ByRole(ctx context.Context) ([]RoleTotals, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT u.role, COUNT(DISTINCT e.provider_id), COALESCE(SUM(e.base_amount), 0)::float8,
			COALESCE(SUM(e.commission_amount), 0)::float8, COALESCE(SUM(e.net_earnings), 0)::float8, COUNT(*)
		FROM earnings_records e
		JOIN users u ON u.id = e.provider_id
		GROUP BY u.role ORDER BY u.role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoleTotals
	for rows.Next() {
		var rt RoleTotals
		if err := rows.Scan(&rt.ProviderRole, &rt.Providers, &rt.Gross, &rt.Commission, &rt.Net, &rt.Services); err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

func (r *repoPG) CountByStatus(ctx context.Context, status string) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM earnings_records WHERE payment_status = $1`, status).Scan(&n)
	return n, err
}

func (r *repoPG) UserRole(ctx context.Context, id uuid.UUID) (auth.Role, error) {
	var role string
	if err := r.conn(ctx).QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, id).Scan(&role); err != nil {
		return "", db.NotFound(err, "user")
	}
	return auth.Role(role), nil
}

func (r *repoPG) AppointmentExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}
