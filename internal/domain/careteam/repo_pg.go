package careteam

import (
	"context"
	"fmt"

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

func (r *repoPG) UserRole(ctx context.Context, id uuid.UUID) (auth.Role, error) {
	var role string
	if err := r.conn(ctx).QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, id).Scan(&role); err != nil {
		return "", db.NotFound(err, "user")
	}
	return auth.Role(role), nil
}

func (r *repoPG) ListPatients(ctx context.Context, providerID *uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	where := "u.role = 'patient'"
	var args []interface{}
	if providerID != nil {
		where += ` AND EXISTS (SELECT 1 FROM patient_providers pp
			WHERE pp.patient_id = u.id AND pp.provider_id = $1 AND pp.relationship_status = 'active')`
		args = append(args, *providerID)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users u WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	q := fmt.Sprintf(`SELECT u.id, u.username, u.email, u.created_at FROM users u
		WHERE %s ORDER BY u.username LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.Username, &p.Email, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &p)
	}
	return out, total, rows.Err()
}

func (r *repoPG) ActiveProviders(ctx context.Context, patientIDs []uuid.UUID) (map[uuid.UUID][]ProviderLink, error) {
	out := make(map[uuid.UUID][]ProviderLink)
	if len(patientIDs) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT pp.patient_id, pp.provider_id, u.username, pp.provider_type, pp.assigned_date
		FROM patient_providers pp
		JOIN users u ON u.id = pp.provider_id
		WHERE pp.patient_id = ANY($1) AND pp.relationship_status = 'active'
		ORDER BY pp.assigned_date`, patientIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var patientID uuid.UUID
		var l ProviderLink
		if err := rows.Scan(&patientID, &l.ProviderID, &l.ProviderName, &l.ProviderType, &l.AssignedDate); err != nil {
			return nil, err
		}
		out[patientID] = append(out[patientID], l)
	}
	return out, rows.Err()
}

const assignmentSelect = `SELECT id, patient_id, provider_id, provider_type, relationship_status,
	assigned_date, notes, created_at, updated_at FROM patient_providers`

func scanAssignment(row pgx.Row) (*Assignment, error) {
	var a Assignment
	err := row.Scan(&a.ID, &a.PatientID, &a.ProviderID, &a.ProviderType, &a.RelationshipStatus,
		&a.AssignedDate, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err, "assignment")
	}
	return &a, nil
}

func (r *repoPG) GetAssignment(ctx context.Context, patientID, providerID uuid.UUID) (*Assignment, error) {
	return scanAssignment(r.conn(ctx).QueryRow(ctx,
		assignmentSelect+` WHERE patient_id = $1 AND provider_id = $2`, patientID, providerID))
}

func (r *repoPG) CreateAssignment(ctx context.Context, a *Assignment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_providers (id, patient_id, provider_id, provider_type, relationship_status, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING assigned_date, created_at, updated_at`,
		a.ID, a.PatientID, a.ProviderID, a.ProviderType, a.RelationshipStatus, a.Notes).
		Scan(&a.AssignedDate, &a.CreatedAt, &a.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Validation("patient is already assigned to this provider")
	}
	return err
}

func (r *repoPG) UpdateAssignment(ctx context.Context, a *Assignment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient_providers
		SET relationship_status = $2, assigned_date = $3, notes = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.RelationshipStatus, a.AssignedDate, a.Notes).Scan(&a.UpdatedAt)
	return db.NotFound(err, "assignment")
}

func (r *repoPG) IsAssigned(ctx context.Context, providerID, patientID uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM patient_providers
			WHERE provider_id = $1 AND patient_id = $2 AND relationship_status = 'active'
		)`, providerID, patientID).Scan(&ok)
	return ok, err
}
