package rbac

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
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

const permCols = `p.id, p.name, p.description, p.module, p.action, p.created_at`

func scanPermissions(rows pgx.Rows) ([]*Permission, error) {
	defer rows.Close()
	var out []*Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Module, &p.Action, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *repoPG) ListPermissions(ctx context.Context) ([]*Permission, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+permCols+` FROM permissions p ORDER BY p.module, p.name`)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

func (r *repoPG) PermissionsForRole(ctx context.Context, role string) ([]*Permission, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+permCols+`
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role = $1
		ORDER BY p.name`, role)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

func (r *repoPG) UpsertPermission(ctx context.Context, d Definition) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO permissions (name, description, module, action)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			module = EXCLUDED.module,
			action = EXCLUDED.action`,
		d.Name, d.Description, d.Module, d.Action)
	return err
}

func (r *repoPG) Grant(ctx context.Context, role, permission string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO role_permissions (role, permission_id)
		SELECT $1, id FROM permissions WHERE name = $2
		ON CONFLICT (role, permission_id) DO NOTHING`, role, permission)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) AppointmentParties(ctx context.Context, appointmentID uuid.UUID) (uuid.UUID, uuid.UUID, error) {
	var patientID, providerID uuid.UUID
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT patient_id, provider_id FROM appointments WHERE id = $1`, appointmentID).
		Scan(&patientID, &providerID)
	if err != nil {
		return uuid.Nil, uuid.Nil, db.NotFound(err, "appointment")
	}
	return patientID, providerID, nil
}

func (r *repoPG) HasAppointmentLink(ctx context.Context, providerID, patientID uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments WHERE provider_id = $1 AND patient_id = $2
		)`, providerID, patientID).Scan(&ok)
	return ok, err
}
