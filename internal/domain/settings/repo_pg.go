package settings

import (
	"context"
	"fmt"

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

const settingCols = `id, setting_key, setting_value, setting_type, category, description,
	is_public, is_editable, created_by, updated_by, created_at, updated_at`

func scanSetting(row pgx.Row) (*Setting, error) {
	var s Setting
	err := row.Scan(&s.ID, &s.Key, &s.Value, &s.Type, &s.Category, &s.Description,
		&s.IsPublic, &s.IsEditable, &s.CreatedBy, &s.UpdatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err, "setting")
	}
	return &s, nil
}

func (r *repoPG) List(ctx context.Context, publicOnly bool, category string) ([]*Setting, error) {
	q := `SELECT ` + settingCols + ` FROM system_settings WHERE ($1 = FALSE OR is_public) AND ($2 = '' OR category = $2)
		ORDER BY category, setting_key`
	rows, err := r.conn(ctx).Query(ctx, q, publicOnly, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Setting
	for rows.Next() {
		s, err := scanSetting(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *repoPG) Get(ctx context.Context, key string) (*Setting, error) {
	return scanSetting(r.conn(ctx).QueryRow(ctx, `SELECT `+settingCols+` FROM system_settings WHERE setting_key = $1`, key))
}

func (r *repoPG) Create(ctx context.Context, s *Setting) error {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO system_settings (id, setting_key, setting_value, setting_type, category,
			description, is_public, is_editable, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING created_at, updated_at`,
		s.ID, s.Key, s.Value, s.Type, s.Category, s.Description, s.IsPublic, s.IsEditable, s.CreatedBy).
		Scan(&s.CreatedAt, &s.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Validation("setting with key '%s' already exists", s.Key)
	}
	return err
}

func (r *repoPG) Update(ctx context.Context, s *Setting) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE system_settings SET setting_value = $2, setting_type = $3, category = $4,
			description = $5, is_public = $6, is_editable = $7, updated_by = $8, updated_at = NOW()
		WHERE setting_key = $1
		RETURNING updated_at`,
		s.Key, s.Value, s.Type, s.Category, s.Description, s.IsPublic, s.IsEditable, s.UpdatedBy).
		Scan(&s.UpdatedAt)
	return db.NotFound(err, "setting")
}

func (r *repoPG) Delete(ctx context.Context, key string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM system_settings WHERE setting_key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("setting")
	}
	return nil
}

func (r *repoPG) Categories(ctx context.Context, publicOnly bool) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT DISTINCT category FROM system_settings WHERE ($1 = FALSE OR is_public) ORDER BY category`, publicOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM system_settings`).Scan(&n)
	return n, err
}
