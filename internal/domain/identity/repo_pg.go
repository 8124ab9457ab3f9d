package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
	"github.com/mindlab/health/internal/platform/db"
)

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const userCols = `id, username, email, hashed_password, role, is_active, created_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.Role, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return nil, db.NotFound(err, "user")
	}
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, username, email, hashed_password, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		u.ID, u.Username, u.Email, u.HashedPassword, u.Role, u.IsActive).Scan(&u.CreatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Validation("username or email already registered")
	}
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE username = $1`, username))
}

func (r *userRepoPG) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&ok)
	return ok, err
}

func (r *userRepoPG) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`, email).Scan(&ok)
	return ok, err
}

func (r *userRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*User, int, error) {
	where := []string{"1=1"}
	var args []interface{}
	idx := 1
	if f.Role != "" {
		where = append(where, fmt.Sprintf("role = $%d", idx))
		args = append(args, f.Role)
		idx++
	}
	if f.IsActive != nil {
		where = append(where, fmt.Sprintf("is_active = $%d", idx))
		args = append(args, *f.IsActive)
		idx++
	}
	if f.Search != "" {
		where = append(where, fmt.Sprintf("(username ILIKE $%d OR email ILIKE $%d)", idx, idx))
		args = append(args, "%"+f.Search+"%")
		idx++
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userCols, cond, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

func (r *userRepoPG) exec(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (r *userRepoPG) UpdateRole(ctx context.Context, id uuid.UUID, role auth.Role) error {
	return r.exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, role)
}

func (r *userRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, active bool) error {
	return r.exec(ctx, `UPDATE users SET is_active = $2 WHERE id = $1`, id, active)
}

func (r *userRepoPG) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	return r.exec(ctx, `UPDATE users SET hashed_password = $2 WHERE id = $1`, id, hash)
}

func (r *userRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = $1`, id)
}
