package messaging

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

const msgSelect = `SELECT m.id, m.sender_id, m.recipient_id, m.subject, m.content, m.is_read, m.sent_at,
	s.username, r.username
	FROM messages m
	JOIN users s ON s.id = m.sender_id
	JOIN users r ON r.id = m.recipient_id`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Subject, &m.Content, &m.IsRead, &m.SentAt,
		&m.SenderName, &m.RecipientName)
	if err != nil {
		return nil, db.NotFound(err, "message")
	}
	return &m, nil
}

func (r *repoPG) Create(ctx context.Context, m *Message) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO messages (id, sender_id, recipient_id, subject, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING sent_at`,
		m.ID, m.SenderID, m.RecipientID, m.Subject, m.Content).Scan(&m.SentAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	return scanMessage(r.conn(ctx).QueryRow(ctx, msgSelect+` WHERE m.id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, box Box, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Message, int, error) {
	var where string
	var args []interface{}
	switch box {
	case Inbox:
		where, args = "m.recipient_id = $1", []interface{}{userID}
	case Sent:
		where, args = "m.sender_id = $1", []interface{}{userID}
	default:
		where = "1=1"
	}
	if unreadOnly {
		where += " AND NOT m.is_read"
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM messages m WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	q := fmt.Sprintf(`%s WHERE %s ORDER BY m.sent_at DESC LIMIT $%d OFFSET $%d`, msgSelect, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *repoPG) MarkRead(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE messages SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("message")
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("message")
	}
	return nil
}

func (r *repoPG) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}
