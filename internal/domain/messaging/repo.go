package messaging

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	List(ctx context.Context, box Box, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Message, int, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
}
