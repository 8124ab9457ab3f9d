package messaging

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mindlab/health/internal/domain/rbac"
	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
	"github.com/mindlab/health/internal/platform/events"
)

type Service struct {
	repo      Repository
	checker   auth.PermissionChecker
	publisher events.Publisher
	logger    zerolog.Logger
}

func NewService(repo Repository, checker auth.PermissionChecker, logger zerolog.Logger) *Service {
	return &Service{repo: repo, checker: checker, publisher: events.Nop{}, logger: logger}
}

// SetPublisher attaches the domain event publisher.
func (s *Service) SetPublisher(p events.Publisher) { s.publisher = p }

func (s *Service) Send(ctx context.Context, p *auth.Principal, req SendRequest) (*Message, error) {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, apperr.Validation("subject is required")
	}
	if utf8.RuneCountInString(subject) > maxSubjectLen {
		return nil, apperr.Validation("subject must be at most %d characters", maxSubjectLen)
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperr.Validation("content is required")
	}
	if req.RecipientID == uuid.Nil {
		return nil, apperr.Validation("recipient_id is required")
	}
	ok, err := s.repo.UserExists(ctx, req.RecipientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("recipient")
	}

	m := &Message{SenderID: p.ID, RecipientID: req.RecipientID, Subject: subject, Content: req.Content}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	m.SenderName = p.Username

	events.Emit(ctx, s.publisher, s.logger, events.New(events.MessageCreated, events.UserTopic(m.RecipientID),
		map[string]any{"message_id": m.ID, "sender_id": m.SenderID, "sender_name": p.Username, "subject": m.Subject}))
	return m, nil
}

func (s *Service) Inbox(ctx context.Context, p *auth.Principal, unreadOnly bool, limit, offset int) ([]*Message, int, error) {
	return s.repo.List(ctx, Inbox, p.ID, unreadOnly, limit, offset)
}

func (s *Service) Sent(ctx context.Context, p *auth.Principal, limit, offset int) ([]*Message, int, error) {
	return s.repo.List(ctx, Sent, p.ID, false, limit, offset)
}

func (s *Service) All(ctx context.Context, limit, offset int) ([]*Message, int, error) {
	return s.repo.List(ctx, All, uuid.Nil, false, limit, offset)
}

func isParty(m *Message, p *auth.Principal) bool {
	return m.SenderID == p.ID || m.RecipientID == p.ID
}

// Get returns a message to its sender, its recipient, or a caller holding
// messages.view_all.
func (s *Service) Get(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Message, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if isParty(m, p) {
		return m, nil
	}
	ok, err := s.checker.HasPermission(ctx, p, rbac.PermMessagesViewAll)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Forbidden("access to this message denied")
	}
	return m, nil
}

func (s *Service) MarkRead(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Message, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.RecipientID != p.ID {
		return nil, apperr.Forbidden("only the recipient can mark a message as read")
	}
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	m.IsRead = true
	return m, nil
}

// Delete removes the row for both parties.
func (s *Service) Delete(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !isParty(m, p) {
		return apperr.Forbidden("access to this message denied")
	}
	return s.repo.Delete(ctx, id)
}
