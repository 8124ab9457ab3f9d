package identity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mindlab/health/internal/domain/rbac"
	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
	"github.com/mindlab/health/internal/platform/events"
)

// LoginRecorder persists login attempts. The security domain implements it.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, e LoginEvent) error
}

// LoginRecorderFunc adapts a function to LoginRecorder.
type LoginRecorderFunc func(ctx context.Context, e LoginEvent) error

func (f LoginRecorderFunc) RecordLogin(ctx context.Context, e LoginEvent) error { return f(ctx, e) }

// PermissionLister reports the catalog view of a principal.
type PermissionLister interface {
	ListPermissions(ctx context.Context, p *auth.Principal) ([]string, error)
	ModuleAccess(ctx context.Context, p *auth.Principal) (map[string]bool, error)
}

type Service struct {
	users     UserRepository
	authn     *auth.Authenticator
	policy    rbac.Policy
	perms     PermissionLister
	logins    LoginRecorder
	publisher events.Publisher
	tokenTTL  time.Duration
	logger    zerolog.Logger
}

func NewService(users UserRepository, authn *auth.Authenticator, policy rbac.Policy, perms PermissionLister, logger zerolog.Logger) *Service {
	return &Service{
		users:     users,
		authn:     authn,
		policy:    policy,
		perms:     perms,
		publisher: events.Nop{},
		logger:    logger,
	}
}

// SetLoginRecorder attaches the recorder used by Login.
func (s *Service) SetLoginRecorder(r LoginRecorder) { s.logins = r }

// SetPublisher attaches the domain event publisher.
func (s *Service) SetPublisher(p events.Publisher) { s.publisher = p }

// SetTokenTTL overrides the issuer default lifetime.
func (s *Service) SetTokenTTL(ttl time.Duration) { s.tokenTTL = ttl }

func (s *Service) validateNew(ctx context.Context, username, email, password string) error {
	if err := auth.ValidateUsername(username); err != nil {
		return err
	}
	if err := auth.ValidateEmail(email); err != nil {
		return err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}
	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return err
	}
	if taken {
		return apperr.Validation("username already registered")
	}
	taken, err = s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return err
	}
	if taken {
		return apperr.Validation("email already registered")
	}
	return nil
}

func (s *Service) create(ctx context.Context, username, email, password string, role auth.Role) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if err := s.validateNew(ctx, username, email, password); err != nil {
		return nil, err
	}
	hash, err := s.authn.Hasher().Hash(password)
	if err != nil {
		return nil, apperr.Internal(err, "hash password")
	}
	u := &User{Username: username, Email: email, HashedPassword: hash, Role: role, IsActive: true}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Register creates a patient account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	u, err := s.create(ctx, req.Username, req.Email, req.Password, auth.RolePatient)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("username", u.Username).Msg("user registered")
	return u, nil
}

// CreateAdmin creates an admin account. Used by the maintenance CLI.
func (s *Service) CreateAdmin(ctx context.Context, username, email, password string) (*User, error) {
	return s.create(ctx, username, email, password, auth.RoleAdmin)
}

// ResetPassword replaces the password of username. Used by the maintenance CLI.
func (s *Service) ResetPassword(ctx context.Context, username, password string) error {
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	hash, err := s.authn.Hasher().Hash(password)
	if err != nil {
		return apperr.Internal(err, "hash password")
	}
	return s.users.UpdatePassword(ctx, u.ID, hash)
}

// Login authenticates and issues a bearer token. Every attempt is handed to
// the login recorder; recorder failures are logged only.
func (s *Service) Login(ctx context.Context, req TokenRequest, ip, userAgent string) (*auth.AccessToken, error) {
	if req.Username == "" || req.Password == "" {
		return nil, apperr.Validation("username and password are required")
	}

	acct, err := s.authn.Authenticate(ctx, req.Username, req.Password)
	evt := LoginEvent{Username: req.Username, IPAddress: ip, UserAgent: userAgent, Success: err == nil}
	if err != nil {
		evt.FailureReason = "invalid_credentials"
		if !apperr.IsUnauthenticated(err) {
			evt.FailureReason = "error"
		}
	} else {
		id := acct.ID
		evt.UserID = &id
	}
	s.recordLogin(ctx, evt)
	if err != nil {
		return nil, err
	}
	return s.authn.IssueToken(acct, s.tokenTTL)
}

func (s *Service) recordLogin(ctx context.Context, evt LoginEvent) {
	if s.logins == nil {
		return
	}
	if err := s.logins.RecordLogin(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("username", evt.Username).Msg("failed to record login attempt")
	}
}

func (s *Service) Me(ctx context.Context, p *auth.Principal) (*User, error) {
	return s.users.GetByID(ctx, p.ID)
}

func (s *Service) Permissions(ctx context.Context, p *auth.Principal) (*PermissionsResponse, error) {
	names, err := s.perms.ListPermissions(ctx, p)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return &PermissionsResponse{Role: p.Role, Permissions: names}, nil
}

func (s *Service) Modules(ctx context.Context, p *auth.Principal) (*ModulesResponse, error) {
	mods, err := s.perms.ModuleAccess(ctx, p)
	if err != nil {
		return nil, err
	}
	return &ModulesResponse{Role: p.Role, Modules: mods}, nil
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, f, limit, offset)
}

// Get returns a user the caller may see.
func (s *Service) Get(ctx context.Context, p *auth.Principal, id uuid.UUID) (*User, error) {
	if err := rbac.RequireUserData(ctx, s.policy, p, id); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, id)
}

func (s *Service) UpdateRole(ctx context.Context, p *auth.Principal, id uuid.UUID, roleName string) (*RoleUpdateResponse, error) {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return nil, err
	}
	role, err := auth.ParseRole(roleName)
	if err != nil {
		return nil, apperr.Validation("invalid role: %s", roleName)
	}
	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", id.String()).
		Str("new_role", role.String()).
		Str("changed_by", p.ID.String()).
		Msg("user role updated")
	events.Emit(ctx, s.publisher, s.logger, events.New(events.UserRoleChanged, events.UserTopic(id),
		map[string]any{"user_id": id, "new_role": role}))

	return &RoleUpdateResponse{Message: "User role updated to " + role.String(), UserID: id, NewRole: role}, nil
}

func (s *Service) UpdateStatus(ctx context.Context, p *auth.Principal, id uuid.UUID, req StatusUpdate) (*User, error) {
	if req.IsActive == nil {
		return nil, apperr.Validation("is_active is required")
	}
	if id == p.ID {
		return nil, apperr.Validation("cannot change your own account status")
	}
	if err := s.users.UpdateStatus(ctx, id, *req.IsActive); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	if id == p.ID {
		return apperr.Validation("cannot delete your own account")
	}
	return s.users.Delete(ctx, id)
}
