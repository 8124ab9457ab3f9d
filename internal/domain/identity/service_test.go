package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/mindlab/health/internal/domain/rbac/rbactest"
	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
	"github.com/mindlab/health/internal/platform/events"
)

// -- Mock Repository --

type mockUserRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{store: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = uuid.New()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.store {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (m *mockUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	return err == nil, nil
}

func (m *mockUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.store {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var r []*User
	for _, u := range m.store {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		r = append(r, u)
	}
	return r, len(r), nil
}

func (m *mockUserRepo) update(id uuid.UUID, fn func(u *User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return apperr.NotFound("user")
	}
	fn(u)
	return nil
}

func (m *mockUserRepo) UpdateRole(_ context.Context, id uuid.UUID, role auth.Role) error {
	return m.update(id, func(u *User) { u.Role = role })
}

func (m *mockUserRepo) UpdateStatus(_ context.Context, id uuid.UUID, active bool) error {
	return m.update(id, func(u *User) { u.IsActive = active })
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	return m.update(id, func(u *User) { u.HashedPassword = hash })
}

func (m *mockUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return apperr.NotFound("user")
	}
	delete(m.store, id)
	return nil
}

func (m *mockUserRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

// -- Test doubles --

type recordedLogins struct {
	mu     sync.Mutex
	events []LoginEvent
	err    error
}

func (r *recordedLogins) RecordLogin(_ context.Context, e LoginEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturePublisher) Publish(_ context.Context, e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

const testSecret = "identity-test-secret-with-enough-bytes"

type testEnv struct {
	svc    *Service
	repo   *mockUserRepo
	rbac   *rbactest.Fixture
	logins *recordedLogins
	pub    *capturePublisher
	authn  *auth.Authenticator
}

func newTestEnv() *testEnv {
	repo := newMockUserRepo()
	hasher := auth.NewHasher(bcrypt.MinCost, zerolog.Nop())
	tokens := auth.NewTokenIssuer([]byte(testSecret), "mindlab-test", 0)
	authn := auth.NewAuthenticator(NewAccountStore(repo), hasher, tokens)
	fx := rbactest.New()

	svc := NewService(repo, authn, fx.Policy, fx.Resolver, zerolog.Nop())
	logins := &recordedLogins{}
	pub := &capturePublisher{}
	svc.SetLoginRecorder(logins)
	svc.SetPublisher(pub)
	return &testEnv{svc: svc, repo: repo, rbac: fx, logins: logins, pub: pub, authn: authn}
}

func (e *testEnv) seedUser(t *testing.T, username string, role auth.Role) *User {
	t.Helper()
	u, err := e.svc.create(context.Background(), username, username+"@example.com", "Passw0rd1", role)
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

func principalOf(u *User) *auth.Principal {
	p := u.Principal()
	return &p
}

// -- Tests --

func TestRegister_Success(t *testing.T) {
	env := newTestEnv()
	u, err := env.svc.Register(context.Background(), RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "Passw0rd1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if u.Role != auth.RolePatient {
		t.Errorf("expected role patient, got %s", u.Role)
	}

	stored, err := env.repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("expected row to exist: %v", err)
	}
	if stored.HashedPassword == "Passw0rd1" || stored.HashedPassword == "" {
		t.Error("expected password to be hashed")
	}
	if !env.authn.Hasher().Verify("Passw0rd1", stored.HashedPassword) {
		t.Error("expected stored hash to verify")
	}
}

func TestRegister_IgnoresRequestedRole(t *testing.T) {
	env := newTestEnv()
	u, err := env.svc.Register(context.Background(), RegisterRequest{
		Username: "mallory", Email: "mallory@example.com", Password: "Passw0rd1", Role: "admin",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != auth.RolePatient {
		t.Errorf("expected patient, got %s", u.Role)
	}
}

func TestRegister_WeakPassword(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Register(context.Background(), RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "short",
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if env.repo.count() != 0 {
		t.Errorf("expected no row created, got %d", env.repo.count())
	}
}

func TestRegister_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"short username", RegisterRequest{Username: "al", Email: "al@example.com", Password: "Passw0rd1"}},
		{"username starts with digit", RegisterRequest{Username: "1alice", Email: "a@example.com", Password: "Passw0rd1"}},
		{"bad email", RegisterRequest{Username: "alice", Email: "not-an-email", Password: "Passw0rd1"}},
		{"no digit", RegisterRequest{Username: "alice", Email: "a@example.com", Password: "Password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			_, err := env.svc.Register(context.Background(), tt.req)
			if !apperr.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", auth.RolePatient)

	_, err := env.svc.Register(context.Background(), RegisterRequest{
		Username: "alice", Email: "other@example.com", Password: "Passw0rd1",
	})
	if !apperr.IsValidation(err) {
		t.Errorf("expected validation error for duplicate username, got %v", err)
	}

	_, err = env.svc.Register(context.Background(), RegisterRequest{
		Username: "alice2", Email: "ALICE@example.com", Password: "Passw0rd1",
	})
	if !apperr.IsValidation(err) {
		t.Errorf("expected validation error for duplicate email, got %v", err)
	}
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv()
	u := env.seedUser(t, "alice", auth.RolePatient)

	tok, err := env.svc.Login(context.Background(), TokenRequest{Username: "alice", Password: "Passw0rd1"}, "10.0.0.1", "go-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.AccessToken == "" || tok.TokenType != "bearer" {
		t.Errorf("unexpected token response: %+v", tok)
	}

	p, err := env.authn.ResolveToken(context.Background(), tok.AccessToken)
	if err != nil {
		t.Fatalf("expected token to resolve: %v", err)
	}
	if p.ID != u.ID {
		t.Errorf("expected subject %s, got %s", u.ID, p.ID)
	}

	if len(env.logins.events) != 1 {
		t.Fatalf("expected 1 login event, got %d", len(env.logins.events))
	}
	evt := env.logins.events[0]
	if !evt.Success || evt.UserID == nil || *evt.UserID != u.ID || evt.IPAddress != "10.0.0.1" {
		t.Errorf("unexpected login event: %+v", evt)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", auth.RolePatient)

	_, err := env.svc.Login(context.Background(), TokenRequest{Username: "alice", Password: "Wrong0000"}, "10.0.0.1", "")
	if !apperr.IsUnauthenticated(err) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	evt := env.logins.events[0]
	if evt.Success || evt.FailureReason != "invalid_credentials" || evt.UserID != nil {
		t.Errorf("unexpected login event: %+v", evt)
	}
}

func TestLogin_RecorderFailureIgnored(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", auth.RolePatient)
	env.logins.err = errors.New("db down")

	if _, err := env.svc.Login(context.Background(), TokenRequest{Username: "alice", Password: "Passw0rd1"}, "", ""); err != nil {
		t.Fatalf("expected login to succeed despite recorder failure, got %v", err)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Login(context.Background(), TokenRequest{Username: "alice"}, "", "")
	if !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUpdateRole_NotFound(t *testing.T) {
	env := newTestEnv()
	admin := env.seedUser(t, "admin", auth.RoleAdmin)

	_, err := env.svc.UpdateRole(context.Background(), principalOf(admin), uuid.New(), "therapist")
	if !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUpdateRole_InvalidRole(t *testing.T) {
	env := newTestEnv()
	admin := env.seedUser(t, "admin", auth.RoleAdmin)
	bob := env.seedUser(t, "bob", auth.RolePatient)

	_, err := env.svc.UpdateRole(context.Background(), principalOf(admin), bob.ID, "superuser")
	if !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUpdateRole_Success(t *testing.T) {
	env := newTestEnv()
	admin := env.seedUser(t, "admin", auth.RoleAdmin)
	bob := env.seedUser(t, "bob", auth.RolePatient)

	out, err := env.svc.UpdateRole(context.Background(), principalOf(admin), bob.ID, "Therapist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.NewRole != auth.RoleTherapist || out.UserID != bob.ID {
		t.Errorf("unexpected response: %+v", out)
	}
	stored, _ := env.repo.GetByID(context.Background(), bob.ID)
	if stored.Role != auth.RoleTherapist {
		t.Errorf("expected stored role therapist, got %s", stored.Role)
	}
	if len(env.pub.events) != 1 || env.pub.events[0].Type != events.UserRoleChanged {
		t.Errorf("expected role change event, got %+v", env.pub.events)
	}
	if env.pub.events[0].Topic != events.UserTopic(bob.ID) {
		t.Errorf("expected user topic, got %s", env.pub.events[0].Topic)
	}
}

func TestUpdateStatus(t *testing.T) {
	env := newTestEnv()
	admin := env.seedUser(t, "admin", auth.RoleAdmin)
	bob := env.seedUser(t, "bob", auth.RolePatient)
	ctx := context.Background()
	off := false

	if _, err := env.svc.UpdateStatus(ctx, principalOf(admin), bob.ID, StatusUpdate{}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for missing is_active, got %v", err)
	}
	if _, err := env.svc.UpdateStatus(ctx, principalOf(admin), admin.ID, StatusUpdate{IsActive: &off}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for self-modification, got %v", err)
	}
	if _, err := env.svc.UpdateStatus(ctx, principalOf(admin), uuid.New(), StatusUpdate{IsActive: &off}); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}

	u, err := env.svc.UpdateStatus(ctx, principalOf(admin), bob.ID, StatusUpdate{IsActive: &off})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.IsActive {
		t.Error("expected user deactivated")
	}

	// deactivated accounts cannot log in
	if _, err := env.svc.Login(ctx, TokenRequest{Username: "bob", Password: "Passw0rd1"}, "", ""); !apperr.IsUnauthenticated(err) {
		t.Errorf("expected unauthenticated for inactive account, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	env := newTestEnv()
	admin := env.seedUser(t, "admin", auth.RoleAdmin)
	bob := env.seedUser(t, "bob", auth.RolePatient)
	ctx := context.Background()

	if err := env.svc.Delete(ctx, principalOf(admin), admin.ID); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for self-deletion, got %v", err)
	}
	if err := env.svc.Delete(ctx, principalOf(admin), bob.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := env.svc.Delete(ctx, principalOf(admin), bob.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestGet_OwnershipRules(t *testing.T) {
	env := newTestEnv()
	alice := env.seedUser(t, "alice", auth.RolePatient)
	bob := env.seedUser(t, "bob", auth.RolePatient)
	therapist := env.seedUser(t, "theo", auth.RoleTherapist)
	coach := env.seedUser(t, "cora", auth.RoleHealthCoach)
	env.rbac.Repo.AddAppointment(uuid.New(), alice.ID, therapist.ID)
	ctx := context.Background()

	if _, err := env.svc.Get(ctx, principalOf(alice), alice.ID); err != nil {
		t.Errorf("expected self access, got %v", err)
	}
	if _, err := env.svc.Get(ctx, principalOf(bob), alice.ID); !apperr.IsForbidden(err) {
		t.Errorf("expected forbidden for other patient, got %v", err)
	}
	if _, err := env.svc.Get(ctx, principalOf(therapist), alice.ID); err != nil {
		t.Errorf("expected linked provider access, got %v", err)
	}
	if _, err := env.svc.Get(ctx, principalOf(coach), alice.ID); !apperr.IsForbidden(err) {
		t.Errorf("expected forbidden for unlinked provider, got %v", err)
	}
}

func TestPermissionsAndModules(t *testing.T) {
	env := newTestEnv()
	alice := env.seedUser(t, "alice", auth.RolePatient)

	perms, err := env.svc.Permissions(context.Background(), principalOf(alice))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, p := range perms.Permissions {
		if p == "appointments.create" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected appointments.create in %v", perms.Permissions)
	}

	mods, err := env.svc.Modules(context.Background(), principalOf(alice))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mods.Modules["appointments"] || mods.Modules["security"] {
		t.Errorf("unexpected module access: %v", mods.Modules)
	}
}

func TestResetPassword(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", auth.RolePatient)
	ctx := context.Background()

	if err := env.svc.ResetPassword(ctx, "alice", "weak"); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if err := env.svc.ResetPassword(ctx, "nobody", "NewPassw0rd"); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := env.svc.ResetPassword(ctx, "alice", "NewPassw0rd"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.svc.Login(ctx, TokenRequest{Username: "alice", Password: "NewPassw0rd"}, "", ""); err != nil {
		t.Errorf("expected login with new password, got %v", err)
	}
}

func TestCreateAdmin(t *testing.T) {
	env := newTestEnv()
	u, err := env.svc.CreateAdmin(context.Background(), "root", "root@example.com", "Adm1nPassword")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != auth.RoleAdmin {
		t.Errorf("expected admin, got %s", u.Role)
	}
}
