package identity

import (
	"context"

	"github.com/mindlab/health/internal/platform/auth"
)

// accountStore exposes users to the Authenticator.
type accountStore struct{ users UserRepository }

func NewAccountStore(users UserRepository) auth.AccountStore {
	return accountStore{users: users}
}

func (s accountStore) AccountByUsername(ctx context.Context, username string) (*auth.Account, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return &auth.Account{Principal: u.Principal(), PasswordHash: u.HashedPassword, IsActive: u.IsActive}, nil
}
