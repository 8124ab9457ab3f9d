package auth

import (
	"context"
	"time"

	"github.com/mindlab/health/internal/platform/apperr"
)

const (
	msgBadCredentials     = "Incorrect username or password"
	msgInvalidCredentials = "Could not validate credentials"
)

// Account is a principal together with its stored credential.
type Account struct {
	Principal
	PasswordHash string
	IsActive     bool
}

// AccountStore loads accounts by username. A missing account must be
// reported with an apperr NotFound error.
type AccountStore interface {
	AccountByUsername(ctx context.Context, username string) (*Account, error)
}

// Authenticator verifies credentials, issues tokens and resolves them back
// into principals.
type Authenticator struct {
	accounts AccountStore
	hasher   *Hasher
	tokens   *TokenIssuer
}

func NewAuthenticator(accounts AccountStore, hasher *Hasher, tokens *TokenIssuer) *Authenticator {
	return &Authenticator{accounts: accounts, hasher: hasher, tokens: tokens}
}

func (a *Authenticator) Hasher() *Hasher { return a.hasher }

// Authenticate checks username and password. Unknown users, wrong passwords
// and inactive accounts are indistinguishable to the caller, in response and
// in bcrypt work done.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	acct, err := a.accounts.AccountByUsername(ctx, username)
	if err != nil {
		if apperr.IsNotFound(err) {
			a.hasher.VerifyNone(password)
			return nil, apperr.Unauthenticated(msgBadCredentials)
		}
		return nil, err
	}
	if !a.hasher.Verify(password, acct.PasswordHash) || !acct.IsActive {
		return nil, apperr.Unauthenticated(msgBadCredentials)
	}
	return acct, nil
}

// IssueToken signs a token for an authenticated account.
func (a *Authenticator) IssueToken(acct *Account, ttl time.Duration) (*AccessToken, error) {
	tok, err := a.tokens.Issue(acct.Principal, ttl)
	if err != nil {
		return nil, apperr.Internal(err, "issue token")
	}
	return tok, nil
}

// ResolveToken verifies tokenStr and loads the subject's current record.
// Every failure, including a deleted or deactivated subject, yields the same
// Unauthenticated error.
func (a *Authenticator) ResolveToken(ctx context.Context, tokenStr string) (*Principal, error) {
	claims, err := a.tokens.Parse(tokenStr)
	if err != nil {
		return nil, apperr.Unauthenticated(msgInvalidCredentials)
	}

	acct, err := a.accounts.AccountByUsername(ctx, claims.Subject)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Unauthenticated(msgInvalidCredentials)
		}
		return nil, err
	}
	if !acct.IsActive {
		return nil, apperr.Unauthenticated(msgInvalidCredentials)
	}

	p := acct.Principal
	return &p, nil
}
