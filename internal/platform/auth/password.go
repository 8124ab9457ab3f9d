package auth

import (
	"net/mail"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/mindlab/health/internal/platform/apperr"
)

// MaxPasswordBytes is the bcrypt input limit. Longer inputs are truncated, so
// only the first 72 bytes of a password are significant.
const MaxPasswordBytes = 72

const (
	minPasswordLen = 8
	maxPasswordLen = 72
	minUsernameLen = 3
	maxUsernameLen = 50
)

// Hasher hashes and verifies passwords with bcrypt.
type Hasher struct {
	cost   int
	logger zerolog.Logger

	dummyOnce sync.Once
	dummy     []byte
}

func NewHasher(cost int, logger zerolog.Logger) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost, logger: logger}
}

func truncate(password string) []byte {
	b := []byte(password)
	if len(b) > MaxPasswordBytes {
		b = b[:MaxPasswordBytes]
	}
	return b
}

func (h *Hasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncate(password), h.cost)
	if err != nil {
		return "", apperr.Internal(err, "hash password")
	}
	return string(hash), nil
}

// Verify reports whether password matches hash. A malformed hash is logged
// and treated as a mismatch.
func (h *Hasher) Verify(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), truncate(password))
	if err == nil {
		return true
	}
	if err != bcrypt.ErrMismatchedHashAndPassword {
		h.logger.Warn().Err(err).Msg("password verification failed on malformed hash")
	}
	return false
}

// VerifyNone spends the same bcrypt work as Verify against a throwaway hash
// at the hasher's cost, for callers that have no stored hash to compare.
func (h *Hasher) VerifyNone(password string) {
	h.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("mindlab-no-account"), h.cost)
		if err != nil {
			h.logger.Warn().Err(err).Msg("failed to build placeholder hash")
			return
		}
		h.dummy = hash
	})
	if h.dummy != nil {
		_ = bcrypt.CompareHashAndPassword(h.dummy, truncate(password))
	}
}

// ValidatePassword enforces 8-72 characters with upper, lower and digit.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLen {
		return apperr.Validation("password must be at least %d characters long", minPasswordLen)
	}
	if n > maxPasswordLen {
		return apperr.Validation("password must be at most %d characters long", maxPasswordLen)
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		return apperr.Validation("password must contain at least one uppercase letter")
	}
	if !lower {
		return apperr.Validation("password must contain at least one lowercase letter")
	}
	if !digit {
		return apperr.Validation("password must contain at least one digit")
	}
	return nil
}

// ValidateUsername enforces 3-50 characters, a leading letter, and only
// letters, digits, underscores and hyphens.
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < minUsernameLen || n > maxUsernameLen {
		return apperr.Validation("username must be between %d and %d characters", minUsernameLen, maxUsernameLen)
	}
	for i, r := range username {
		if i == 0 && !isASCIILetter(r) {
			return apperr.Validation("username must start with a letter")
		}
		if !isASCIILetter(r) && !(r >= '0' && r <= '9') && r != '_' && r != '-' {
			return apperr.Validation("username may only contain letters, numbers, underscores and hyphens")
		}
	}
	return nil
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.Validation("invalid email address")
	}
	return nil
}
