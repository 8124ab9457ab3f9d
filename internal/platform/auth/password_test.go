package auth

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mindlab/health/internal/platform/apperr"
)

func newTestHasher() *Hasher {
	return NewHasher(bcrypt.MinCost, zerolog.Nop())
}

func TestHasher_RoundTrip(t *testing.T) {
	h := newTestHasher()
	hash, err := h.Hash("Passw0rd1")
	require.NoError(t, err)

	assert.NotEqual(t, "Passw0rd1", hash)
	assert.NotContains(t, hash, "Passw0rd1")
	assert.True(t, h.Verify("Passw0rd1", hash))
	assert.False(t, h.Verify("Passw0rd2", hash))
}

func TestHasher_SaltedHashesDiffer(t *testing.T) {
	h := newTestHasher()
	a, err := h.Hash("Passw0rd1")
	require.NoError(t, err)
	b, err := h.Hash("Passw0rd1")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHasher_TruncatesPast72Bytes(t *testing.T) {
	h := newTestHasher()
	prefix := strings.Repeat("Ab1", 24) // 72 bytes
	long := prefix + "ignored-suffix"

	hash, err := h.Hash(long)
	require.NoError(t, err)
	assert.True(t, h.Verify(prefix, hash), "prefix should verify against hash of long password")
	assert.True(t, h.Verify(prefix+"other", hash), "bytes past the limit are not significant")

	prefixHash, err := h.Hash(prefix)
	require.NoError(t, err)
	assert.True(t, h.Verify(long, prefixHash))
}

func TestHasher_MalformedHash(t *testing.T) {
	h := newTestHasher()
	assert.False(t, h.Verify("Passw0rd1", "not-a-bcrypt-hash"))
	assert.False(t, h.Verify("Passw0rd1", ""))
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"Passw0rd1", true},
		{"short", false},
		{"alllowercase1", false},
		{"ALLUPPERCASE1", false},
		{"NoDigitsHere", false},
		{"Sh0rt", false},
		{strings.Repeat("Aa1", 25), false},
		{strings.Repeat("Aa1", 24), true},
	}
	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if tt.ok {
			assert.NoError(t, err, tt.password)
		} else {
			require.Error(t, err, tt.password)
			assert.True(t, apperr.IsValidation(err))
		}
	}
}

func TestValidateUsername(t *testing.T) {
	valid := []string{"alice", "bob_smith", "carol-1", "Dan"}
	invalid := []string{"al", "1alice", "_alice", "alice smith", "alice@home", strings.Repeat("a", 51)}

	for _, u := range valid {
		assert.NoError(t, ValidateUsername(u), u)
	}
	for _, u := range invalid {
		assert.Error(t, ValidateUsername(u), u)
	}
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("alice@example.com"))
	assert.Error(t, ValidateEmail("alice"))
	assert.Error(t, ValidateEmail("Alice <alice@example.com>"))
}
