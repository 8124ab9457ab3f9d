package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is used when neither the issuer nor the caller sets a TTL.
const DefaultTokenTTL = 30 * time.Minute

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims carries the subject username plus the user id and role.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Role   Role   `json:"role"`
}

// AccessToken is the body returned by the token endpoint.
type AccessToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenIssuer signs and parses HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source used for issuing and expiry checks.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

// Issue signs a token for p. ttl <= 0 uses the issuer default.
func (t *TokenIssuer) Issue(p Principal, ttl time.Duration) (*AccessToken, error) {
	if ttl <= 0 {
		ttl = t.ttl
	}
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.Username,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: p.ID.String(),
		Role:   p.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &AccessToken{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// Parse verifies the signature and expiry of tokenStr. A token is accepted
// while now <= exp and rejected once now is strictly after exp.
func (t *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.ExpiresAt == nil || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if t.issuer != "" && claims.Issuer != t.issuer {
		return nil, ErrInvalidToken
	}
	if t.now().After(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}
