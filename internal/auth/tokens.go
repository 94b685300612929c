package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crewdeck/crewdeck/internal/shared"
)

// TokenClaims is the verified content of an access token.
type TokenClaims struct {
	UserID    int64
	ExpiresAt time.Time
}

type accessClaims struct {
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HMAC access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithNow overrides the issuer clock for testing.
func (t *TokenIssuer) WithNow(fn func() time.Time) {
	if fn != nil {
		t.now = fn
	}
}

// Issue creates a signed token for the given user.
func (t *TokenIssuer) Issue(user *User) (string, error) {
	if user == nil {
		return "", errors.New("auth: user required")
	}
	now := t.now().UTC()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a raw token, checking signature and expiry.
// Any failure maps to shared.ErrTokenInvalid so callers treat all token
// problems the same way.
func (t *TokenIssuer) Verify(raw string) (*TokenClaims, error) {
	if raw == "" {
		return nil, shared.ErrTokenInvalid
	}
	var claims accessClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return nil, shared.ErrTokenInvalid
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, shared.ErrTokenInvalid
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		// NumericDate round-trips through time.Unix, which pins the
		// location to time.Local; keep token times in UTC.
		exp = claims.ExpiresAt.Time.UTC()
	}
	return &TokenClaims{UserID: userID, ExpiresAt: exp}, nil
}
