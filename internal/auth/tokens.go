package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"blogspark/internal/domain"
)

const tokenIssuer = "blogspark"

type sessionClaims struct {
	domain.Claims
	jwt.RegisteredClaims
}

// TokenCodec mints and checks self-contained session tokens (HS256 JWTs).
// The secret is copied at construction and never mutated afterwards.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenCodec(secret []byte, ttl time.Duration) *TokenCodec {
	secretCopy := make([]byte, len(secret))
	copy(secretCopy, secret)
	return &TokenCodec{secret: secretCopy, ttl: ttl, now: time.Now}
}

// WithClock returns a copy of the codec reading time from now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

func (c *TokenCodec) TTL() time.Duration { return c.ttl }

func (c *TokenCodec) Issue(u domain.UserWithPassword) (string, error) {
	return c.IssueClaims(domain.ClaimsFor(u))
}

func (c *TokenCodec) IssueClaims(claims domain.Claims) (string, error) {
	if claims.UserID == "" {
		return "", errors.New("issue token: missing user id")
	}
	if claims.Providers == nil {
		claims.Providers = []string{}
	}
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Claims: claims,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   claims.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (c *TokenCodec) Decode(tokenString string) (domain.Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return domain.Claims{}, &domain.AuthError{Reason: domain.AuthInvalid, Err: errors.New("empty token")}
	}

	var sc sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &sc, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Claims{}, &domain.AuthError{Reason: domain.AuthExpired, Err: err}
		}
		return domain.Claims{}, &domain.AuthError{Reason: domain.AuthInvalid, Err: err}
	}
	if !token.Valid || sc.UserID == "" || sc.Subject != sc.UserID {
		return domain.Claims{}, &domain.AuthError{Reason: domain.AuthInvalid}
	}
	return sc.Claims, nil
}
