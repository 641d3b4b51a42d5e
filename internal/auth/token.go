package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/marque-app/marque/internal/domain"
)

// Claims is the JWT payload. The subject carries the user id; the
// admin flag rides along so the middleware can gate admin routes
// without a database read.
type Claims struct {
	Admin bool `json:"adm,omitempty"`
	jwt.RegisteredClaims
}

// Tokens mints and verifies HS256 bearer tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

// Mint issues a signed token for the principal.
func (t *Tokens) Mint(p domain.Principal) (string, error) {
	now := time.Now()
	claims := Claims{
		Admin: p.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates raw and returns the principal it was
// minted for.
func (t *Tokens) Verify(raw string) (domain.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, t.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("invalid token: %w", err)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return domain.Principal{}, fmt.Errorf("invalid token subject %q", claims.Subject)
	}
	return domain.Principal{UserID: id, Admin: claims.Admin}, nil
}

func (t *Tokens) keyFunc(*jwt.Token) (interface{}, error) {
	return t.secret, nil
}
