package auth

import (
	"errors"
	"fmt"
	"time"

	"crowdwatch/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the cookie carrying the session token.
const CookieName = "access_token_cookie"

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the payload of a session token. The subject is the user email.
type Claims struct {
	Name string     `json:"name"`
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Email() string {
	return c.Subject
}

// IsAdmin is the only role check performed on requests.
func (c *Claims) IsAdmin() bool {
	return c != nil && c.Role == model.RoleAdmin
}

// TokenManager issues and verifies HS256 session tokens signed with one
// shared secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue returns a signed token for user and its expiry time.
func (m *TokenManager) Issue(user *model.User) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)

	claims := Claims{
		Name: user.Name,
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies the signature and expiry of token.
func (m *TokenManager) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
