// Package jwt issues and validates the short-lived access tokens. Tokens are
// stateless by design: logout does not revoke them, they simply age out on
// their own TTL.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"mindwell/internal/identity"
	dErrors "mindwell/pkg/domain-errors"
)

// Claims represents the JWT claims for our access tokens.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service handles JWT creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(signingKey, issuer string, opts ...Option) *Service {
	s := &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) GenerateAccessToken(identityID uuid.UUID, role identity.Role, ttl time.Duration) (token string, expiresAt time.Time, err error) {
	now := s.now()
	expiresAt = now.Add(ttl)
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})

	signed, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses and validates an access token. Expired tokens fail with a
// distinct code so callers can choose silent-refresh over hard-reject.
func (s *Service) Verify(tokenString string) (uuid.UUID, identity.Role, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, "", dErrors.New(dErrors.CodeTokenExpired, "token has expired")
		}
		return uuid.Nil, "", dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return uuid.Nil, "", dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	identityID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	role := identity.Role(claims.Role)
	if !role.Valid() {
		return uuid.Nil, "", dErrors.New(dErrors.CodeUnauthorized, "invalid token role")
	}
	return identityID, role, nil
}
