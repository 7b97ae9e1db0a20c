// Package token issues and verifies the signed access tokens that
// authenticate API requests.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"meridian/pkg/domain"
	dErrors "meridian/pkg/domain-errors"
	"meridian/pkg/requestcontext"
)

// DefaultTTL is the access token lifetime when configuration does not
// override it.
const DefaultTTL = 30 * time.Minute

// Claims carries the authenticated identity inside an access token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Service signs and validates access tokens with a shared HS256 key.
type Service struct {
	signingKey []byte
	issuer     string
	tokenTTL   time.Duration
	leeway     time.Duration
}

// NewService creates a token service. A non-positive ttl falls back to
// DefaultTTL.
func NewService(signingKey, issuer string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		tokenTTL:   ttl,
		leeway:     30 * time.Second,
	}
}

// TTL returns the configured token lifetime.
func (s *Service) TTL() time.Duration { return s.tokenTTL }

// Issue signs a token for the given identity. The issue instant comes
// from the request context so the token timestamps line up with the rest
// of the request.
func (s *Service) Issue(ctx context.Context, userID domain.UserID, email, role string) (string, time.Time, error) {
	if userID.IsNil() {
		return "", time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "user ID is required")
	}

	now := requestcontext.Now(ctx)
	expiresAt := now.Add(s.tokenTTL)

	claims := Claims{
		UserID: userID.String(),
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not sign token")
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a raw token: signature, HS256 algorithm,
// expiry (with a small clock-skew leeway), and issuer.
func (s *Service) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "empty token")
	}

	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithLeeway(s.leeway))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token issuer")
	}
	if claims.UserID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
