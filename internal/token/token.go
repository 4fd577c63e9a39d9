// Package token issues and verifies stateless HS256 session tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalid = errors.New("token is invalid")
	ErrExpired = errors.New("token has expired")
)

// Claims is what a verified token proves about its bearer.
type Claims struct {
	SubjectID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Service struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

type Option func(*Service)

// WithClock overrides time.Now for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(key []byte, ttl time.Duration, opts ...Option) *Service {
	s := &Service{key: key, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue signs a token for subjectID. It has no side effects.
func (s *Service) Issue(subjectID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subjectID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry. Failures wrap ErrExpired or ErrInvalid.
func (s *Service) Verify(raw string) (*Claims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if claims.Subject == "" || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing sub or iat", ErrInvalid)
	}

	return &Claims{
		SubjectID: claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
