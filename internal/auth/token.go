// Package auth issues and verifies session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"lpg-service/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("token revoked")
)

type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the caller a verified token identifies.
type Principal struct {
	UserID    uuid.UUID
	Role      models.Role
	TokenID   string
	ExpiresAt time.Time
}

func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// Denylist remembers revoked token ids until they expire.
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type Tokens struct {
	secret   []byte
	ttl      time.Duration
	denylist Denylist
	now      func() time.Time
}

func NewTokens(secret string, ttl time.Duration, denylist Denylist) *Tokens {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Tokens{
		secret:   []byte(secret),
		ttl:      ttl,
		denylist: denylist,
		now:      time.Now,
	}
}

// Issue returns a signed HS256 token for subject and its expiry.
func (t *Tokens) Issue(subject uuid.UUID, role models.Role) (string, time.Time, error) {
	now := t.now().UTC()
	expires := now.Add(t.ttl)

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expires, nil
}

// Verify parses the token and checks it has not been revoked.
func (t *Tokens) Verify(ctx context.Context, raw string) (*Principal, error) {
	p, err := t.parse(raw)
	if err != nil {
		return nil, err
	}

	if t.denylist != nil {
		revoked, err := t.denylist.IsRevoked(ctx, p.TokenID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token: %w", err)
		}
		if revoked {
			return nil, ErrRevokedToken
		}
	}

	return p, nil
}

// Revoke puts the token on the denylist until it would have expired.
func (t *Tokens) Revoke(ctx context.Context, raw string) error {
	p, err := t.parse(raw)
	if err != nil {
		return err
	}
	if t.denylist == nil {
		return nil
	}
	return t.denylist.Revoke(ctx, p.TokenID, p.ExpiresAt)
}

func (t *Tokens) parse(raw string) (*Principal, error) {
	var claims Claims

	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing jti or exp", ErrInvalidToken)
	}

	return &Principal{
		UserID:    id,
		Role:      claims.Role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
