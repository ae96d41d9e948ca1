package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tanishqsrivastavaa/petique-app/internal/config"
	"github.com/tanishqsrivastavaa/petique-app/internal/scheduling"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

type petiqueClaims struct {
	jwt.RegisteredClaims
	Role  string     `json:"role"`
	VetID *uuid.UUID `json:"vet_id,omitempty"`
}

// Manager issues and verifies HS256 bearer tokens carrying the caller's user
// id, role and, for vets, the vet profile id.
type Manager struct {
	cfg config.AuthConfig
}

func NewManager(cfg config.AuthConfig) *Manager {
	return &Manager{cfg: cfg}
}

func (m *Manager) Issue(actor scheduling.Actor) (string, time.Time, error) {
	if !actor.Role.Valid() {
		return "", time.Time{}, fmt.Errorf("unknown role %q", actor.Role)
	}
	if actor.Role == scheduling.RoleVet && actor.VetID == nil {
		return "", time.Time{}, errors.New("vet token requires a vet id")
	}

	now := time.Now()
	expiresAt := now.Add(m.cfg.TokenTTL)

	claims := petiqueClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.Issuer,
			Subject:   actor.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now.Add(-10 * time.Second)),
			ID:        uuid.NewString(),
		},
		Role:  string(actor.Role),
		VetID: actor.VetID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify validates tokenString and derives the Actor it was issued for.
func (m *Manager) Verify(tokenString string) (scheduling.Actor, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&petiqueClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(m.cfg.JWTSecret), nil
		},
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return scheduling.Actor{}, ErrTokenExpired
		}
		return scheduling.Actor{}, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*petiqueClaims)
	if !ok || !token.Valid {
		return scheduling.Actor{}, ErrTokenInvalid
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return scheduling.Actor{}, ErrTokenInvalid
	}

	actor := scheduling.Actor{
		UserID: userID,
		Role:   scheduling.Role(claims.Role),
		VetID:  claims.VetID,
	}
	if !actor.Role.Valid() {
		return scheduling.Actor{}, ErrTokenInvalid
	}
	if actor.Role == scheduling.RoleVet && actor.VetID == nil {
		return scheduling.Actor{}, ErrTokenInvalid
	}

	return actor, nil
}

type ctxKey struct{}

func NewContext(ctx context.Context, actor scheduling.Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, actor)
}

func FromContext(ctx context.Context) (scheduling.Actor, bool) {
	actor, ok := ctx.Value(ctxKey{}).(scheduling.Actor)
	return actor, ok
}
