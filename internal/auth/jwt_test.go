package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanishqsrivastavaa/petique-app/internal/config"
	"github.com/tanishqsrivastavaa/petique-app/internal/scheduling"
)

func testManager() *Manager {
	return NewManager(config.AuthConfig{JWTSecret: "test-secret", Issuer: "petique-test", TokenTTL: time.Hour})
}

func TestIssueAndVerify(t *testing.T) {
	m := testManager()

	t.Run("Owner", func(t *testing.T) {
		owner := scheduling.Actor{UserID: uuid.New(), Role: scheduling.RoleOwner}
		token, expiresAt, err := m.Issue(owner)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

		got, err := m.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, owner, got)
	})

	t.Run("Vet", func(t *testing.T) {
		vetID := uuid.New()
		vet := scheduling.Actor{UserID: uuid.New(), Role: scheduling.RoleVet, VetID: &vetID}
		token, _, err := m.Issue(vet)
		require.NoError(t, err)

		got, err := m.Verify(token)
		require.NoError(t, err)
		require.NotNil(t, got.VetID)
		assert.Equal(t, vetID, *got.VetID)
		assert.Equal(t, scheduling.RoleVet, got.Role)
	})

	t.Run("VetWithoutProfile", func(t *testing.T) {
		_, _, err := m.Issue(scheduling.Actor{UserID: uuid.New(), Role: scheduling.RoleVet})
		assert.Error(t, err)
	})

	t.Run("UnknownRole", func(t *testing.T) {
		_, _, err := m.Issue(scheduling.Actor{UserID: uuid.New(), Role: "admin"})
		assert.Error(t, err)
	})
}

func TestVerifyRejects(t *testing.T) {
	m := testManager()
	owner := scheduling.Actor{UserID: uuid.New(), Role: scheduling.RoleOwner}

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewManager(config.AuthConfig{JWTSecret: "other", Issuer: "petique-test", TokenTTL: time.Hour})
		token, _, err := other.Issue(owner)
		require.NoError(t, err)

		_, err = m.Verify(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("WrongIssuer", func(t *testing.T) {
		other := NewManager(config.AuthConfig{JWTSecret: "test-secret", Issuer: "someone-else", TokenTTL: time.Hour})
		token, _, err := other.Issue(owner)
		require.NoError(t, err)

		_, err = m.Verify(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("Expired", func(t *testing.T) {
		expired := NewManager(config.AuthConfig{JWTSecret: "test-secret", Issuer: "petique-test", TokenTTL: -time.Minute})
		token, _, err := expired.Issue(owner)
		require.NoError(t, err)

		_, err = m.Verify(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("NoneAlgorithm", func(t *testing.T) {
		claims := jwt.MapClaims{"sub": owner.UserID.String(), "role": "owner", "iss": "petique-test", "exp": time.Now().Add(time.Hour).Unix()}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = m.Verify(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := m.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	actor := scheduling.Actor{UserID: uuid.New(), Role: scheduling.RoleOwner}
	got, ok := FromContext(NewContext(context.Background(), actor))
	require.True(t, ok)
	assert.Equal(t, actor, got)
}
