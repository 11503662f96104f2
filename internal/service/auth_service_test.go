package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/club-collab-api/internal/models"
	"github.com/noah-isme/club-collab-api/pkg/config"
)

func signTestToken(t *testing.T, secret string, claims models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(config.JWTConfig{Secret: "test-secret", Issuer: "club"}, nil)
	signed := signTestToken(t, "test-secret", models.JWTClaims{
		ParticipantID: 42,
		Role:          models.RoleElder,
		Username:      "lena",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "club",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := svc.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.ParticipantID)
	assert.Equal(t, models.RoleElder, claims.Role)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc := NewAuthService(config.JWTConfig{Secret: "test-secret"}, nil)
	signed := signTestToken(t, "other-secret", models.JWTClaims{
		ParticipantID: 42,
		Role:          models.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := svc.ValidateToken(signed)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewAuthService(config.JWTConfig{Secret: "test-secret"}, nil)
	signed := signTestToken(t, "test-secret", models.JWTClaims{
		ParticipantID: 42,
		Role:          models.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := svc.ValidateToken(signed)
	assert.Error(t, err)
}

func TestValidateTokenRejectsUnknownRole(t *testing.T) {
	svc := NewAuthService(config.JWTConfig{Secret: "test-secret"}, nil)
	signed := signTestToken(t, "test-secret", models.JWTClaims{
		ParticipantID: 42,
		Role:          models.Role("ADMIN"),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := svc.ValidateToken(signed)
	assert.Error(t, err)
}
