package jwttoken

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewService("test-signing-key", "verity")
	userID := uuid.New()

	token, err := svc.GenerateAccessToken(userID, RoleReviewer, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, RoleReviewer, claims.Role)
	assert.Equal(t, "verity", claims.Issuer)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := NewService("test-signing-key", "verity")

	token, err := svc.GenerateAccessToken(uuid.New(), "", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestValidateRejectsWrongKey(t *testing.T) {
	svc := NewService("test-signing-key", "verity")
	other := NewService("different-key", "verity")

	token, err := svc.GenerateAccessToken(uuid.New(), "", time.Hour)
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := NewService("test-signing-key", "verity")
	_, err := svc.ValidateToken("not-a-jwt")
	require.Error(t, err)
}
