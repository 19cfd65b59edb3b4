package auth

import (
	"testing"

	"github.com/capable-sharma/CampusyncCapable/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	token, err := GenerateJWT("user-1", "Student")
	require.NoError(t, err)

	userID, role, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, "Student", role)
}

func TestValidateJWTRejectsGarbage(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	_, _, err := ValidateJWT("not-a-token")
	assert.Error(t, err)
}

func TestValidateJWTRejectsWrongSecret(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"
	token, err := GenerateJWT("user-1", "Student")
	require.NoError(t, err)

	config.AppConfig.JWTSecret = "different-secret"
	t.Cleanup(func() { config.AppConfig.JWTSecret = "test-secret" })

	_, _, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)

	assert.True(t, CheckPasswordHash("secret123", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}
