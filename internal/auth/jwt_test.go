package auth

import (
	"testing"
	"time"

	"earnx/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessExpiry:  time.Minute,
		RefreshExpiry: time.Hour,
		Issuer:        "earnx-test",
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	token, err := GenerateAccessToken(cfg, "user-1", "a@example.com", "ADMIN")
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "ADMIN", claims.Role)
	assert.Equal(t, "earnx-test", claims.Issuer)
}

func TestParseAccessTokenRejects(t *testing.T) {
	cfg := testJWTConfig()
	other := testJWTConfig()
	other.AccessSecret = "someone-else"
	forged, err := GenerateAccessToken(other, "user-1", "a@example.com", "ADMIN")
	require.NoError(t, err)

	expiredCfg := testJWTConfig()
	expiredCfg.AccessExpiry = -time.Minute
	expired, err := GenerateAccessToken(expiredCfg, "user-1", "a@example.com", "USER")
	require.NoError(t, err)

	refresh, err := GenerateRefreshToken(cfg, "user-1")
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":       "not-a-token",
		"wrong secret":  forged,
		"expired":       expired,
		"refresh token": refresh,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAccessToken(cfg, token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	token, err := GenerateRefreshToken(cfg, "user-9")
	require.NoError(t, err)

	sub, err := ParseRefreshToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "user-9", sub)

	access, err := GenerateAccessToken(cfg, "user-9", "x@example.com", "USER")
	require.NoError(t, err)
	_, err = ParseRefreshToken(cfg, access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
