package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("Str0ng!Pass")
	require.NoError(t, err)
	require.NotEqual(t, "Str0ng!Pass", hash)

	ok, err := ComparePassword("Str0ng!Pass", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ComparePassword("Str0ng!Pasz", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestComparePasswordMalformedHash(t *testing.T) {
	_, err := ComparePassword("whatever", "not-a-bcrypt-hash")
	assert.Error(t, err)
}

func TestCheckPasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "Str0ngPass", false},
		{"too short", "Ab1", true},
		{"no uppercase", "str0ngpass", true},
		{"no lowercase", "STR0NGPASS", true},
		{"no digit", "StrongPass", true},
		{"symbols allowed", "Str0ng!Pass", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPasswordPolicy(tt.password)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrWeakPassword)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken("user-1", true, false, "secret", 15*time.Minute)
	require.NoError(t, err)

	claims, err := ValidateAccessToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.True(t, claims.EmailVerified)
	assert.False(t, claims.MFAEnabled)
}

func TestAccessTokenWrongSecret(t *testing.T) {
	token, err := GenerateAccessToken("user-1", true, false, "secret", 15*time.Minute)
	require.NoError(t, err)

	_, err = ValidateAccessToken(token, "other-secret")
	assert.Error(t, err)
}

func TestAccessTokenExpired(t *testing.T) {
	token, err := GenerateAccessToken("user-1", true, false, "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateAccessToken(token, "secret")
	assert.Error(t, err)
}

func TestRefreshTokenCarriesSession(t *testing.T) {
	token, err := GenerateRefreshToken("user-1", "sess-42", "refresh-secret", 7*24*time.Hour)
	require.NoError(t, err)

	claims, err := ValidateRefreshToken(token, "refresh-secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "sess-42", claims.SessionID)
}

func TestRefreshTokenNotValidAsAccess(t *testing.T) {
	// Distinct secrets keep the two token families apart.
	token, err := GenerateRefreshToken("user-1", "sess-42", "refresh-secret", time.Hour)
	require.NoError(t, err)

	_, err = ValidateAccessToken(token, "access-secret")
	assert.Error(t, err)
}

func TestOpaqueTokenDigest(t *testing.T) {
	token, err := NewOpaqueToken()
	require.NoError(t, err)
	require.Len(t, token, 64)

	other, err := NewOpaqueToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)

	// Deterministic digest, lookup-by-equality safe.
	assert.Equal(t, HashOpaque(token), HashOpaque(token))
	assert.NotEqual(t, HashOpaque(token), HashOpaque(other))
	assert.NotEqual(t, token, HashOpaque(token))
}
