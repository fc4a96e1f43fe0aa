package security

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTOTPSecret(t *testing.T) {
	secret, uri, err := GenerateTOTPSecret("alice@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, secret)
	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/"))
	assert.Contains(t, uri, "alice%40example.com")
	assert.Contains(t, uri, "issuer=VaultGuard")
}

func TestVerifyTOTPCode(t *testing.T) {
	secret, _, err := GenerateTOTPSecret("alice@example.com")
	require.NoError(t, err)

	code, err := totp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, VerifyTOTPCode(code, secret))
	assert.False(t, VerifyTOTPCode("000000", secret))
	assert.False(t, VerifyTOTPCode("", secret))
}

func TestVerifyTOTPCodeAcceptsAdjacentStep(t *testing.T) {
	secret, _, err := GenerateTOTPSecret("alice@example.com")
	require.NoError(t, err)

	// A code from the previous 30s window must still pass with skew 1.
	code, err := totp.GenerateCode(secret, time.Now().UTC().Add(-30*time.Second))
	require.NoError(t, err)
	assert.True(t, VerifyTOTPCode(code, secret))
}

func TestGenerateBackupCodes(t *testing.T) {
	codes, err := GenerateBackupCodes()
	require.NoError(t, err)
	require.Len(t, codes, BackupCodeCount)

	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		assert.Len(t, code, 11)
		assert.Equal(t, byte('-'), code[5])
		assert.False(t, seen[code], "duplicate backup code %q", code)
		seen[code] = true
	}
}
