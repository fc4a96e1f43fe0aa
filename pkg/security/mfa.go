package security

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	mfaIssuer = "VaultGuard"

	// BackupCodeCount is the fixed number of backup codes issued when MFA is
	// confirmed. The plaintext codes are shown exactly once.
	BackupCodeCount = 8

	backupCodeBytes = 5
)

// GenerateTOTPSecret creates a new TOTP key for the given account and returns
// the Base32 secret together with its otpauth:// provisioning URI.
func GenerateTOTPSecret(accountName string) (secret, provisioningURI string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      mfaIssuer,
		AccountName: accountName,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// VerifyTOTPCode checks a 6-digit code against the secret, accepting one
// time-step of clock skew in either direction.
func VerifyTOTPCode(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// GenerateBackupCodes returns BackupCodeCount random single-use codes in
// plaintext. Callers must store only their HashOpaque digests.
func GenerateBackupCodes() ([]string, error) {
	codes := make([]string, 0, BackupCodeCount)
	for i := 0; i < BackupCodeCount; i++ {
		buf := make([]byte, backupCodeBytes)
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		code := hex.EncodeToString(buf)
		// Dashed xxxxx-xxxxx form, easier to read off a recovery sheet.
		codes = append(codes, code[:5]+"-"+code[5:])
	}
	return codes, nil
}
