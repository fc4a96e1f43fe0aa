package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/aegis-sec/vaultguard/internal/domain"
	"github.com/aegis-sec/vaultguard/pkg/security"
)

// MFASetupResult carries the pending secret back to the caller so it can be
// rendered as a QR code. The secret is not active until confirmed.
type MFASetupResult struct {
	Secret          string
	ProvisioningURI string
}

// BeginMFASetup generates a temporary TOTP secret. Calling it again before
// confirmation simply replaces the pending secret.
func (u *AuthUsecase) BeginMFASetup(ctx context.Context, userID string) (*MFASetupResult, error) {
	user, err := u.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	secret, uri, err := security.GenerateTOTPSecret(user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	user.TOTPTempSecret = secret
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("persist pending secret: %w", err)
	}

	return &MFASetupResult{Secret: secret, ProvisioningURI: uri}, nil
}

// ConfirmMFASetup verifies the first code against the pending secret and, on
// success, promotes it to the active secret, enables MFA and issues the
// backup codes. The plaintext codes are returned exactly once; only their
// digests are stored.
func (u *AuthUsecase) ConfirmMFASetup(ctx context.Context, userID, totpCode string) ([]string, error) {
	user, err := u.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.TOTPTempSecret == "" {
		return nil, domain.NewValidationError("no MFA setup in progress")
	}
	if !security.VerifyTOTPCode(totpCode, user.TOTPTempSecret) {
		return nil, domain.NewValidationError("invalid TOTP code")
	}

	codes, err := security.GenerateBackupCodes()
	if err != nil {
		return nil, fmt.Errorf("generate backup codes: %w", err)
	}
	digests := make([]string, len(codes))
	for i, code := range codes {
		digests[i] = security.HashOpaque(code)
	}

	user.TOTPSecret = user.TOTPTempSecret
	user.TOTPTempSecret = ""
	user.MFAEnabled = true
	user.BackupCodes = digests
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("persist MFA enablement: %w", err)
	}

	u.logger.Info("mfa enabled", "user_id", user.ID)
	return codes, nil
}

// DisableMFA requires a valid current-secret TOTP code and clears the secret,
// any pending secret and all backup codes as one unit.
func (u *AuthUsecase) DisableMFA(ctx context.Context, userID, totpCode string) error {
	user, err := u.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	if !user.MFAEnabled {
		return domain.NewValidationError("MFA is not enabled")
	}
	if !security.VerifyTOTPCode(totpCode, user.TOTPSecret) {
		return domain.NewUnauthorizedError("invalid TOTP code")
	}

	user.MFAEnabled = false
	user.TOTPSecret = ""
	user.TOTPTempSecret = ""
	user.BackupCodes = nil
	if err := u.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("persist MFA disablement: %w", err)
	}

	u.logger.Info("mfa disabled", "user_id", user.ID)
	return nil
}

func (u *AuthUsecase) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := u.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.NewNotFoundError("user not found")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}
