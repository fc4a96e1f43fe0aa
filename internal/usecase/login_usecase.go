package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/aegis-sec/vaultguard/internal/domain"
	"github.com/aegis-sec/vaultguard/internal/notify"
	"github.com/aegis-sec/vaultguard/pkg/security"
)

// RegisterInput carries the registration payload.
type RegisterInput struct {
	Username     string
	Email        string
	Password     string
	ProfilePhoto string
}

// RegisterResult returns the created user plus the verification link the
// notifier delivered, mirrored into the response payload.
type RegisterResult struct {
	User            domain.PublicUser
	VerificationURL string
}

// Register creates an unverified user with an empty session list and issues
// the email verification token.
func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	in.Email = normalizeEmail(in.Email)

	switch {
	case in.Username == "":
		return nil, domain.NewValidationError("username is required")
	case in.Email == "":
		return nil, domain.NewValidationError("email is required")
	case in.Password == "":
		return nil, domain.NewValidationError("password is required")
	case in.ProfilePhoto == "":
		return nil, domain.NewValidationError("profile photo is required")
	}

	if err := security.CheckPasswordPolicy(in.Password); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	passwordHash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	verificationToken, err := security.NewOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	now := u.now()
	user := &domain.User{
		Username:                in.Username,
		Email:                   in.Email,
		PasswordHash:            passwordHash,
		ProfilePhoto:            in.ProfilePhoto,
		EmailVerificationToken:  security.HashOpaque(verificationToken),
		EmailVerificationExpire: now.Add(u.cfg.VerificationTTL),
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	if err := u.userRepo.Create(ctx, user); err != nil {
		var dup *domain.ErrDuplicateUser
		if errors.As(err, &dup) {
			return nil, domain.NewDuplicateFieldError(dup.Field)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	link := u.verificationLink(verificationToken)
	u.sendLink(ctx, notify.KindEmailVerification, user.Email, link)

	u.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return &RegisterResult{User: user.Public(), VerificationURL: link}, nil
}

// LoginInput carries the login payload plus the request fingerprint.
type LoginInput struct {
	Email       string
	Password    string
	TOTPCode    string
	BackupCode  string
	Fingerprint domain.Fingerprint
}

// Login runs the full gate sequence: lockout, password, email verification,
// MFA, anomaly. The fingerprint baseline moves only when every gate passed.
func (u *AuthUsecase) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	user, err := u.userRepo.GetByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.NewInvalidCredentialsError()
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	now := u.now()

	// Locked accounts never reach the hasher.
	if locked, retry := user.Locked(now); locked {
		return nil, domain.NewAccountLockedError(int(math.Ceil(retry.Seconds())))
	}

	match, err := security.ComparePassword(in.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !match {
		user.RecordLoginFailure(now, u.cfg.MaxLoginAttempts, u.cfg.LockDuration)
		if err := u.userRepo.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("persist failed attempt: %w", err)
		}
		return nil, domain.NewInvalidCredentialsError()
	}

	if !user.IsEmailVerified {
		if _, err := u.reissueVerification(ctx, user); err != nil {
			return nil, err
		}
		return nil, domain.NewEmailNotVerifiedError()
	}

	anomaly := user.IsAnomalous(in.Fingerprint)

	if user.MFAEnabled {
		if err := u.checkMFAProof(user, in.TOTPCode, in.BackupCode); err != nil {
			return nil, err
		}
		// With MFA passed, an anomalous fingerprint is tolerated and only
		// surfaced in the response.
	} else if anomaly {
		if _, err := u.issueMagicChallenge(ctx, user); err != nil {
			return nil, err
		}
		return nil, domain.NewMagicLinkRequiredError()
	}

	result, err := u.authenticate(ctx, user, in.Fingerprint, anomaly)
	if err != nil {
		return nil, err
	}

	u.logger.Info("login completed", "user_id", user.ID, "anomaly", anomaly)
	return result, nil
}

// checkMFAProof accepts either a valid TOTP code or an unused backup code;
// the backup code is consumed on match. Missing and wrong proofs fail alike.
func (u *AuthUsecase) checkMFAProof(user *domain.User, totpCode, backupCode string) error {
	if totpCode != "" && security.VerifyTOTPCode(totpCode, user.TOTPSecret) {
		return nil
	}
	if backupCode != "" && user.ConsumeBackupCode(security.HashOpaque(backupCode)) {
		return nil
	}
	return domain.NewMFARequiredError()
}

// reissueVerification replaces any pending verification token, re-sends the
// link and returns it. Side effect of a login blocked on an unverified email.
func (u *AuthUsecase) reissueVerification(ctx context.Context, user *domain.User) (string, error) {
	token, err := security.NewOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	user.EmailVerificationToken = security.HashOpaque(token)
	user.EmailVerificationExpire = u.now().Add(u.cfg.VerificationTTL)
	if err := u.userRepo.Update(ctx, user); err != nil {
		return "", fmt.Errorf("persist verification token: %w", err)
	}
	link := u.verificationLink(token)
	u.sendLink(ctx, notify.KindEmailVerification, user.Email, link)
	return link, nil
}

// issueMagicChallenge stores a fresh magic-link token without touching the
// fingerprint baseline, so a blocked anomalous attempt leaves no trace in it.
func (u *AuthUsecase) issueMagicChallenge(ctx context.Context, user *domain.User) (string, error) {
	token, err := security.NewOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("generate magic link token: %w", err)
	}
	user.MagicLinkToken = security.HashOpaque(token)
	user.MagicLinkExpire = u.now().Add(u.cfg.MagicLinkTTL)
	if err := u.userRepo.Update(ctx, user); err != nil {
		return "", fmt.Errorf("persist magic link token: %w", err)
	}
	link := u.magicLink(token)
	u.sendLink(ctx, notify.KindMagicLink, user.Email, link)
	return link, nil
}
