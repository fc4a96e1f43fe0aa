package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/aegis-sec/vaultguard/internal/domain"
	"github.com/aegis-sec/vaultguard/internal/notify"
	"github.com/aegis-sec/vaultguard/pkg/security"
)

// ForgotPassword issues a single-use reset token and mails the link.
// Returns the link so the handler can mirror it into the response, matching
// the original behavior.
func (u *AuthUsecase) ForgotPassword(ctx context.Context, email string) (string, error) {
	user, err := u.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.NewNotFoundError("no account with that email")
		}
		return "", fmt.Errorf("load user: %w", err)
	}

	token, err := security.NewOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	user.ResetPasswordToken = security.HashOpaque(token)
	user.ResetPasswordExpire = u.now().Add(u.cfg.ResetTTL)
	if err := u.userRepo.Update(ctx, user); err != nil {
		return "", fmt.Errorf("persist reset token: %w", err)
	}

	link := u.resetLink(token)
	u.sendLink(ctx, notify.KindPasswordReset, user.Email, link)
	return link, nil
}

// ResetPassword consumes a reset token, replaces the password, revokes every
// session and re-authenticates the caller. ForceReauth stays set until the
// next completed password login, so a stolen mailbox cannot ride a magic
// link past the new password.
func (u *AuthUsecase) ResetPassword(ctx context.Context, rawToken, newPassword string, fp domain.Fingerprint) (*AuthResult, error) {
	if err := security.CheckPasswordPolicy(newPassword); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	user, err := u.userRepo.GetByResetToken(ctx, security.HashOpaque(rawToken))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.NewInvalidOrExpiredTokenError()
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	now := u.now()
	if !user.ResetPasswordExpire.After(now) {
		return nil, domain.NewInvalidOrExpiredTokenError()
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user.PasswordHash = passwordHash
	user.ResetPasswordToken = ""
	user.ResetPasswordExpire = now
	user.LoginAttempts = 0
	user.LockUntil = nil
	user.ForceReauth = true
	user.RevokeAllSessions()

	refreshToken, refreshExpiry, err := u.issueSession(user, fp)
	if err != nil {
		return nil, err
	}
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("persist password reset: %w", err)
	}

	accessToken, err := security.GenerateAccessToken(user.ID, user.IsEmailVerified, user.MFAEnabled, u.cfg.AccessSecret, u.cfg.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	u.logger.Info("password reset completed", "user_id", user.ID)
	return &AuthResult{
		User:             user.Public(),
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// VerifyEmail consumes a verification token and marks the email verified.
func (u *AuthUsecase) VerifyEmail(ctx context.Context, rawToken string) (*domain.PublicUser, error) {
	user, err := u.userRepo.GetByVerificationToken(ctx, security.HashOpaque(rawToken))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.NewInvalidOrExpiredTokenError()
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !user.EmailVerificationExpire.After(u.now()) {
		return nil, domain.NewInvalidOrExpiredTokenError()
	}

	user.IsEmailVerified = true
	user.EmailVerificationToken = ""
	user.EmailVerificationExpire = u.now()
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("persist verification: %w", err)
	}

	u.logger.Info("email verified", "user_id", user.ID)
	view := user.Public()
	return &view, nil
}

// ResendVerification reissues the verification link for an unverified email.
func (u *AuthUsecase) ResendVerification(ctx context.Context, email string) (string, error) {
	user, err := u.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.NewNotFoundError("no account with that email")
		}
		return "", fmt.Errorf("load user: %w", err)
	}

	if user.IsEmailVerified {
		return "", domain.NewValidationError("email is already verified")
	}

	return u.reissueVerification(ctx, user)
}

// RequestMagicLink issues a single-use passwordless login token.
func (u *AuthUsecase) RequestMagicLink(ctx context.Context, email string) (string, error) {
	user, err := u.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.NewNotFoundError("no account with that email")
		}
		return "", fmt.Errorf("load user: %w", err)
	}

	return u.issueMagicChallenge(ctx, user)
}

// MagicLogin consumes a magic-link token: it marks the email verified
// (possession of the mailbox is the proof) and completes a login.
func (u *AuthUsecase) MagicLogin(ctx context.Context, rawToken string, fp domain.Fingerprint) (*AuthResult, error) {
	user, err := u.userRepo.GetByMagicLinkToken(ctx, security.HashOpaque(rawToken))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.NewInvalidOrExpiredTokenError()
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	now := u.now()
	if !user.MagicLinkExpire.After(now) {
		return nil, domain.NewInvalidOrExpiredTokenError()
	}

	if user.ForceReauth {
		return nil, domain.NewUnauthorizedError("password sign-in required after reset")
	}

	user.MagicLinkToken = ""
	user.MagicLinkExpire = now
	user.IsEmailVerified = true

	result, err := u.authenticate(ctx, user, fp, false)
	if err != nil {
		return nil, err
	}

	u.logger.Info("magic link login completed", "user_id", user.ID)
	return result, nil
}
