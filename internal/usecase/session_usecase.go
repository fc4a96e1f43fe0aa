package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/aegis-sec/vaultguard/internal/domain"
	"github.com/aegis-sec/vaultguard/pkg/security"
)

// Refresh exchanges a cookie-borne refresh token for a rotated session and a
// new access token.
//
// Reuse protocol: a token whose signature verifies but whose digest and
// session id no longer match any stored session is a replay of an
// already-rotated token. That wipes every session the user has. A matching
// session that merely aged out is removed alone. Legitimate expiry is a
// timing event; reuse is an attack signal.
func (u *AuthUsecase) Refresh(ctx context.Context, rawToken string, fp domain.Fingerprint) (*AuthResult, error) {
	if rawToken == "" {
		return nil, domain.NewUnauthorizedError("no refresh token")
	}

	claims, err := security.ValidateRefreshToken(rawToken, u.cfg.RefreshSecret)
	if err != nil {
		return nil, domain.NewUnauthorizedError("invalid refresh token")
	}

	user, err := u.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.NewUnauthorizedError("invalid refresh token")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	now := u.now()
	digest := security.HashOpaque(rawToken)

	session := user.FindSession(digest, claims.SessionID)
	if session == nil {
		user.RevokeAllSessions()
		if err := u.userRepo.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("persist session wipe: %w", err)
		}
		u.logger.Warn("refresh token reuse detected, all sessions revoked", "user_id", user.ID, "session_id", claims.SessionID)
		return nil, domain.NewReuseDetectedError()
	}

	if session.Expired(now) {
		user.RemoveSession(digest)
		if err := u.userRepo.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("persist expired session removal: %w", err)
		}
		return nil, domain.NewUnauthorizedError("refresh session expired")
	}

	// Rotation: the old session dies in the same write that creates its
	// successor.
	user.RemoveSession(digest)
	refreshToken, refreshExpiry, err := u.issueSession(user, fp)
	if err != nil {
		return nil, err
	}
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("persist rotation: %w", err)
	}

	accessToken, err := security.GenerateAccessToken(user.ID, user.IsEmailVerified, user.MFAEnabled, u.cfg.AccessSecret, u.cfg.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &AuthResult{
		User:             user.Public(),
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// Logout removes the one session matching the presented refresh token.
// Idempotent: a missing, malformed, or already-rotated token is a no-op.
func (u *AuthUsecase) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}

	claims, err := security.ValidateRefreshToken(rawToken, u.cfg.RefreshSecret)
	if err != nil {
		return nil
	}

	user, err := u.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}

	if user.RemoveSession(security.HashOpaque(rawToken)) {
		if err := u.userRepo.Update(ctx, user); err != nil {
			return fmt.Errorf("persist logout: %w", err)
		}
	}
	return nil
}

// RevokeAllSessions clears the caller's entire session list.
func (u *AuthUsecase) RevokeAllSessions(ctx context.Context, userID string) error {
	user, err := u.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.NewNotFoundError("user not found")
		}
		return fmt.Errorf("load user: %w", err)
	}

	user.RevokeAllSessions()
	if err := u.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("persist revocation: %w", err)
	}

	u.logger.Info("all sessions revoked", "user_id", user.ID)
	return nil
}
