package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/aegis-sec/vaultguard/internal/domain"
	"github.com/aegis-sec/vaultguard/pkg/security"
)

// Me returns the caller's own user view.
func (u *AuthUsecase) Me(ctx context.Context, userID string) (*domain.PublicUser, error) {
	user, err := u.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := user.Public()
	return &view, nil
}

// UpdateAccountInput carries the optional account changes; empty fields are
// left untouched.
type UpdateAccountInput struct {
	Username string
	Email    string
	Password string
}

// UpdateAccount applies profile changes. Changing the email resets the
// verification state and reissues a verification link; a new password must
// meet the registration policy.
func (u *AuthUsecase) UpdateAccount(ctx context.Context, userID string, in UpdateAccountInput) (*domain.PublicUser, error) {
	user, err := u.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Username != "" {
		user.Username = in.Username
	}

	emailChanged := false
	if email := normalizeEmail(in.Email); email != "" && email != user.Email {
		user.Email = email
		user.IsEmailVerified = false
		emailChanged = true
	}

	if in.Password != "" {
		if err := security.CheckPasswordPolicy(in.Password); err != nil {
			return nil, domain.NewValidationError(err.Error())
		}
		hash, err := security.HashPassword(in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := u.userRepo.Update(ctx, user); err != nil {
		var dup *domain.ErrDuplicateUser
		if errors.As(err, &dup) {
			return nil, domain.NewDuplicateFieldError(dup.Field)
		}
		return nil, fmt.Errorf("persist account update: %w", err)
	}

	if emailChanged {
		if _, err := u.reissueVerification(ctx, user); err != nil {
			return nil, err
		}
	}

	view := user.Public()
	return &view, nil
}

// UpdateProfilePhoto replaces the profile photo reference alone.
func (u *AuthUsecase) UpdateProfilePhoto(ctx context.Context, userID, profilePhoto string) (*domain.PublicUser, error) {
	if profilePhoto == "" {
		return nil, domain.NewValidationError("profile photo is required")
	}

	user, err := u.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.ProfilePhoto = profilePhoto
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("persist profile photo: %w", err)
	}

	view := user.Public()
	return &view, nil
}
