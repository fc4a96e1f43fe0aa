package domain

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned by repositories when no user matches the query.
// Usecases translate it into the operation-appropriate taxonomy error so that
// lookup misses never leak which field failed.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateUser is returned by repositories on a unique-constraint
// violation for username or email.
type ErrDuplicateUser struct {
	Field string // "username" or "email"
}

func (e *ErrDuplicateUser) Error() string {
	return e.Field + " is already in use"
}

// User represents the central identity aggregate of the system.
// All durable authentication state hangs off this one document.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"` // normalized to lowercase
	PasswordHash string `json:"-"`
	ProfilePhoto string `json:"profile_photo"`

	// Verification state.
	IsEmailVerified         bool      `json:"is_email_verified"`
	EmailVerificationToken  string    `json:"-"` // digest, never the token
	EmailVerificationExpire time.Time `json:"-"`

	// Lockout state.
	LoginAttempts int        `json:"-"`
	LockUntil     *time.Time `json:"-"`

	// MFA state. TOTPTempSecret exists only while setup is in progress;
	// confirmation promotes it to TOTPSecret atomically.
	MFAEnabled     bool     `json:"mfa_enabled"`
	TOTPSecret     string   `json:"-"`
	TOTPTempSecret string   `json:"-"`
	BackupCodes    []string `json:"-"` // digests, each single-use

	// Passwordless/recovery state.
	MagicLinkToken      string    `json:"-"`
	MagicLinkExpire     time.Time `json:"-"`
	ResetPasswordToken  string    `json:"-"`
	ResetPasswordExpire time.Time `json:"-"`

	// ForceReauth is set when the password is reset through the recovery flow
	// and cleared on the next completed password login. While set, magic-link
	// login is refused.
	ForceReauth bool `json:"-"`

	// Fingerprint baseline, updated only on a fully completed login.
	LastIP        string     `json:"-"`
	LastUserAgent string     `json:"-"`
	LastCountry   string     `json:"-"`
	LastLogin     *time.Time `json:"last_login,omitempty"`

	// Active refresh-token sessions, newest last, capped at MaxSessions.
	Sessions []RefreshSession `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PublicUser is the view returned in API payloads.
type PublicUser struct {
	ID              string     `json:"_id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	ProfilePhoto    string     `json:"profilePhoto"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	MFAEnabled      bool       `json:"mfaEnabled"`
	LastLogin       *time.Time `json:"lastLogin,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Public returns the externally visible view of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		ProfilePhoto:    u.ProfilePhoto,
		IsEmailVerified: u.IsEmailVerified,
		MFAEnabled:      u.MFAEnabled,
		LastLogin:       u.LastLogin,
		CreatedAt:       u.CreatedAt,
	}
}

// Fingerprint captures the network identity of a request.
type Fingerprint struct {
	IP        string
	UserAgent string
	Country   string
}

// HasBaseline reports whether the user has ever completed a login. Without a
// baseline there is nothing to compare a fingerprint against.
func (u *User) HasBaseline() bool {
	return u.LastIP != "" || u.LastUserAgent != "" || u.LastCountry != ""
}

// IsAnomalous compares a login fingerprint against the stored baseline.
// A mismatch on any of IP, country, or user agent counts.
func (u *User) IsAnomalous(fp Fingerprint) bool {
	if !u.HasBaseline() {
		return false
	}
	return fp.IP != u.LastIP || fp.Country != u.LastCountry || fp.UserAgent != u.LastUserAgent
}

// RecordCompletedLogin updates the fingerprint baseline and lockout state.
// Called only after every gate (password, verification, MFA, anomaly) passed,
// so a blocked attempt never poisons the baseline.
func (u *User) RecordCompletedLogin(fp Fingerprint, now time.Time) {
	u.LoginAttempts = 0
	u.LockUntil = nil
	u.ForceReauth = false
	u.LastIP = fp.IP
	u.LastUserAgent = fp.UserAgent
	u.LastCountry = fp.Country
	u.LastLogin = &now
}

// Locked reports whether the account is locked at the given instant and, if
// so, how long until it reopens.
func (u *User) Locked(now time.Time) (bool, time.Duration) {
	if u.LockUntil == nil || !u.LockUntil.After(now) {
		return false, 0
	}
	return true, u.LockUntil.Sub(now)
}

// RecordLoginFailure increments the attempt counter; once the threshold is
// reached the account is locked for lockDuration.
func (u *User) RecordLoginFailure(now time.Time, maxAttempts int, lockDuration time.Duration) {
	u.LoginAttempts++
	if u.LoginAttempts >= maxAttempts {
		until := now.Add(lockDuration)
		u.LockUntil = &until
	}
}

// ConsumeBackupCode removes the backup code matching the given digest.
// Returns false when no code matches; a matched code is gone for good.
func (u *User) ConsumeBackupCode(digest string) bool {
	for i, stored := range u.BackupCodes {
		if stored == digest {
			u.BackupCodes = append(u.BackupCodes[:i], u.BackupCodes[i+1:]...)
			return true
		}
	}
	return false
}

// UserRepository defines the contract for user persistence. The token-lookup
// methods take digests, never raw tokens, and return ErrUserNotFound on a
// miss. Update persists the whole aggregate, sessions included, in one write.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByVerificationToken(ctx context.Context, digest string) (*User, error)
	GetByResetToken(ctx context.Context, digest string) (*User, error)
	GetByMagicLinkToken(ctx context.Context, digest string) (*User, error)
	Update(ctx context.Context, user *User) error
}
