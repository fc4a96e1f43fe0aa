package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/aegis-sec/vaultguard/internal/domain"
)

// PostgresUserRepo implements domain.UserRepository using PostgreSQL.
// The session list and backup codes are stored as JSONB columns on the users
// row so that every mutation of the aggregate is one atomic write.
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo creates a new repository instance.
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `
	id, username, email, password_hash, profile_photo,
	is_email_verified, email_verification_token, email_verification_expire,
	login_attempts, lock_until,
	mfa_enabled, totp_secret, totp_temp_secret, backup_codes,
	magic_link_token, magic_link_expire,
	reset_password_token, reset_password_expire,
	force_reauth, last_ip, last_user_agent, last_country, last_login,
	sessions, created_at, updated_at
`

// Create inserts a new user. Unique-constraint violations on username or
// email are reported as *domain.ErrDuplicateUser.
func (r *PostgresUserRepo) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	sessions, err := json.Marshal(user.Sessions)
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}
	backupCodes, err := json.Marshal(user.BackupCodes)
	if err != nil {
		return fmt.Errorf("marshal backup codes: %w", err)
	}

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := `
		INSERT INTO users (
			id, username, email, password_hash, profile_photo,
			is_email_verified, email_verification_token, email_verification_expire,
			login_attempts, lock_until,
			mfa_enabled, totp_secret, totp_temp_secret, backup_codes,
			magic_link_token, magic_link_expire,
			reset_password_token, reset_password_expire,
			force_reauth, last_ip, last_user_agent, last_country, last_login,
			sessions, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26
		)
	`

	_, err = r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, user.ProfilePhoto,
		user.IsEmailVerified, nullString(user.EmailVerificationToken), nullTime(user.EmailVerificationExpire),
		user.LoginAttempts, nullTimePtr(user.LockUntil),
		user.MFAEnabled, nullString(user.TOTPSecret), nullString(user.TOTPTempSecret), backupCodes,
		nullString(user.MagicLinkToken), nullTime(user.MagicLinkExpire),
		nullString(user.ResetPasswordToken), nullTime(user.ResetPasswordExpire),
		user.ForceReauth, nullString(user.LastIP), nullString(user.LastUserAgent), nullString(user.LastCountry), nullTimePtr(user.LastLogin),
		sessions, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if field, ok := uniqueViolationField(err); ok {
			return &domain.ErrDuplicateUser{Field: field}
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by primary key.
func (r *PostgresUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getWhere(ctx, "id = $1", id)
}

// GetByEmail retrieves a user by their normalized email address.
func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getWhere(ctx, "email = $1", email)
}

// GetByVerificationToken looks a user up by the digest of a pending email
// verification token.
func (r *PostgresUserRepo) GetByVerificationToken(ctx context.Context, digest string) (*domain.User, error) {
	return r.getWhere(ctx, "email_verification_token = $1", digest)
}

// GetByResetToken looks a user up by the digest of a pending reset token.
func (r *PostgresUserRepo) GetByResetToken(ctx context.Context, digest string) (*domain.User, error) {
	return r.getWhere(ctx, "reset_password_token = $1", digest)
}

// GetByMagicLinkToken looks a user up by the digest of a pending magic-link
// token.
func (r *PostgresUserRepo) GetByMagicLinkToken(ctx context.Context, digest string) (*domain.User, error) {
	return r.getWhere(ctx, "magic_link_token = $1", digest)
}

// Update persists the whole aggregate in a single write. Concurrent writers
// for the same user resolve last-write-wins, matching the original design.
func (r *PostgresUserRepo) Update(ctx context.Context, user *domain.User) error {
	sessions, err := json.Marshal(user.Sessions)
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}
	backupCodes, err := json.Marshal(user.BackupCodes)
	if err != nil {
		return fmt.Errorf("marshal backup codes: %w", err)
	}

	user.UpdatedAt = time.Now()

	query := `
		UPDATE users SET
			username = $2, email = $3, password_hash = $4, profile_photo = $5,
			is_email_verified = $6, email_verification_token = $7, email_verification_expire = $8,
			login_attempts = $9, lock_until = $10,
			mfa_enabled = $11, totp_secret = $12, totp_temp_secret = $13, backup_codes = $14,
			magic_link_token = $15, magic_link_expire = $16,
			reset_password_token = $17, reset_password_expire = $18,
			force_reauth = $19, last_ip = $20, last_user_agent = $21, last_country = $22, last_login = $23,
			sessions = $24, updated_at = $25
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, user.ProfilePhoto,
		user.IsEmailVerified, nullString(user.EmailVerificationToken), nullTime(user.EmailVerificationExpire),
		user.LoginAttempts, nullTimePtr(user.LockUntil),
		user.MFAEnabled, nullString(user.TOTPSecret), nullString(user.TOTPTempSecret), backupCodes,
		nullString(user.MagicLinkToken), nullTime(user.MagicLinkExpire),
		nullString(user.ResetPasswordToken), nullTime(user.ResetPasswordExpire),
		user.ForceReauth, nullString(user.LastIP), nullString(user.LastUserAgent), nullString(user.LastCountry), nullTimePtr(user.LastLogin),
		sessions, user.UpdatedAt,
	)
	if err != nil {
		if field, ok := uniqueViolationField(err); ok {
			return &domain.ErrDuplicateUser{Field: field}
		}
		return fmt.Errorf("update user: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepo) getWhere(ctx context.Context, where string, arg interface{}) (*domain.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE " + where

	user := &domain.User{}
	var (
		verificationToken, totpSecret, totpTempSecret sql.NullString
		magicToken, resetToken                        sql.NullString
		lastIP, lastUserAgent, lastCountry            sql.NullString
		verificationExpire, magicExpire, resetExpire  sql.NullTime
		lockUntil, lastLogin                          sql.NullTime
		sessions, backupCodes                         []byte
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.ProfilePhoto,
		&user.IsEmailVerified, &verificationToken, &verificationExpire,
		&user.LoginAttempts, &lockUntil,
		&user.MFAEnabled, &totpSecret, &totpTempSecret, &backupCodes,
		&magicToken, &magicExpire,
		&resetToken, &resetExpire,
		&user.ForceReauth, &lastIP, &lastUserAgent, &lastCountry, &lastLogin,
		&sessions, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	user.EmailVerificationToken = verificationToken.String
	user.EmailVerificationExpire = verificationExpire.Time
	user.TOTPSecret = totpSecret.String
	user.TOTPTempSecret = totpTempSecret.String
	user.MagicLinkToken = magicToken.String
	user.MagicLinkExpire = magicExpire.Time
	user.ResetPasswordToken = resetToken.String
	user.ResetPasswordExpire = resetExpire.Time
	user.LastIP = lastIP.String
	user.LastUserAgent = lastUserAgent.String
	user.LastCountry = lastCountry.String
	if lockUntil.Valid {
		t := lockUntil.Time
		user.LockUntil = &t
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}

	if len(sessions) > 0 {
		if err := json.Unmarshal(sessions, &user.Sessions); err != nil {
			return nil, fmt.Errorf("unmarshal sessions: %w", err)
		}
	}
	if len(backupCodes) > 0 {
		if err := json.Unmarshal(backupCodes, &user.BackupCodes); err != nil {
			return nil, fmt.Errorf("unmarshal backup codes: %w", err)
		}
	}

	return user, nil
}

// uniqueViolationField maps a Postgres unique-violation error onto the field
// name carried in the constraint name (users_username_key, users_email_key).
func uniqueViolationField(err error) (string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return "", false
	}
	switch {
	case strings.Contains(pqErr.Constraint, "username"):
		return "username", true
	case strings.Contains(pqErr.Constraint, "email"):
		return "email", true
	default:
		return "field", true
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
