package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aegis-sec/vaultguard/internal/domain"
	"github.com/aegis-sec/vaultguard/internal/notify"
	"github.com/aegis-sec/vaultguard/pkg/security"
)

// Config carries the tunables of the authentication flows. Zero values fall
// back to the defaults below; only the secrets are mandatory.
type Config struct {
	AccessSecret  string
	RefreshSecret string // falls back to AccessSecret when empty

	AccessTTL  time.Duration // default 15 minutes
	RefreshTTL time.Duration // default 7 days

	FrontendURL string // base for single-use-token links

	MaxSessions      int           // default 5
	MaxLoginAttempts int           // default 5
	LockDuration     time.Duration // default 15 minutes

	VerificationTTL time.Duration // default 24 hours
	ResetTTL        time.Duration // default 15 minutes
	MagicLinkTTL    time.Duration // default 15 minutes
}

func (c Config) withDefaults() Config {
	if c.AccessTTL == 0 {
		c.AccessTTL = 15 * time.Minute
	}
	if c.RefreshTTL == 0 {
		c.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.MaxSessions == 0 {
		c.MaxSessions = domain.DefaultMaxSessions
	}
	if c.MaxLoginAttempts == 0 {
		c.MaxLoginAttempts = 5
	}
	if c.LockDuration == 0 {
		c.LockDuration = 15 * time.Minute
	}
	if c.VerificationTTL == 0 {
		c.VerificationTTL = 24 * time.Hour
	}
	if c.ResetTTL == 0 {
		c.ResetTTL = 15 * time.Minute
	}
	if c.MagicLinkTTL == 0 {
		c.MagicLinkTTL = 15 * time.Minute
	}
	return c
}

// AuthUsecase orchestrates every credential and session lifecycle operation.
// It is stateless between requests: all durable state lives on the User
// aggregate behind the repository.
type AuthUsecase struct {
	userRepo domain.UserRepository
	notifier notify.Sender
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewAuthUsecase(repo domain.UserRepository, notifier notify.Sender, cfg Config, logger *slog.Logger) *AuthUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	if cfg.RefreshSecret == "" {
		// Known deployment risk kept from the original design: without a
		// distinct refresh secret, key separation between the two token
		// families is lost.
		logger.Warn("no refresh token secret configured, falling back to the access secret")
		cfg.RefreshSecret = cfg.AccessSecret
	}
	return &AuthUsecase{
		userRepo: repo,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// AuthResult is the payload of every operation that authenticates the caller.
// RefreshToken travels only inside the HttpOnly cookie, never in the body.
type AuthResult struct {
	User             domain.PublicUser
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	AnomalyDetected  bool
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// sessionLabel derives a short human-readable device label from a user agent.
// Truncation happens on rune boundaries so a multi-byte user agent never
// yields an invalid-UTF-8 label.
func sessionLabel(userAgent string) string {
	ua := strings.TrimSpace(userAgent)
	if ua == "" {
		return "unknown device"
	}
	if runes := []rune(ua); len(runes) > 80 {
		ua = string(runes[:80])
	}
	return ua
}

// issueSession signs a fresh refresh token, appends the matching session
// record to the user (pruning expired records and evicting the oldest when
// over capacity) and returns the signed token. The caller persists the user.
func (u *AuthUsecase) issueSession(user *domain.User, fp domain.Fingerprint) (string, time.Time, error) {
	now := u.now()
	sessionID := uuid.NewString()

	token, err := security.GenerateRefreshToken(user.ID, sessionID, u.cfg.RefreshSecret, u.cfg.RefreshTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}

	expiresAt := now.Add(u.cfg.RefreshTTL)
	user.AddSession(domain.RefreshSession{
		SessionID:  sessionID,
		TokenHash:  security.HashOpaque(token),
		CreatedAt:  now,
		LastUsedAt: now,
		ExpiresAt:  expiresAt,
		IP:         fp.IP,
		UserAgent:  fp.UserAgent,
		Country:    fp.Country,
		Label:      sessionLabel(fp.UserAgent),
	}, u.cfg.MaxSessions, now)

	return token, expiresAt, nil
}

// authenticate issues the access token plus a new refresh session and updates
// the login baseline. Every completed login and passwordless login funnels
// through here.
func (u *AuthUsecase) authenticate(ctx context.Context, user *domain.User, fp domain.Fingerprint, anomaly bool) (*AuthResult, error) {
	refreshToken, refreshExpiry, err := u.issueSession(user, fp)
	if err != nil {
		return nil, err
	}

	user.RecordCompletedLogin(fp, u.now())
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("persist login: %w", err)
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
		AnomalyDetected:  anomaly,
	}, nil
}

// sendLink delivers a single-use link without failing the calling operation:
// the original design treats outbound mail as fire-and-forget.
func (u *AuthUsecase) sendLink(ctx context.Context, kind notify.Kind, recipient, link string) {
	if err := u.notifier.Send(ctx, kind, recipient, link); err != nil {
		u.logger.Error("notification delivery failed", "kind", string(kind), "recipient", recipient, "err", err)
	}
}

func (u *AuthUsecase) verificationLink(token string) string {
	return fmt.Sprintf("%s/verify-email/%s", strings.TrimRight(u.cfg.FrontendURL, "/"), token)
}

func (u *AuthUsecase) resetLink(token string) string {
	return fmt.Sprintf("%s/reset-password/%s", strings.TrimRight(u.cfg.FrontendURL, "/"), token)
}

func (u *AuthUsecase) magicLink(token string) string {
	return fmt.Sprintf("%s/magic-login?token=%s", strings.TrimRight(u.cfg.FrontendURL, "/"), token)
}
