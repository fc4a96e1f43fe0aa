package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aegis-sec/vaultguard/internal/domain"
	"github.com/aegis-sec/vaultguard/internal/usecase"
)

// AuthHandler represents the HTTP delivery layer for the credential and
// session lifecycle.
type AuthHandler struct {
	usecase *usecase.AuthUsecase
	cookies CookieConfig
}

// NewAuthHandler registers the authentication routes on the provided group.
func NewAuthHandler(e *echo.Group, u *usecase.AuthUsecase, cookies CookieConfig, accessSecret string, limiter RateLimiter) {
	handler := &AuthHandler{usecase: u, cookies: cookies}
	protected := JWTMiddleware(accessSecret)

	// Sensitive unauthenticated routes share a 5-per-15-minutes window.
	throttled := func(scope string) echo.MiddlewareFunc {
		return RateLimitMiddleware(limiter, scope, 5, 15*time.Minute)
	}

	e.POST("/register", handler.Register)
	e.POST("/login", handler.Login)
	e.POST("/refresh", handler.Refresh)
	e.POST("/logout", handler.Logout)
	e.POST("/sessions/revoke-all", handler.RevokeAll, protected)

	e.POST("/forgot-password", handler.ForgotPassword, throttled("forgot-password"))
	e.PUT("/reset-password/:token", handler.ResetPassword, throttled("reset-password"))
	e.POST("/verify-email/:token", handler.VerifyEmail)
	e.POST("/resend-verification", handler.ResendVerification, throttled("resend-verification"))
	e.POST("/magic-link", handler.RequestMagicLink, throttled("magic-link"))
	e.POST("/magic-login", handler.MagicLogin)
}

// fingerprint extracts the request's network identity. The country code is
// supplied by the edge proxy when one is present.
func fingerprint(c echo.Context) domain.Fingerprint {
	return domain.Fingerprint{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
		Country:   c.Request().Header.Get("CF-IPCountry"),
	}
}

type registerRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	ProfilePhoto string `json:"profilePhoto"`
}

// Register creates an unverified account and reports the verification link.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}

	result, err := h.usecase.Register(c.Request().Context(), usecase.RegisterInput{
		Username:     req.Username,
		Email:        req.Email,
		Password:     req.Password,
		ProfilePhoto: req.ProfilePhoto,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"user":            result.User,
		"message":         "registration successful; please verify your email",
		"verificationUrl": result.VerificationURL,
	})
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	TOTP       string `json:"totp"`
	BackupCode string `json:"backupCode"`
}

// Login authenticates with email and password plus an optional MFA proof.
// On success the refresh token is set as an HttpOnly cookie and only the
// access token travels in the body.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}

	result, err := h.usecase.Login(c.Request().Context(), usecase.LoginInput{
		Email:       req.Email,
		Password:    req.Password,
		TOTPCode:    req.TOTP,
		BackupCode:  req.BackupCode,
		Fingerprint: fingerprint(c),
	})
	if err != nil {
		return respondError(c, err)
	}

	setRefreshCookie(c, h.cookies, result.RefreshToken, result.RefreshExpiresAt)
	return c.JSON(http.StatusOK, echo.Map{
		"user":            result.User,
		"token":           result.AccessToken,
		"anomalyDetected": result.AnomalyDetected,
	})
}

// Refresh rotates the cookie-borne refresh token and issues a new access
// token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	token := refreshCookieValue(c)
	if token == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "no refresh token"})
	}

	result, err := h.usecase.Refresh(c.Request().Context(), token, fingerprint(c))
	if err != nil {
		// A hard failure means the session is gone either way.
		clearRefreshCookie(c, h.cookies)
		return respondError(c, err)
	}

	setRefreshCookie(c, h.cookies, result.RefreshToken, result.RefreshExpiresAt)
	return c.JSON(http.StatusOK, echo.Map{
		"token": result.AccessToken,
		"user":  result.User,
	})
}

// Logout removes the presented session and clears the cookie. Always
// succeeds: logging out without a cookie is a no-op.
func (h *AuthHandler) Logout(c echo.Context) error {
	if token := refreshCookieValue(c); token != "" {
		if err := h.usecase.Logout(c.Request().Context(), token); err != nil {
			return respondError(c, err)
		}
	}
	clearRefreshCookie(c, h.cookies)
	return c.NoContent(http.StatusNoContent)
}

// RevokeAll clears every session of the authenticated caller.
func (h *AuthHandler) RevokeAll(c echo.Context) error {
	if err := h.usecase.RevokeAllSessions(c.Request().Context(), userID(c)); err != nil {
		return respondError(c, err)
	}
	clearRefreshCookie(c, h.cookies)
	return c.JSON(http.StatusOK, echo.Map{"message": "all sessions revoked"})
}

type emailRequest struct {
	Email string `json:"email"`
}

// ForgotPassword issues a password-reset link.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}

	link, err := h.usecase.ForgotPassword(c.Request().Context(), req.Email)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":  "password reset link sent",
		"resetUrl": link,
	})
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// ResetPassword consumes a reset token and re-authenticates the caller.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}

	result, err := h.usecase.ResetPassword(c.Request().Context(), c.Param("token"), req.Password, fingerprint(c))
	if err != nil {
		return respondError(c, err)
	}

	setRefreshCookie(c, h.cookies, result.RefreshToken, result.RefreshExpiresAt)
	return c.JSON(http.StatusOK, echo.Map{
		"token": result.AccessToken,
		"user":  result.User,
	})
}

// VerifyEmail consumes an email verification token.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	user, err := h.usecase.VerifyEmail(c.Request().Context(), c.Param("token"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

// ResendVerification reissues the verification link.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}

	link, err := h.usecase.ResendVerification(c.Request().Context(), req.Email)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":         "verification link sent",
		"verificationUrl": link,
	})
}

// RequestMagicLink issues a passwordless login link.
func (h *AuthHandler) RequestMagicLink(c echo.Context) error {
	var req emailRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}

	link, err := h.usecase.RequestMagicLink(c.Request().Context(), req.Email)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":  "magic login link sent",
		"magicUrl": link,
	})
}

type magicLoginRequest struct {
	Token string `json:"token"`
}

// MagicLogin consumes a magic-link token and authenticates the caller.
func (h *AuthHandler) MagicLogin(c echo.Context) error {
	var req magicLoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}

	result, err := h.usecase.MagicLogin(c.Request().Context(), req.Token, fingerprint(c))
	if err != nil {
		return respondError(c, err)
	}

	setRefreshCookie(c, h.cookies, result.RefreshToken, result.RefreshExpiresAt)
	return c.JSON(http.StatusOK, echo.Map{
		"user":  result.User,
		"token": result.AccessToken,
	})
}
