package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// refreshCookieName is the HttpOnly cookie carrying the refresh token.
const refreshCookieName = "refreshToken"

// CookieConfig controls the attributes of the refresh cookie.
type CookieConfig struct {
	Domain string
	// Secure must be true everywhere except local development. SameSite=None
	// requires Secure, so insecure cookies fall back to Lax.
	Secure bool
}

func (c CookieConfig) sameSite() http.SameSite {
	if c.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func setRefreshCookie(c echo.Context, cfg CookieConfig, token string, expiresAt time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		Domain:   cfg.Domain,
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.sameSite(),
	})
}

func clearRefreshCookie(c echo.Context, cfg CookieConfig) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.sameSite(),
	})
}

// refreshCookieValue returns the refresh token from the request cookie, or ""
// when absent.
func refreshCookieValue(c echo.Context) string {
	cookie, err := c.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
