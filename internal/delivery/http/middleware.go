package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aegis-sec/vaultguard/pkg/security"
)

// JWTMiddleware intercepts the request to validate the bearer access token.
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "missing authorization header"})
			}

			// Expected format: "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid authorization format"})
			}

			claims, err := security.ValidateAccessToken(parts[1], secret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid or expired token"})
			}

			// Inject extracted user information into the echo context so
			// handlers can identify the caller without a lookup.
			c.Set("user_id", claims.UserID)
			c.Set("email_verified", claims.EmailVerified)
			c.Set("mfa_enabled", claims.MFAEnabled)

			return next(c)
		}
	}
}

// userID returns the authenticated caller's id placed by JWTMiddleware.
func userID(c echo.Context) string {
	id, _ := c.Get("user_id").(string)
	return id
}

// RateLimiter is satisfied by repository.RedisRateLimiter.
type RateLimiter interface {
	Allow(ctx context.Context, scope, client string, limit int, window time.Duration) (bool, int, error)
}

// RateLimitMiddleware throttles a route per client IP with a fixed window.
// Limiter outages fail open: throttling is a shield, not a gate.
func RateLimitMiddleware(limiter RateLimiter, scope string, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, retryAfter, err := limiter.Allow(c.Request().Context(), scope, c.RealIP(), limit, window)
			if err != nil {
				return next(c)
			}
			if !ok {
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return c.JSON(http.StatusTooManyRequests, echo.Map{"message": "too many requests; please try again later"})
			}
			return next(c)
		}
	}
}
