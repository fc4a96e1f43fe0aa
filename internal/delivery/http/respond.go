package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/aegis-sec/vaultguard/internal/domain"
)

// respondError maps a taxonomy error onto its HTTP status and message.
// Untagged errors are logged and surfaced as a generic 500 so no internal
// detail leaks.
func respondError(c echo.Context, err error) error {
	var ae *domain.AuthError
	if errors.As(err, &ae) {
		if ae.RetryAfter > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(ae.RetryAfter))
		}
		return c.JSON(ae.Status, echo.Map{"message": ae.Message, "code": string(ae.Code)})
	}

	slog.Error("unexpected error", "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal server error"})
}
