package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aegis-sec/vaultguard/internal/usecase"
)

// MFAHandler handles MFA enrollment and management.
type MFAHandler struct {
	usecase *usecase.AuthUsecase
}

// NewMFAHandler registers the MFA management routes. All of them require a
// bearer access token.
func NewMFAHandler(e *echo.Group, u *usecase.AuthUsecase, accessSecret string) {
	handler := &MFAHandler{usecase: u}
	protected := JWTMiddleware(accessSecret)

	e.POST("/mfa/setup", handler.Setup, protected)
	e.POST("/mfa/verify", handler.Verify, protected)
	e.POST("/mfa/disable", handler.Disable, protected)
}

type totpRequest struct {
	TOTP string `json:"totp"`
}

// Setup generates a temporary TOTP secret and returns it with the
// provisioning URI for QR rendering. The secret activates only on Verify.
func (h *MFAHandler) Setup(c echo.Context) error {
	result, err := h.usecase.BeginMFASetup(c.Request().Context(), userID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"secret":          result.Secret,
		"provisioningUri": result.ProvisioningURI,
	})
}

// Verify confirms the pending secret with a first TOTP code and turns MFA on.
// The response carries the backup codes in plaintext, shown exactly once.
func (h *MFAHandler) Verify(c echo.Context) error {
	var req totpRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}

	codes, err := h.usecase.ConfirmMFASetup(c.Request().Context(), userID(c), req.TOTP)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":     "MFA enabled",
		"backupCodes": codes,
	})
}

// Disable turns MFA off after validating a current TOTP code.
func (h *MFAHandler) Disable(c echo.Context) error {
	var req totpRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}

	if err := h.usecase.DisableMFA(c.Request().Context(), userID(c), req.TOTP); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "MFA disabled"})
}
