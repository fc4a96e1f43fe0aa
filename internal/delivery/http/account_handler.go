package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aegis-sec/vaultguard/internal/usecase"
)

// AccountHandler serves the authenticated profile routes.
type AccountHandler struct {
	usecase *usecase.AuthUsecase
}

// NewAccountHandler registers the account routes, all bearer-protected.
func NewAccountHandler(e *echo.Group, u *usecase.AuthUsecase, accessSecret string) {
	handler := &AccountHandler{usecase: u}
	protected := JWTMiddleware(accessSecret)

	e.GET("/me", handler.Me, protected)
	e.PUT("/update", handler.Update, protected)
	e.PUT("/profile-photo", handler.UpdateProfilePhoto, protected)
}

// Me returns the caller's own profile.
func (h *AccountHandler) Me(c echo.Context) error {
	user, err := h.usecase.Me(c.Request().Context(), userID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

type updateAccountRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Update applies optional profile changes. An email change resets the
// verification state and triggers a fresh verification link.
func (h *AccountHandler) Update(c echo.Context) error {
	var req updateAccountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}

	user, err := h.usecase.UpdateAccount(c.Request().Context(), userID(c), usecase.UpdateAccountInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

type profilePhotoRequest struct {
	ProfilePhoto string `json:"profilePhoto"`
}

// UpdateProfilePhoto replaces the profile photo reference.
func (h *AccountHandler) UpdateProfilePhoto(c echo.Context) error {
	var req profilePhotoRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}

	user, err := h.usecase.UpdateProfilePhoto(c.Request().Context(), userID(c), req.ProfilePhoto)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}
