package mail

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/questlog-app/questlog/internal/apperror"
	"github.com/questlog-app/questlog/internal/validate"
)

// Handler handles HTTP requests for SMTP settings management.
type Handler struct {
	service MailService
}

// NewHandler creates a new mail settings handler.
func NewHandler(service MailService) *Handler {
	return &Handler{service: service}
}

// Show returns the current SMTP settings (GET /admin/smtp). The password
// is never included, only whether one is stored.
func (h *Handler) Show(c echo.Context) error {
	settings, err := h.service.GetSettings(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, settings)
}

// Update saves SMTP settings (PUT /admin/smtp).
func (h *Handler) Update(c echo.Context) error {
	var req UpdateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	if err := h.service.UpdateSettings(c.Request().Context(), req); err != nil {
		return err
	}

	settings, err := h.service.GetSettings(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, settings)
}

// Test verifies connectivity against the saved settings (POST /admin/smtp/test).
func (h *Handler) Test(c echo.Context) error {
	if err := h.service.TestConnection(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
