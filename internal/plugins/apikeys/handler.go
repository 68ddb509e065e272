package apikeys

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/questlog-app/questlog/internal/apperror"
	"github.com/questlog-app/questlog/internal/plugins/auth"
	"github.com/questlog-app/questlog/internal/plugins/campaigns"
	"github.com/questlog-app/questlog/internal/validate"
)

// Handler handles HTTP requests for API key management.
type Handler struct {
	service APIKeyService
}

// NewHandler creates a new API key management handler.
func NewHandler(service APIKeyService) *Handler {
	return &Handler{service: service}
}

// List returns the campaign's API keys (GET /campaigns/:slug/api-keys).
// Hashes never leave the database; only prefixes are shown.
func (h *Handler) List(c echo.Context) error {
	cc, err := campaigns.MustCampaignContext(c)
	if err != nil {
		return err
	}

	keys, err := h.service.ListKeys(c.Request().Context(), cc.Campaign.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"keys": keys})
}

// Create registers a new API key (POST /campaigns/:slug/api-keys). The
// response contains the plaintext key exactly once.
func (h *Handler) Create(c echo.Context) error {
	cc, err := campaigns.MustCampaignContext(c)
	if err != nil {
		return err
	}

	var req CreateAPIKeyRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	perms := make([]Permission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		perms = append(perms, Permission(p))
	}

	var expiresAt *time.Time
	if req.ExpiresInDays > 0 {
		t := time.Now().UTC().AddDate(0, 0, req.ExpiresInDays)
		expiresAt = &t
	}

	result, err := h.service.CreateKey(c.Request().Context(), auth.GetUserID(c), CreateAPIKeyInput{
		Name:        req.Name,
		CampaignID:  cc.Campaign.ID,
		Permissions: perms,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, result)
}

// SetActive toggles a key (PUT /campaigns/:slug/api-keys/:kid/active).
func (h *Handler) SetActive(c echo.Context) error {
	cc, err := campaigns.MustCampaignContext(c)
	if err != nil {
		return err
	}

	id, err := strconv.ParseInt(c.Param("kid"), 10, 64)
	if err != nil {
		return apperror.NewNotFound("api key not found")
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	if err := h.service.SetKeyActive(c.Request().Context(), cc.Campaign.ID, id, req.Active); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Revoke permanently deletes a key (DELETE /campaigns/:slug/api-keys/:kid).
func (h *Handler) Revoke(c echo.Context) error {
	cc, err := campaigns.MustCampaignContext(c)
	if err != nil {
		return err
	}

	id, err := strconv.ParseInt(c.Param("kid"), 10, 64)
	if err != nil {
		return apperror.NewNotFound("api key not found")
	}

	if err := h.service.RevokeKey(c.Request().Context(), cc.Campaign.ID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
