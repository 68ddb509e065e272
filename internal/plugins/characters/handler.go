package characters

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/questlog-app/questlog/internal/access"
	"github.com/questlog-app/questlog/internal/apperror"
	"github.com/questlog-app/questlog/internal/plugins/auth"
	"github.com/questlog-app/questlog/internal/plugins/campaigns"
	"github.com/questlog-app/questlog/internal/validate"
)

// Handler handles HTTP requests for character operations.
type Handler struct {
	service CharacterService
}

// NewHandler creates a new character handler.
func NewHandler(service CharacterService) *Handler {
	return &Handler{service: service}
}

// requestScope builds the access scope for the current request. GMs and
// the owner may opt into seeing soft-deleted records.
func requestScope(c echo.Context) (access.Scope, *campaigns.CampaignContext, error) {
	cc, err := campaigns.MustCampaignContext(c)
	if err != nil {
		return access.Scope{}, nil, err
	}
	scope := access.ScopeFrom(cc, auth.GetUserID(c))
	scope = scope.WithDeleted(c.QueryParam("include_deleted") == "true")
	return scope, cc, nil
}

// List returns the characters visible to the caller
// (GET /campaigns/:slug/characters).
func (h *Handler) List(c echo.Context) error {
	scope, _, err := requestScope(c)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	opts := DefaultListOptions()
	if page > 0 {
		opts.Page = page
	}

	chars, total, err := h.service.List(c.Request().Context(), scope, opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"characters": chars,
		"total":      total,
		"page":       opts.Page,
		"per_page":   opts.PerPage,
	})
}

// Show returns a single character (GET /campaigns/:slug/characters/:cid).
func (h *Handler) Show(c echo.Context) error {
	scope, _, err := requestScope(c)
	if err != nil {
		return err
	}

	ch, err := h.service.Get(c.Request().Context(), scope, c.Param("cid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ch)
}

// Create creates a new character (POST /campaigns/:slug/characters).
func (h *Handler) Create(c echo.Context) error {
	scope, cc, err := requestScope(c)
	if err != nil {
		return err
	}

	var req CreateCharacterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	ch, err := h.service.Create(c.Request().Context(), cc.Campaign, scope, CreateCharacterInput{
		Name:        req.Name,
		Kind:        Kind(req.Kind),
		Description: req.Description,
		SheetData:   req.SheetData,
		PlayerID:    req.PlayerID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ch)
}

// Update edits a character (PUT /campaigns/:slug/characters/:cid).
func (h *Handler) Update(c echo.Context) error {
	scope, _, err := requestScope(c)
	if err != nil {
		return err
	}

	var req UpdateCharacterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	ch, err := h.service.Update(c.Request().Context(), scope, c.Param("cid"), UpdateCharacterInput{
		Name:        req.Name,
		Description: req.Description,
		SheetData:   req.SheetData,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ch)
}

// Delete soft-deletes a character after name confirmation
// (DELETE /campaigns/:slug/characters/:cid).
func (h *Handler) Delete(c echo.Context) error {
	scope, cc, err := requestScope(c)
	if err != nil {
		return err
	}

	var req DeleteCharacterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	if err := h.service.Delete(c.Request().Context(), cc.Campaign, scope, c.Param("cid"), req.ConfirmName); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
