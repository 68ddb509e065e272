package locations

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

// Handler handles HTTP requests for location operations.
type Handler struct {
	service LocationService
}

// NewHandler creates a new location handler.
func NewHandler(service LocationService) *Handler {
	return &Handler{service: service}
}

func requestScope(c echo.Context) (access.Scope, error) {
	cc, err := campaigns.MustCampaignContext(c)
	if err != nil {
		return access.Scope{}, err
	}
	scope := access.ScopeFrom(cc, auth.GetUserID(c))
	scope = scope.WithDeleted(c.QueryParam("include_deleted") == "true")
	return scope, nil
}

// List returns the campaign's locations (GET /campaigns/:slug/locations).
func (h *Handler) List(c echo.Context) error {
	scope, err := requestScope(c)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	opts := DefaultListOptions()
	if page > 0 {
		opts.Page = page
	}

	list, total, err := h.service.List(c.Request().Context(), scope, opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"locations": list,
		"total":     total,
		"page":      opts.Page,
		"per_page":  opts.PerPage,
	})
}

// Show returns a single location (GET /campaigns/:slug/locations/:lid).
func (h *Handler) Show(c echo.Context) error {
	scope, err := requestScope(c)
	if err != nil {
		return err
	}

	loc, err := h.service.Get(c.Request().Context(), scope, c.Param("lid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, loc)
}

// Create creates a new location (POST /campaigns/:slug/locations).
func (h *Handler) Create(c echo.Context) error {
	scope, err := requestScope(c)
	if err != nil {
		return err
	}

	var req CreateLocationRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	loc, err := h.service.Create(c.Request().Context(), scope, CreateLocationInput{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, loc)
}

// Update edits a location (PUT /campaigns/:slug/locations/:lid).
func (h *Handler) Update(c echo.Context) error {
	scope, err := requestScope(c)
	if err != nil {
		return err
	}

	var req UpdateLocationRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	loc, err := h.service.Update(c.Request().Context(), scope, c.Param("lid"), UpdateLocationInput{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, loc)
}

// Delete soft-deletes a location after name confirmation
// (DELETE /campaigns/:slug/locations/:lid).
func (h *Handler) Delete(c echo.Context) error {
	scope, err := requestScope(c)
	if err != nil {
		return err
	}

	var req DeleteLocationRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	if err := h.service.Delete(c.Request().Context(), scope, c.Param("lid"), req.ConfirmName); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
