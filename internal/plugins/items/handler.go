package items

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

// Handler handles HTTP requests for item operations.
type Handler struct {
	service ItemService
}

// NewHandler creates a new item handler.
func NewHandler(service ItemService) *Handler {
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

// List returns the campaign's items (GET /campaigns/:slug/items).
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
		"items":    list,
		"total":    total,
		"page":     opts.Page,
		"per_page": opts.PerPage,
	})
}

// Show returns a single item (GET /campaigns/:slug/items/:iid).
func (h *Handler) Show(c echo.Context) error {
	scope, err := requestScope(c)
	if err != nil {
		return err
	}

	item, err := h.service.Get(c.Request().Context(), scope, c.Param("iid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

// Create creates a new item (POST /campaigns/:slug/items).
func (h *Handler) Create(c echo.Context) error {
	scope, err := requestScope(c)
	if err != nil {
		return err
	}

	var req CreateItemRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	item, err := h.service.Create(c.Request().Context(), scope, CreateItemInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, item)
}

// Update edits an item (PUT /campaigns/:slug/items/:iid).
func (h *Handler) Update(c echo.Context) error {
	scope, err := requestScope(c)
	if err != nil {
		return err
	}

	var req UpdateItemRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	item, err := h.service.Update(c.Request().Context(), scope, c.Param("iid"), UpdateItemInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

// Delete soft-deletes an item after name confirmation
// (DELETE /campaigns/:slug/items/:iid).
func (h *Handler) Delete(c echo.Context) error {
	scope, err := requestScope(c)
	if err != nil {
		return err
	}

	var req DeleteItemRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	if err := h.service.Delete(c.Request().Context(), scope, c.Param("iid"), req.ConfirmName); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
