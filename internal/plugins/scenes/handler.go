package scenes

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

// Handler handles HTTP requests for scene operations.
type Handler struct {
	service SceneService
}

// NewHandler creates a new scene handler.
func NewHandler(service SceneService) *Handler {
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

// List returns the campaign's scenes in running order
// (GET /campaigns/:slug/scenes).
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
		"scenes":   list,
		"total":    total,
		"page":     opts.Page,
		"per_page": opts.PerPage,
	})
}

// Show returns a single scene (GET /campaigns/:slug/scenes/:sid).
func (h *Handler) Show(c echo.Context) error {
	scope, err := requestScope(c)
	if err != nil {
		return err
	}

	scene, err := h.service.Get(c.Request().Context(), scope, c.Param("sid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, scene)
}

// Create creates a new scene (POST /campaigns/:slug/scenes).
func (h *Handler) Create(c echo.Context) error {
	scope, err := requestScope(c)
	if err != nil {
		return err
	}

	var req CreateSceneRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	scene, err := h.service.Create(c.Request().Context(), scope, CreateSceneInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      Status(req.Status),
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, scene)
}

// Update edits a scene (PUT /campaigns/:slug/scenes/:sid).
func (h *Handler) Update(c echo.Context) error {
	scope, err := requestScope(c)
	if err != nil {
		return err
	}

	var req UpdateSceneRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	scene, err := h.service.Update(c.Request().Context(), scope, c.Param("sid"), UpdateSceneInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      Status(req.Status),
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, scene)
}

// Delete soft-deletes a scene after name confirmation
// (DELETE /campaigns/:slug/scenes/:sid).
func (h *Handler) Delete(c echo.Context) error {
	scope, err := requestScope(c)
	if err != nil {
		return err
	}

	var req DeleteSceneRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	if err := h.service.Delete(c.Request().Context(), scope, c.Param("sid"), req.ConfirmName); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
