package apikeys

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/questlog-app/questlog/internal/apperror"
	"github.com/questlog-app/questlog/internal/plugins/characters"
	"github.com/questlog-app/questlog/internal/plugins/items"
	"github.com/questlog-app/questlog/internal/plugins/locations"
	"github.com/questlog-app/questlog/internal/plugins/scenes"
	"github.com/questlog-app/questlog/internal/validate"
)

// APIHandler serves the external /api/v1 surface. It reuses the regular
// record services, so the key owner's role narrows visibility exactly as
// it does for the session routes. Writes cover character updates, the
// sheet-sync use case external tools exist for.
type APIHandler struct {
	characters characters.CharacterService
	items      items.ItemService
	scenes     scenes.SceneService
	locations  locations.LocationService
}

// NewAPIHandler creates a new external API handler.
func NewAPIHandler(
	characterSvc characters.CharacterService,
	itemSvc items.ItemService,
	sceneSvc scenes.SceneService,
	locationSvc locations.LocationService,
) *APIHandler {
	return &APIHandler{
		characters: characterSvc,
		items:      itemSvc,
		scenes:     sceneSvc,
		locations:  locationSvc,
	}
}

func pageOpt(c echo.Context) int {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	return page
}

// ListCharacters returns visible characters
// (GET /api/v1/campaigns/:slug/characters).
func (h *APIHandler) ListCharacters(c echo.Context) error {
	opts := characters.DefaultListOptions()
	if p := pageOpt(c); p > 0 {
		opts.Page = p
	}

	list, total, err := h.characters.List(c.Request().Context(), GetScope(c), opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"characters": list, "total": total})
}

// ShowCharacter returns one character
// (GET /api/v1/campaigns/:slug/characters/:cid).
func (h *APIHandler) ShowCharacter(c echo.Context) error {
	ch, err := h.characters.Get(c.Request().Context(), GetScope(c), c.Param("cid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ch)
}

// UpdateCharacter syncs a character's fields and sheet data
// (PUT /api/v1/campaigns/:slug/characters/:cid).
func (h *APIHandler) UpdateCharacter(c echo.Context) error {
	var req characters.UpdateCharacterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	ch, err := h.characters.Update(c.Request().Context(), GetScope(c), c.Param("cid"), characters.UpdateCharacterInput{
		Name:        req.Name,
		Description: req.Description,
		SheetData:   req.SheetData,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ch)
}

// ListItems returns the campaign's items
// (GET /api/v1/campaigns/:slug/items).
func (h *APIHandler) ListItems(c echo.Context) error {
	opts := items.DefaultListOptions()
	if p := pageOpt(c); p > 0 {
		opts.Page = p
	}

	list, total, err := h.items.List(c.Request().Context(), GetScope(c), opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list, "total": total})
}

// ShowItem returns one item (GET /api/v1/campaigns/:slug/items/:iid).
func (h *APIHandler) ShowItem(c echo.Context) error {
	item, err := h.items.Get(c.Request().Context(), GetScope(c), c.Param("iid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

// ListScenes returns the campaign's scenes in running order
// (GET /api/v1/campaigns/:slug/scenes).
func (h *APIHandler) ListScenes(c echo.Context) error {
	opts := scenes.DefaultListOptions()
	if p := pageOpt(c); p > 0 {
		opts.Page = p
	}

	list, total, err := h.scenes.List(c.Request().Context(), GetScope(c), opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"scenes": list, "total": total})
}

// ShowScene returns one scene (GET /api/v1/campaigns/:slug/scenes/:sid).
func (h *APIHandler) ShowScene(c echo.Context) error {
	scene, err := h.scenes.Get(c.Request().Context(), GetScope(c), c.Param("sid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, scene)
}

// ListLocations returns the campaign's locations
// (GET /api/v1/campaigns/:slug/locations).
func (h *APIHandler) ListLocations(c echo.Context) error {
	opts := locations.DefaultListOptions()
	if p := pageOpt(c); p > 0 {
		opts.Page = p
	}

	list, total, err := h.locations.List(c.Request().Context(), GetScope(c), opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"locations": list, "total": total})
}

// ShowLocation returns one location
// (GET /api/v1/campaigns/:slug/locations/:lid).
func (h *APIHandler) ShowLocation(c echo.Context) error {
	loc, err := h.locations.Get(c.Request().Context(), GetScope(c), c.Param("lid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, loc)
}
