package audit

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/questlog-app/questlog/internal/plugins/campaigns"
)

// Handler handles HTTP requests for the activity feed.
type Handler struct {
	service AuditService
}

// NewHandler creates a new audit handler.
func NewHandler(service AuditService) *Handler {
	return &Handler{service: service}
}

// Activity returns the campaign's activity feed
// (GET /campaigns/:slug/activity). Owner and GMs only.
func (h *Handler) Activity(c echo.Context) error {
	cc, err := campaigns.MustCampaignContext(c)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	entries, total, err := h.service.GetCampaignActivity(c.Request().Context(), cc.Campaign.ID, page)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"entries":  entries,
		"total":    total,
		"per_page": perPage,
	})
}

// Stats returns aggregate activity statistics
// (GET /campaigns/:slug/activity/stats). Owner and GMs only.
func (h *Handler) Stats(c echo.Context) error {
	cc, err := campaigns.MustCampaignContext(c)
	if err != nil {
		return err
	}

	stats, err := h.service.GetCampaignStats(c.Request().Context(), cc.Campaign.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// RecordHistory returns the change history for one record
// (GET /campaigns/:slug/activity/records/:rid). Owner and GMs only.
func (h *Handler) RecordHistory(c echo.Context) error {
	if _, err := campaigns.MustCampaignContext(c); err != nil {
		return err
	}

	entries, err := h.service.GetRecordHistory(c.Request().Context(), c.Param("rid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": entries})
}
