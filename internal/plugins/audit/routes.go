package audit

import (
	"github.com/labstack/echo/v4"

	"github.com/questlog-app/questlog/internal/plugins/auth"
	"github.com/questlog-app/questlog/internal/plugins/campaigns"
)

// RegisterRoutes sets up the activity feed routes. The feed exposes who
// changed what across the whole campaign, so it is restricted to the owner
// and GMs via the strict access predicate.
func RegisterRoutes(e *echo.Echo, h *Handler, campaignSvc campaigns.CampaignService, authSvc auth.AuthService) {
	g := e.Group("/campaigns/:slug/activity",
		auth.RequireAuth(authSvc),
		campaigns.RequireCampaignAccess(campaignSvc, campaigns.ManagementOnly),
	)
	g.GET("", h.Activity)
	g.GET("/stats", h.Stats)
	g.GET("/records/:rid", h.RecordHistory)
}
