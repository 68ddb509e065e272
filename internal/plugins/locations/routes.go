package locations

import (
	"github.com/labstack/echo/v4"

	"github.com/questlog-app/questlog/internal/plugins/auth"
	"github.com/questlog-app/questlog/internal/plugins/campaigns"
)

// RegisterRoutes sets up location routes for campaign members.
func RegisterRoutes(e *echo.Echo, h *Handler, campaignSvc campaigns.CampaignService, authSvc auth.AuthService) {
	g := e.Group("/campaigns/:slug/locations",
		auth.RequireAuth(authSvc),
		campaigns.RequireCampaignAccess(campaignSvc, campaigns.AnyMember),
	)
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:lid", h.Show)
	g.PUT("/:lid", h.Update)
	g.DELETE("/:lid", h.Delete)
}
