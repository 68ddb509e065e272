package items

import (
	"github.com/labstack/echo/v4"

	"github.com/questlog-app/questlog/internal/plugins/auth"
	"github.com/questlog-app/questlog/internal/plugins/campaigns"
)

// RegisterRoutes sets up item routes for campaign members.
func RegisterRoutes(e *echo.Echo, h *Handler, campaignSvc campaigns.CampaignService, authSvc auth.AuthService) {
	g := e.Group("/campaigns/:slug/items",
		auth.RequireAuth(authSvc),
		campaigns.RequireCampaignAccess(campaignSvc, campaigns.AnyMember),
	)
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:iid", h.Show)
	g.PUT("/:iid", h.Update)
	g.DELETE("/:iid", h.Delete)
}
