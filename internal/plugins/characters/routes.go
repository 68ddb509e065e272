package characters

import (
	"github.com/labstack/echo/v4"

	"github.com/questlog-app/questlog/internal/plugins/auth"
	"github.com/questlog-app/questlog/internal/plugins/campaigns"
)

// RegisterRoutes sets up character routes. Any member may reach them; the
// service narrows what each role can actually see and touch.
func RegisterRoutes(e *echo.Echo, h *Handler, campaignSvc campaigns.CampaignService, authSvc auth.AuthService) {
	g := e.Group("/campaigns/:slug/characters",
		auth.RequireAuth(authSvc),
		campaigns.RequireCampaignAccess(campaignSvc, campaigns.AnyMember),
	)
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:cid", h.Show)
	g.PUT("/:cid", h.Update)
	g.DELETE("/:cid", h.Delete)
}
