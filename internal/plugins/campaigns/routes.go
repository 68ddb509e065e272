package campaigns

import (
	"github.com/labstack/echo/v4"

	"github.com/questlog-app/questlog/internal/plugins/auth"
)

// RegisterRoutes sets up all campaign-related routes on the given Echo
// instance. Everything requires authentication; campaign-scoped routes
// additionally pass through the access filter, which conceals campaigns
// the caller has no role in.
func RegisterRoutes(e *echo.Echo, h *Handler, svc CampaignService, authSvc auth.AuthService) {
	authed := e.Group("", auth.RequireAuth(authSvc))
	authed.GET("/campaigns", h.List)
	authed.POST("/campaigns", h.Create)
	authed.GET("/campaigns/public", h.Discover)

	// Join and invitation redemption run before membership exists, so they
	// sit outside the access filter.
	authed.POST("/campaigns/:slug/join", h.Join)
	authed.GET("/invitations/:token", h.PreviewInvitation)
	authed.POST("/invitations/:token/accept", h.AcceptInvitation)

	// Routes for any member (owner, GM, player, observer).
	member := e.Group("/campaigns/:slug",
		auth.RequireAuth(authSvc),
		RequireCampaignAccess(svc, AnyMember),
	)
	member.GET("", h.Show)
	member.GET("/members", h.Members)
	member.POST("/leave", h.Leave)

	// Owner-only operations live in the member group too; the handlers
	// enforce the owner check so insufficient role reads as Forbidden
	// rather than pretending the campaign does not exist.
	member.PUT("", h.Update)
	member.DELETE("", h.Delete)
	member.POST("/members", h.AddMember)
	member.PUT("/members/:uid/role", h.UpdateRole)
	member.DELETE("/members/:uid", h.RemoveMember)

	// Invitation management is for the owner and GMs. Players and
	// observers probing these paths get the uniform not-found.
	mgmt := e.Group("/campaigns/:slug/invitations",
		auth.RequireAuth(authSvc),
		RequireCampaignAccess(svc, ManagementOnly),
	)
	mgmt.POST("", h.CreateInvitation)
	mgmt.GET("", h.ListInvitations)
	mgmt.DELETE("/:iid", h.RevokeInvitation)
}
