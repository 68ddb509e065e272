package apikeys

import (
	"github.com/labstack/echo/v4"

	"github.com/questlog-app/questlog/internal/plugins/auth"
	"github.com/questlog-app/questlog/internal/plugins/campaigns"
)

// RegisterRoutes sets up key management (session-authenticated, owner and
// GM only) and the external bearer-key API surface.
func RegisterRoutes(e *echo.Echo, h *Handler, api *APIHandler, service APIKeyService, campaignSvc campaigns.CampaignService, authSvc auth.AuthService) {
	mgmt := e.Group("/campaigns/:slug/api-keys",
		auth.RequireAuth(authSvc),
		campaigns.RequireCampaignAccess(campaignSvc, campaigns.ManagementOnly),
	)
	mgmt.GET("", h.List)
	mgmt.POST("", h.Create)
	mgmt.PUT("/:kid/active", h.SetActive)
	mgmt.DELETE("/:kid", h.Revoke)

	v1 := e.Group("/api/v1/campaigns/:slug", RequireAPIKey(service, campaignSvc))
	v1.GET("/characters", api.ListCharacters)
	v1.GET("/characters/:cid", api.ShowCharacter)
	v1.PUT("/characters/:cid", api.UpdateCharacter)
	v1.GET("/items", api.ListItems)
	v1.GET("/items/:iid", api.ShowItem)
	v1.GET("/scenes", api.ListScenes)
	v1.GET("/scenes/:sid", api.ShowScene)
	v1.GET("/locations", api.ListLocations)
	v1.GET("/locations/:lid", api.ShowLocation)
}
