package apikeys

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/questlog-app/questlog/internal/access"
	"github.com/questlog-app/questlog/internal/apperror"
	"github.com/questlog-app/questlog/internal/plugins/campaigns"
)

const (
	contextKeyAPIKey   = "api_key"
	contextKeyAPIScope = "api_scope"
	contextKeyCampaign = "api_campaign"
)

// GetAPIKey retrieves the authenticated API key from the request context.
func GetAPIKey(c echo.Context) *APIKey {
	key, _ := c.Get(contextKeyAPIKey).(*APIKey)
	return key
}

// GetScope retrieves the access scope derived from the key owner's role.
func GetScope(c echo.Context) access.Scope {
	scope, _ := c.Get(contextKeyAPIScope).(access.Scope)
	return scope
}

// GetCampaign retrieves the resolved campaign for the API request.
func GetCampaign(c echo.Context) *campaigns.Campaign {
	campaign, _ := c.Get(contextKeyCampaign).(*campaigns.Campaign)
	return campaign
}

// RequireAPIKey authenticates /api/v1 requests with a bearer key and binds
// the request to the key's campaign. A key never grants more than its
// owner's current role: if the owner left the campaign, the key stops
// working even while technically active. Key-to-campaign mismatches read
// as not found, the same concealment the session routes use.
func RequireAPIKey(service APIKeyService, campaignSvc campaigns.CampaignService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			authHeader := c.Request().Header.Get("Authorization")
			rawKey := strings.TrimPrefix(authHeader, "Bearer ")
			if authHeader == "" || rawKey == authHeader {
				return apperror.NewUnauthorized("api key required")
			}

			key, err := service.AuthenticateKey(ctx, rawKey)
			if err != nil {
				return err
			}

			campaign, err := campaignSvc.GetActiveBySlug(ctx, c.Param("slug"))
			if err != nil {
				return err
			}
			if campaign.ID != key.CampaignID {
				return apperror.NewNotFound("campaign not found")
			}

			role, err := campaignSvc.ResolveRole(ctx, campaign, key.UserID)
			if err != nil {
				return err
			}
			if role == campaigns.RoleNone {
				return apperror.NewNotFound("campaign not found")
			}

			perm := PermRead
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead:
			default:
				perm = PermWrite
			}
			if !key.HasPermission(perm) {
				return apperror.NewForbidden("api key lacks " + string(perm) + " permission")
			}

			c.Set(contextKeyAPIKey, key)
			c.Set(contextKeyCampaign, campaign)
			c.Set(contextKeyAPIScope, access.Scope{
				CampaignID: campaign.ID,
				UserID:     key.UserID,
				Role:       role,
			})

			// Last-use metadata is best-effort; the request context may be
			// gone by the time the write lands.
			go service.TouchKey(context.Background(), key.ID, c.RealIP())

			return next(c)
		}
	}
}
