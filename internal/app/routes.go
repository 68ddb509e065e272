package app

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/questlog-app/questlog/internal/plugins/apikeys"
	"github.com/questlog-app/questlog/internal/plugins/audit"
	"github.com/questlog-app/questlog/internal/plugins/auth"
	"github.com/questlog-app/questlog/internal/plugins/campaigns"
	"github.com/questlog-app/questlog/internal/plugins/characters"
	"github.com/questlog-app/questlog/internal/plugins/items"
	"github.com/questlog-app/questlog/internal/plugins/locations"
	"github.com/questlog-app/questlog/internal/plugins/mail"
	"github.com/questlog-app/questlog/internal/plugins/scenes"
)

// RegisterRoutes constructs every plugin's repository, service, and handler
// and mounts the routes. Construction order follows the dependency chain:
// auth and mail first, campaigns on top of both, then the campaign-scoped
// record plugins, and finally the external API, which reuses the record
// services under key authentication.
func (a *App) RegisterRoutes() {
	// Auth: users, sessions (Redis-backed), profile.
	userRepo := auth.NewUserRepository(a.DB)
	authSvc := auth.NewAuthService(userRepo, a.Redis, a.Config.Auth.SessionTTL)
	auth.RegisterRoutes(a.Echo, auth.NewHandler(authSvc), authSvc)

	// Mail: admin-managed SMTP settings, invitation delivery.
	mailRepo := mail.NewSettingsRepository(a.DB)
	mailSvc := mail.NewMailService(mailRepo, a.Config.Auth.SecretKey)
	mail.RegisterRoutes(a.Echo, mail.NewHandler(mailSvc), authSvc)

	// Campaigns: membership, roles, invitations.
	campaignRepo := campaigns.NewCampaignRepository(a.DB)
	campaignSvc := campaigns.NewCampaignService(
		campaignRepo,
		campaigns.NewUserFinderAdapter(userRepo),
		mail.NewCampaignMailer(mailSvc),
		a.Config.BaseURL,
	)
	campaigns.RegisterRoutes(a.Echo, campaigns.NewHandler(campaignSvc), campaignSvc, authSvc)

	// Audit: the per-campaign activity feed. The record services below
	// write to it; the feed itself is GM-and-up.
	auditRepo := audit.NewAuditRepository(a.DB)
	auditSvc := audit.NewAuditService(auditRepo)
	audit.RegisterRoutes(a.Echo, audit.NewHandler(auditSvc), campaignSvc, authSvc)

	// Campaign record plugins.
	characterSvc := characters.NewCharacterService(characters.NewCharacterRepository(a.DB), auditSvc)
	characters.RegisterRoutes(a.Echo, characters.NewHandler(characterSvc), campaignSvc, authSvc)

	itemSvc := items.NewItemService(items.NewItemRepository(a.DB), auditSvc)
	items.RegisterRoutes(a.Echo, items.NewHandler(itemSvc), campaignSvc, authSvc)

	sceneSvc := scenes.NewSceneService(scenes.NewSceneRepository(a.DB), auditSvc)
	scenes.RegisterRoutes(a.Echo, scenes.NewHandler(sceneSvc), campaignSvc, authSvc)

	locationSvc := locations.NewLocationService(locations.NewLocationRepository(a.DB), auditSvc)
	locations.RegisterRoutes(a.Echo, locations.NewHandler(locationSvc), campaignSvc, authSvc)

	// API keys: management routes plus the key-authenticated /api/v1 surface.
	keySvc := apikeys.NewAPIKeyService(apikeys.NewAPIKeyRepository(a.DB))
	apiHandler := apikeys.NewAPIHandler(characterSvc, itemSvc, sceneSvc, locationSvc)
	apikeys.RegisterRoutes(a.Echo, apikeys.NewHandler(keySvc), apiHandler, keySvc, campaignSvc, authSvc)

	a.Echo.GET("/healthz", a.health)
}

// health reports liveness. The DB ping catches a wedged connection pool
// without making the probe depend on Redis, which only backs sessions.
func (a *App) health(c echo.Context) error {
	if err := a.DB.PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
