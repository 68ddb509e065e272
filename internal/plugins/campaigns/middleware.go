package campaigns

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/questlog-app/questlog/internal/apperror"
	"github.com/questlog-app/questlog/internal/plugins/auth"
)

// contextKeyCampaign is the Echo context key for campaign context data.
const contextKeyCampaign = "campaign_context"

// RolePredicate decides whether a resolved role may pass the access
// filter. Predicates gate route groups, not individual records; record
// visibility is narrowed further down in the services.
type RolePredicate func(role Role) bool

// AnyMember admits every role above RoleNone.
func AnyMember(role Role) bool { return role > RoleNone }

// ManagementOnly admits only the campaign owner and GMs.
func ManagementOnly(role Role) bool { return role >= RoleGM }

// RequireCampaignAccess returns middleware that resolves the campaign from
// the :slug URL parameter and the user's role in it, admitting the request
// only when the predicate accepts that role. The resolved CampaignContext
// is injected into the Echo context for downstream handlers.
//
// Every failure mode returns the same not-found error: an unknown slug, a
// deactivated campaign, and an authenticated non-member are deliberately
// indistinguishable, so probing URLs reveals nothing about which campaigns
// exist. Site admins pass the predicate regardless of membership; their
// elevation is carried on the context, not in MemberRole.
//
// Must be applied AFTER auth.RequireAuth.
func RequireCampaignAccess(service CampaignService, allowed RolePredicate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			slug := c.Param("slug")
			if slug == "" {
				return apperror.NewNotFound("campaign not found")
			}

			session := auth.GetSession(c)
			if session == nil {
				return apperror.NewUnauthorized("authentication required")
			}

			campaign, err := service.GetActiveBySlug(c.Request().Context(), slug)
			if err != nil {
				return err
			}

			role, err := service.ResolveRole(c.Request().Context(), campaign, session.UserID)
			if err != nil {
				return err
			}

			if !allowed(role) && !session.IsAdmin {
				return apperror.NewNotFound("campaign not found")
			}

			c.Set(contextKeyCampaign, &CampaignContext{
				Campaign:    campaign,
				MemberRole:  role,
				IsSiteAdmin: session.IsAdmin,
			})
			return next(c)
		}
	}
}

// GetCampaignContext retrieves the campaign context from the Echo context.
// Returns nil if RequireCampaignAccess middleware was not applied.
func GetCampaignContext(c echo.Context) *CampaignContext {
	cc, ok := c.Get(contextKeyCampaign).(*CampaignContext)
	if !ok {
		return nil
	}
	return cc
}

// MustCampaignContext retrieves the campaign context or errors. Handlers
// registered under RequireCampaignAccess use this to fail loudly on a
// miswired route instead of dereferencing nil.
func MustCampaignContext(c echo.Context) (*CampaignContext, error) {
	cc := GetCampaignContext(c)
	if cc == nil {
		return nil, apperror.NewInternal(
			fmt.Errorf("handler used without RequireCampaignAccess"),
		)
	}
	return cc, nil
}
