package campaigns

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/questlog-app/questlog/internal/apperror"
	"github.com/questlog-app/questlog/internal/plugins/auth"
	"github.com/questlog-app/questlog/internal/validate"
)

// Handler handles HTTP requests for campaign operations. Handlers are thin:
// bind request, validate, call service, encode response. No business logic
// lives here.
type Handler struct {
	service CampaignService
}

// NewHandler creates a new campaign handler.
func NewHandler(service CampaignService) *Handler {
	return &Handler{service: service}
}

// --- Campaign CRUD ---

// List returns the caller's campaigns (GET /campaigns).
func (h *Handler) List(c echo.Context) error {
	userID := auth.GetUserID(c)

	page, _ := strconv.Atoi(c.QueryParam("page"))
	opts := DefaultListOptions()
	if page > 0 {
		opts.Page = page
	}

	campaignsList, total, err := h.service.List(c.Request().Context(), userID, opts)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"campaigns": campaignsList,
		"total":     total,
		"page":      opts.Page,
		"per_page":  opts.PerPage,
	})
}

// Discover returns joinable public campaigns (GET /campaigns/public).
func (h *Handler) Discover(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	campaignsList, err := h.service.ListPublic(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"campaigns": campaignsList})
}

// Create creates a new campaign owned by the caller (POST /campaigns).
func (h *Handler) Create(c echo.Context) error {
	var req CreateCampaignRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	campaign, err := h.service.Create(c.Request().Context(), auth.GetUserID(c), CreateCampaignInput{
		Name:        req.Name,
		Description: req.Description,
		GameSystem:  req.GameSystem,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, campaign)
}

// Show returns the campaign with the caller's resolved role
// (GET /campaigns/:slug).
func (h *Handler) Show(c echo.Context) error {
	cc, err := MustCampaignContext(c)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"campaign": cc.Campaign,
		"role":     cc.EffectiveRole().String(),
	})
}

// Update modifies campaign details and settings (PUT /campaigns/:slug).
// Owner only.
func (h *Handler) Update(c echo.Context) error {
	cc, err := MustCampaignContext(c)
	if err != nil {
		return err
	}
	if cc.EffectiveRole() < RoleOwner {
		return apperror.NewForbidden("only the campaign owner can change settings")
	}

	var req UpdateCampaignRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	campaign, err := h.service.Update(c.Request().Context(), cc.Campaign.ID, UpdateCampaignInput{
		Name:                     req.Name,
		Description:              req.Description,
		GameSystem:               req.GameSystem,
		IsActive:                 req.IsActive,
		IsPublic:                 req.IsPublic,
		AllowObserverJoin:        req.AllowObserverJoin,
		AllowPlayerJoin:          req.AllowPlayerJoin,
		MaxCharactersPerPlayer:   req.MaxCharactersPerPlayer,
		AllowGMCharacterDeletion: req.AllowGMCharacterDeletion,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, campaign)
}

// Delete permanently removes the campaign (DELETE /campaigns/:slug).
// Owner only; the request must echo the campaign name back.
func (h *Handler) Delete(c echo.Context) error {
	cc, err := MustCampaignContext(c)
	if err != nil {
		return err
	}
	if cc.EffectiveRole() < RoleOwner {
		return apperror.NewForbidden("only the campaign owner can delete the campaign")
	}

	var req ConfirmDeleteRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if req.ConfirmName != cc.Campaign.Name {
		return apperror.NewFieldError("confirm_name", "name does not match")
	}

	if err := h.service.Delete(c.Request().Context(), cc.Campaign.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Membership ---

// Members lists the campaign's members (GET /campaigns/:slug/members).
func (h *Handler) Members(c echo.Context) error {
	cc, err := MustCampaignContext(c)
	if err != nil {
		return err
	}

	members, err := h.service.ListMembers(c.Request().Context(), cc.Campaign.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"owner_id": cc.Campaign.OwnerID,
		"members":  members,
	})
}

// AddMember adds a registered user by email (POST /campaigns/:slug/members).
// Owner only.
func (h *Handler) AddMember(c echo.Context) error {
	cc, err := MustCampaignContext(c)
	if err != nil {
		return err
	}
	if cc.EffectiveRole() < RoleOwner {
		return apperror.NewForbidden("only the campaign owner can manage members")
	}

	var req AddMemberRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	if err := h.service.AddMemberByEmail(c.Request().Context(), cc.Campaign, req.Email, RoleFromString(req.Role)); err != nil {
		return err
	}
	return c.NoContent(http.StatusCreated)
}

// UpdateRole changes a member's role (PUT /campaigns/:slug/members/:uid/role).
// Owner only.
func (h *Handler) UpdateRole(c echo.Context) error {
	cc, err := MustCampaignContext(c)
	if err != nil {
		return err
	}
	if cc.EffectiveRole() < RoleOwner {
		return apperror.NewForbidden("only the campaign owner can manage members")
	}

	var req UpdateRoleRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	if err := h.service.UpdateMemberRole(c.Request().Context(), cc.Campaign, c.Param("uid"), RoleFromString(req.Role)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveMember removes a member (DELETE /campaigns/:slug/members/:uid).
// Owner only.
func (h *Handler) RemoveMember(c echo.Context) error {
	cc, err := MustCampaignContext(c)
	if err != nil {
		return err
	}
	if cc.EffectiveRole() < RoleOwner {
		return apperror.NewForbidden("only the campaign owner can manage members")
	}

	if err := h.service.RemoveMember(c.Request().Context(), cc.Campaign, c.Param("uid")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Leave removes the caller's own membership (POST /campaigns/:slug/leave).
func (h *Handler) Leave(c echo.Context) error {
	cc, err := MustCampaignContext(c)
	if err != nil {
		return err
	}

	if err := h.service.LeaveCampaign(c.Request().Context(), cc.Campaign, auth.GetUserID(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Invitations ---

// CreateInvitation creates an invite link (POST /campaigns/:slug/invitations).
// Owner and GMs.
func (h *Handler) CreateInvitation(c echo.Context) error {
	cc, err := MustCampaignContext(c)
	if err != nil {
		return err
	}

	var req CreateInvitationRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	inv, token, err := h.service.CreateInvitation(
		c.Request().Context(), cc.Campaign, auth.GetUserID(c),
		RoleFromString(req.Role), req.Email,
	)
	if err != nil {
		return err
	}

	// The raw token appears exactly once, in this response.
	return c.JSON(http.StatusCreated, echo.Map{
		"invitation": inv,
		"token":      token,
	})
}

// ListInvitations lists outstanding invitations
// (GET /campaigns/:slug/invitations). Owner and GMs.
func (h *Handler) ListInvitations(c echo.Context) error {
	cc, err := MustCampaignContext(c)
	if err != nil {
		return err
	}

	invites, err := h.service.ListInvitations(c.Request().Context(), cc.Campaign.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"invitations": invites})
}

// RevokeInvitation deletes an invitation
// (DELETE /campaigns/:slug/invitations/:iid). Owner and GMs.
func (h *Handler) RevokeInvitation(c echo.Context) error {
	cc, err := MustCampaignContext(c)
	if err != nil {
		return err
	}

	if err := h.service.RevokeInvitation(c.Request().Context(), cc.Campaign.ID, c.Param("iid")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// PreviewInvitation shows what an invite token grants
// (GET /invitations/:token).
func (h *Handler) PreviewInvitation(c echo.Context) error {
	inv, campaign, err := h.service.PreviewInvitation(c.Request().Context(), c.Param("token"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"campaign_name": campaign.Name,
		"game_system":   campaign.GameSystem,
		"role":          inv.Role.String(),
		"expires_at":    inv.ExpiresAt,
	})
}

// AcceptInvitation redeems an invite token for the caller
// (POST /invitations/:token/accept).
func (h *Handler) AcceptInvitation(c echo.Context) error {
	session := auth.GetSession(c)
	if session == nil {
		return apperror.NewUnauthorized("authentication required")
	}

	campaign, err := h.service.AcceptInvitation(c.Request().Context(), c.Param("token"), session.UserID, session.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"campaign": campaign})
}

// --- Direct Join ---

// Join adds the caller to a public campaign (POST /campaigns/:slug/join).
// Registered outside the access filter: the caller is not a member yet.
func (h *Handler) Join(c echo.Context) error {
	var req JoinRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	campaign, err := h.service.GetActiveBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}

	if err := h.service.Join(c.Request().Context(), campaign, auth.GetUserID(c), RoleFromString(req.Role)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"campaign": campaign})
}
