// Package campaigns manages campaigns (the top-level containers for all
// game content) and their role-based membership system: memberships,
// invitations, and the per-request campaign access filter that every other
// content plugin depends on.
package campaigns

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// --- Role System ---

// Role represents a user's permission level within a campaign.
// Higher numeric values indicate more permissions. Use >= comparisons:
//
//	if role >= RolePlayer { /* allow content creation */ }
type Role int

const (
	// RoleNone indicates the user has no role in the campaign. Non-members
	// must receive responses indistinguishable from "campaign does not exist".
	RoleNone Role = 0

	// RoleObserver grants read-only access to campaign content.
	RoleObserver Role = 1

	// RolePlayer grants read access plus control over the player's own
	// characters. Players see only characters they own.
	RolePlayer Role = 2

	// RoleGM grants full read/write access to campaign content.
	RoleGM Role = 3

	// RoleOwner is derived from Campaign.OwnerID -- it is never stored as a
	// membership row. Full control including settings and membership.
	RoleOwner Role = 4
)

// RoleFromString converts a database role string to a Role constant.
func RoleFromString(s string) Role {
	switch s {
	case "owner":
		return RoleOwner
	case "gm":
		return RoleGM
	case "player":
		return RolePlayer
	case "observer":
		return RoleObserver
	default:
		return RoleNone
	}
}

// String returns the database-safe string representation of a Role.
func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleGM:
		return "gm"
	case RolePlayer:
		return "player"
	case RoleObserver:
		return "observer"
	default:
		return ""
	}
}

// DisplayName returns a human-readable label for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleOwner:
		return "Owner"
	case RoleGM:
		return "Game Master"
	case RolePlayer:
		return "Player"
	case RoleObserver:
		return "Observer"
	default:
		return "None"
	}
}

// IsValid returns true if this is a valid campaign membership role.
// RoleOwner is excluded: ownership lives on the campaign row, not in a
// membership, so it can never be assigned through membership operations.
func (r Role) IsValid() bool {
	return r >= RoleObserver && r <= RoleGM
}

// --- Domain Models ---

// Campaign represents a top-level game container. Exactly one owner per
// campaign; the owner never has a membership row.
type Campaign struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description *string `json:"description,omitempty"`
	GameSystem  string  `json:"game_system"`
	OwnerID     string  `json:"owner_id"`
	IsActive    bool    `json:"is_active"`
	IsPublic    bool    `json:"is_public"`

	// Join flags: when set on a public campaign, any authenticated user may
	// join directly with the matching role, no invitation needed.
	AllowObserverJoin bool `json:"allow_observer_join"`
	AllowPlayerJoin   bool `json:"allow_player_join"`

	// MaxCharactersPerPlayer caps non-deleted characters per player.
	// Zero means unlimited.
	MaxCharactersPerPlayer int `json:"max_characters_per_player"`

	// AllowGMCharacterDeletion controls whether GMs may soft-delete
	// characters they don't own. Editing is unaffected.
	AllowGMCharacterDeletion bool `json:"allow_gm_character_deletion"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership represents a user's role assignment in a campaign.
// Unique per (campaign, user); role is one of gm, player, observer.
type Membership struct {
	CampaignID string    `json:"campaign_id"`
	UserID     string    `json:"user_id"`
	Role       Role      `json:"role"`
	JoinedAt   time.Time `json:"joined_at"`

	// Joined from users table for display purposes.
	DisplayName string  `json:"display_name,omitempty"`
	Email       string  `json:"email,omitempty"`
	AvatarPath  *string `json:"avatar_path,omitempty"`
}

// Invitation represents a pending invite to join a campaign with a given
// role. The token travels in the invite link; accepting creates the
// membership and stamps AcceptedAt/AcceptedBy.
type Invitation struct {
	ID         string     `json:"id"`
	CampaignID string     `json:"campaign_id"`
	Token      string     `json:"-"` // Never expose in JSON.
	Role       Role       `json:"role"`
	Email      *string    `json:"email,omitempty"` // When set, only this address may accept.
	InvitedBy  string     `json:"invited_by"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy *string    `json:"accepted_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsExpired returns true if the invitation is past its expiry.
func (i *Invitation) IsExpired() bool {
	return time.Now().UTC().After(i.ExpiresAt)
}

// IsAccepted returns true if the invitation has already been used.
func (i *Invitation) IsAccepted() bool {
	return i.AcceptedAt != nil
}

// CampaignContext holds the resolved campaign and the requesting user's
// permissions for one request. Built by RequireCampaignAccess middleware and
// threaded to handlers; never mutated after construction.
type CampaignContext struct {
	Campaign    *Campaign
	MemberRole  Role // Actual role from ResolveRole; RoleNone for non-members.
	IsSiteAdmin bool // True if user has users.is_admin flag.
}

// EffectiveRole returns the permission level to use for authorization.
// Site admins act with owner-equivalent privilege regardless of membership;
// the role resolver itself never special-cases them (it stays a pure data
// lookup), so the elevation happens here at the call site.
func (cc *CampaignContext) EffectiveRole() Role {
	if cc.IsSiteAdmin {
		return RoleOwner
	}
	return cc.MemberRole
}

// --- Cross-Plugin Interfaces ---

// MailService is the interface for sending email, implemented elsewhere.
// Campaigns uses it for invitation emails. May be nil if mail is not
// configured; invitations still work via shareable links.
type MailService interface {
	SendMail(to []string, subject, body string) error
}

// UserFinder finds users for membership operations. Avoids importing the
// auth plugin's types directly.
type UserFinder interface {
	FindUserByEmail(ctx context.Context, email string) (*MemberUser, error)
	FindUserByID(ctx context.Context, id string) (*MemberUser, error)
}

// MemberUser is the minimal user info needed for membership operations.
type MemberUser struct {
	ID          string
	Email       string
	DisplayName string
}

// --- Request DTOs (bound from HTTP requests) ---

// CreateCampaignRequest holds the data for creating a campaign.
type CreateCampaignRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=5000"`
	GameSystem  string `json:"game_system" validate:"max=100"`
}

// UpdateCampaignRequest holds the data for updating a campaign's details
// and settings. Ownership is not mutable here.
type UpdateCampaignRequest struct {
	Name                     string `json:"name" validate:"required,max=100"`
	Description              string `json:"description" validate:"max=5000"`
	GameSystem               string `json:"game_system" validate:"max=100"`
	IsActive                 bool   `json:"is_active"`
	IsPublic                 bool   `json:"is_public"`
	AllowObserverJoin        bool   `json:"allow_observer_join"`
	AllowPlayerJoin          bool   `json:"allow_player_join"`
	MaxCharactersPerPlayer   int    `json:"max_characters_per_player" validate:"gte=0,lte=100"`
	AllowGMCharacterDeletion bool   `json:"allow_gm_character_deletion"`
}

// AddMemberRequest holds the data for adding a member directly by email.
type AddMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=gm player observer"`
}

// UpdateRoleRequest holds the data for changing a member's role.
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=gm player observer"`
}

// CreateInvitationRequest holds the data for creating an invitation.
type CreateInvitationRequest struct {
	Role  string `json:"role" validate:"required,oneof=gm player observer"`
	Email string `json:"email" validate:"omitempty,email"`
}

// JoinRequest holds the data for joining a public campaign directly.
type JoinRequest struct {
	Role string `json:"role" validate:"required,oneof=player observer"`
}

// ConfirmDeleteRequest requires the caller to type the exact name of what
// they are deleting. Shared by campaign and entity delete endpoints.
type ConfirmDeleteRequest struct {
	ConfirmName string `json:"confirm_name"`
}

// --- Service Input DTOs ---

// CreateCampaignInput is the validated input for creating a campaign.
type CreateCampaignInput struct {
	Name        string
	Description string
	GameSystem  string
}

// UpdateCampaignInput is the validated input for updating a campaign.
type UpdateCampaignInput struct {
	Name                     string
	Description              string
	GameSystem               string
	IsActive                 bool
	IsPublic                 bool
	AllowObserverJoin        bool
	AllowPlayerJoin          bool
	MaxCharactersPerPlayer   int
	AllowGMCharacterDeletion bool
}

// ListOptions holds pagination parameters for list queries.
type ListOptions struct {
	Page    int
	PerPage int
}

// DefaultListOptions returns sensible defaults for pagination.
func DefaultListOptions() ListOptions {
	return ListOptions{Page: 1, PerPage: 24}
}

// Offset returns the SQL OFFSET value for the current page.
func (o ListOptions) Offset() int {
	if o.Page < 1 {
		o.Page = 1
	}
	return (o.Page - 1) * o.PerPage
}

// --- Slug Generation ---

// slugPattern matches one or more non-alphanumeric characters for replacement.
var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// maxSlugBaseLen caps the slug before uniqueness suffixes. The slug column
// is VARCHAR(120); a dedupe suffix adds at most 9 more characters.
const maxSlugBaseLen = 100

// Slugify creates a URL-safe slug from a name. Lowercase, replace
// non-alphanumeric characters with hyphens, trim leading/trailing hyphens,
// truncate to maxSlugBaseLen.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugPattern.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugBaseLen {
		slug = strings.TrimRight(slug[:maxSlugBaseLen], "-")
	}
	if slug == "" {
		slug = "campaign"
	}
	return slug
}
