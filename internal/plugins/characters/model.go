// Package characters manages player characters and NPCs within a campaign.
// Characters are the only record type with a per-user owner: a PC belongs
// to the player who runs it, and players see and manage only their own.
// NPCs have no owning player and are campaign-visible like other records.
package characters

import (
	"encoding/json"
	"time"
)

// Kind tags the character subtype. The permission rules don't branch on
// kind; what matters is whether PlayerID is set.
type Kind string

const (
	// KindPC is a player character, owned by the player who runs it.
	KindPC Kind = "pc"

	// KindNPC is a non-player character controlled by the GM. NPCs have
	// no owning player.
	KindNPC Kind = "npc"
)

// IsValid returns true for a recognized character kind.
func (k Kind) IsValid() bool {
	return k == KindPC || k == KindNPC
}

// Character represents a character record in a campaign. SheetData holds
// the game-system-specific character sheet as raw JSON; Questlog stores
// and returns it without interpreting it.
type Character struct {
	ID          string          `json:"id"`
	CampaignID  string          `json:"campaign_id"`
	Kind        Kind            `json:"kind"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	SheetData   json.RawMessage `json:"sheet_data,omitempty"`

	// PlayerID is the owning player. Nil for NPCs.
	PlayerID *string `json:"player_id,omitempty"`

	CreatedBy string `json:"created_by"`

	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *string    `json:"deleted_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityCampaignID implements access.Entity.
func (c *Character) EntityCampaignID() string { return c.CampaignID }

// EntityPlayerOwner implements access.Entity. Empty for NPCs.
func (c *Character) EntityPlayerOwner() string {
	if c.PlayerID == nil {
		return ""
	}
	return *c.PlayerID
}

// EntityDeleted implements access.Entity.
func (c *Character) EntityDeleted() bool { return c.IsDeleted }

// --- Request DTOs (bound from HTTP requests) ---

// CreateCharacterRequest holds the data for creating a character.
// PlayerID is honored only for GM-level callers; players always own the
// PCs they create.
type CreateCharacterRequest struct {
	Name        string          `json:"name" validate:"required,max=100"`
	Kind        string          `json:"kind" validate:"required,oneof=pc npc"`
	Description string          `json:"description" validate:"max=5000"`
	SheetData   json.RawMessage `json:"sheet_data"`
	PlayerID    string          `json:"player_id" validate:"omitempty,uuid4"`
}

// UpdateCharacterRequest holds the editable character fields. Kind, owner,
// and campaign are immutable after creation.
type UpdateCharacterRequest struct {
	Name        string          `json:"name" validate:"required,max=100"`
	Description string          `json:"description" validate:"max=5000"`
	SheetData   json.RawMessage `json:"sheet_data"`
}

// DeleteCharacterRequest requires the exact character name as confirmation.
type DeleteCharacterRequest struct {
	ConfirmName string `json:"confirm_name"`
}

// --- Service Input DTOs ---

// CreateCharacterInput is the validated input for creating a character.
type CreateCharacterInput struct {
	Name        string
	Kind        Kind
	Description string
	SheetData   json.RawMessage
	PlayerID    string // Requested owner; effective owner decided by role.
}

// UpdateCharacterInput is the validated input for updating a character.
type UpdateCharacterInput struct {
	Name        string
	Description string
	SheetData   json.RawMessage
}

// ListOptions holds pagination parameters for character lists.
type ListOptions struct {
	Page    int
	PerPage int
}

// DefaultListOptions returns sensible defaults for pagination.
func DefaultListOptions() ListOptions {
	return ListOptions{Page: 1, PerPage: 50}
}

// Offset returns the SQL OFFSET value for the current page.
func (o ListOptions) Offset() int {
	if o.Page < 1 {
		o.Page = 1
	}
	return (o.Page - 1) * o.PerPage
}
