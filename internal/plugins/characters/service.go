package characters

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/questlog-app/questlog/internal/access"
	"github.com/questlog-app/questlog/internal/apperror"
	"github.com/questlog-app/questlog/internal/plugins/audit"
	"github.com/questlog-app/questlog/internal/plugins/campaigns"
	"github.com/questlog-app/questlog/internal/sanitize"
)

// CharacterService defines the business logic for character operations.
// Callers resolve the campaign and role first (the campaign access
// middleware does this); the scope passed in carries both.
type CharacterService interface {
	Create(ctx context.Context, campaign *campaigns.Campaign, scope access.Scope, input CreateCharacterInput) (*Character, error)
	Get(ctx context.Context, scope access.Scope, id string) (*Character, error)
	List(ctx context.Context, scope access.Scope, opts ListOptions) ([]Character, int, error)
	Update(ctx context.Context, scope access.Scope, id string, input UpdateCharacterInput) (*Character, error)
	Delete(ctx context.Context, campaign *campaigns.Campaign, scope access.Scope, id, confirmName string) error
}

// characterService implements CharacterService.
type characterService struct {
	repo  CharacterRepository
	audit audit.AuditService
}

// NewCharacterService creates a new character service.
func NewCharacterService(repo CharacterRepository, auditSvc audit.AuditService) CharacterService {
	return &characterService{repo: repo, audit: auditSvc}
}

// Create creates a character. For players the PC is always their own; a
// GM may assign a PC to any player, or leave it unassigned. NPCs never
// have an owner regardless of who creates them.
func (s *characterService) Create(ctx context.Context, campaign *campaigns.Campaign, scope access.Scope, input CreateCharacterInput) (*Character, error) {
	if !access.CanCreate(scope.Role) {
		return nil, apperror.NewForbidden("observers cannot create characters")
	}
	if !input.Kind.IsValid() {
		return nil, apperror.NewFieldError("kind", "kind must be pc or npc")
	}

	playerID, err := s.resolveOwner(scope, input)
	if err != nil {
		return nil, err
	}

	if playerID != nil && campaign.MaxCharactersPerPlayer > 0 {
		count, err := s.repo.CountActiveByPlayer(ctx, campaign.ID, *playerID)
		if err != nil {
			return nil, err
		}
		if count >= campaign.MaxCharactersPerPlayer {
			return nil, apperror.NewFieldError("campaign",
				fmt.Sprintf("character limit of %d per player reached", campaign.MaxCharactersPerPlayer))
		}
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.NewFieldError("name", "name is required")
	}
	exists, err := s.repo.NameExists(ctx, campaign.ID, name, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperror.NewFieldError("name", "a character with this name already exists")
	}

	now := time.Now().UTC()
	ch := &Character{
		ID:          generateUUID(),
		CampaignID:  campaign.ID,
		Kind:        input.Kind,
		Name:        name,
		Description: descriptionPtr(input.Description),
		SheetData:   input.SheetData,
		PlayerID:    playerID,
		CreatedBy:   scope.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, ch); err != nil {
		return nil, err
	}

	s.logAction(ctx, scope, audit.ActionCharacterCreated, ch)
	return ch, nil
}

// resolveOwner decides the effective PlayerID for a new character.
func (s *characterService) resolveOwner(scope access.Scope, input CreateCharacterInput) (*string, error) {
	if input.Kind == KindNPC {
		if input.PlayerID != "" {
			return nil, apperror.NewFieldError("player_id", "NPCs cannot have an owning player")
		}
		return nil, nil
	}

	// PC. Players own what they create; a GM may assign or leave unowned.
	if scope.Role < campaigns.RoleGM {
		owner := scope.UserID
		return &owner, nil
	}
	if input.PlayerID == "" {
		return nil, nil
	}
	owner := input.PlayerID
	return &owner, nil
}

// Get retrieves a single character visible to the caller.
func (s *characterService) Get(ctx context.Context, scope access.Scope, id string) (*Character, error) {
	return s.repo.FindByID(ctx, scope, id)
}

// List returns the characters visible to the caller.
func (s *characterService) List(ctx context.Context, scope access.Scope, opts ListOptions) ([]Character, int, error) {
	return s.repo.List(ctx, scope, opts)
}

// Update edits a character the caller may edit. A record the caller can
// see but not edit is a 403; a record outside the caller's view is a 404,
// indistinguishable from one that does not exist.
func (s *characterService) Update(ctx context.Context, scope access.Scope, id string, input UpdateCharacterInput) (*Character, error) {
	ch, err := s.repo.FindByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if !access.CanEdit(scope, ch) {
		return nil, apperror.NewForbidden("you cannot edit this character")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.NewFieldError("name", "name is required")
	}
	if name != ch.Name {
		exists, err := s.repo.NameExists(ctx, ch.CampaignID, name, ch.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperror.NewFieldError("name", "a character with this name already exists")
		}
	}

	ch.Name = name
	ch.Description = descriptionPtr(input.Description)
	ch.SheetData = input.SheetData
	ch.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, ch); err != nil {
		return nil, err
	}

	s.logAction(ctx, scope, audit.ActionCharacterUpdated, ch)
	return ch, nil
}

// Delete soft-deletes a character after name confirmation. The audit entry
// is written in the same transaction as the delete, so every deletion has
// exactly one attributed record.
func (s *characterService) Delete(ctx context.Context, campaign *campaigns.Campaign, scope access.Scope, id, confirmName string) error {
	ch, err := s.repo.FindByID(ctx, scope, id)
	if err != nil {
		return err
	}
	if confirmName != ch.Name {
		return apperror.NewFieldError("confirm_name", "name does not match")
	}
	if !access.CanDelete(campaign, scope, ch) {
		return apperror.NewForbidden("you cannot delete this character")
	}

	entry := &audit.AuditEntry{
		CampaignID: ch.CampaignID,
		UserID:     scope.UserID,
		Action:     audit.ActionCharacterDeleted,
		RecordType: "character",
		RecordID:   ch.ID,
		RecordName: ch.Name,
	}
	return s.repo.SoftDelete(ctx, id, scope.UserID, entry)
}

// logAction records a best-effort audit entry for non-delete mutations.
func (s *characterService) logAction(ctx context.Context, scope access.Scope, action string, ch *Character) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Log(ctx, &audit.AuditEntry{
		CampaignID: ch.CampaignID,
		UserID:     scope.UserID,
		Action:     action,
		RecordType: "character",
		RecordID:   ch.ID,
		RecordName: ch.Name,
	})
}

func descriptionPtr(desc string) *string {
	desc = strings.TrimSpace(sanitize.HTML(desc))
	if desc == "" {
		return nil
	}
	return &desc
}

func generateUUID() string {
	uuid := make([]byte, 16)
	if _, err := rand.Read(uuid); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	uuid[6] = (uuid[6] & 0x0f) | 0x40 // Version 4
	uuid[8] = (uuid[8] & 0x3f) | 0x80 // Variant RFC 4122
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		uuid[0:4], uuid[4:6], uuid[6:8], uuid[8:10], uuid[10:16])
}
