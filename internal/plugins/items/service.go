package items

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/questlog-app/questlog/internal/access"
	"github.com/questlog-app/questlog/internal/apperror"
	"github.com/questlog-app/questlog/internal/plugins/audit"
	"github.com/questlog-app/questlog/internal/sanitize"
)

// ItemService defines the business logic for item operations.
type ItemService interface {
	Create(ctx context.Context, scope access.Scope, input CreateItemInput) (*Item, error)
	Get(ctx context.Context, scope access.Scope, id string) (*Item, error)
	List(ctx context.Context, scope access.Scope, opts ListOptions) ([]Item, int, error)
	Update(ctx context.Context, scope access.Scope, id string, input UpdateItemInput) (*Item, error)
	Delete(ctx context.Context, scope access.Scope, id, confirmName string) error
}

// CreateItemInput is the validated input for creating an item.
type CreateItemInput struct {
	Name        string
	Description string
}

// UpdateItemInput is the validated input for updating an item.
type UpdateItemInput struct {
	Name        string
	Description string
}

type itemService struct {
	repo  ItemRepository
	audit audit.AuditService
}

// NewItemService creates a new item service.
func NewItemService(repo ItemRepository, auditSvc audit.AuditService) ItemService {
	return &itemService{repo: repo, audit: auditSvc}
}

func (s *itemService) Create(ctx context.Context, scope access.Scope, input CreateItemInput) (*Item, error) {
	if !access.CanCreate(scope.Role) {
		return nil, apperror.NewForbidden("observers cannot create items")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.NewFieldError("name", "name is required")
	}

	now := time.Now().UTC()
	item := &Item{
		ID:          generateUUID(),
		CampaignID:  scope.CampaignID,
		Name:        name,
		Description: descriptionPtr(input.Description),
		CreatedBy:   scope.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}

	s.logAction(ctx, scope, audit.ActionItemCreated, item)
	return item, nil
}

func (s *itemService) Get(ctx context.Context, scope access.Scope, id string) (*Item, error) {
	return s.repo.FindByID(ctx, scope, id)
}

func (s *itemService) List(ctx context.Context, scope access.Scope, opts ListOptions) ([]Item, int, error) {
	return s.repo.List(ctx, scope, opts)
}

// Update edits an item. Items are unowned, so only GMs and the owner may
// edit; a player's record-owner path never applies here.
func (s *itemService) Update(ctx context.Context, scope access.Scope, id string, input UpdateItemInput) (*Item, error) {
	item, err := s.repo.FindByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if !access.CanEdit(scope, item) {
		return nil, apperror.NewForbidden("you cannot edit this item")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.NewFieldError("name", "name is required")
	}

	item.Name = name
	item.Description = descriptionPtr(input.Description)
	item.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}

	s.logAction(ctx, scope, audit.ActionItemUpdated, item)
	return item, nil
}

func (s *itemService) Delete(ctx context.Context, scope access.Scope, id, confirmName string) error {
	item, err := s.repo.FindByID(ctx, scope, id)
	if err != nil {
		return err
	}
	if confirmName != item.Name {
		return apperror.NewFieldError("confirm_name", "name does not match")
	}
	// Unowned records share the edit predicate for deletion; the GM
	// deletion toggle only constrains player-owned characters.
	if !access.CanEdit(scope, item) {
		return apperror.NewForbidden("you cannot delete this item")
	}

	entry := &audit.AuditEntry{
		CampaignID: item.CampaignID,
		UserID:     scope.UserID,
		Action:     audit.ActionItemDeleted,
		RecordType: "item",
		RecordID:   item.ID,
		RecordName: item.Name,
	}
	return s.repo.SoftDelete(ctx, id, scope.UserID, entry)
}

func (s *itemService) logAction(ctx context.Context, scope access.Scope, action string, item *Item) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Log(ctx, &audit.AuditEntry{
		CampaignID: item.CampaignID,
		UserID:     scope.UserID,
		Action:     action,
		RecordType: "item",
		RecordID:   item.ID,
		RecordName: item.Name,
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
