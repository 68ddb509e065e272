package locations

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

// maxNestingDepth bounds the parent-chain walk when validating a re-parent,
// which also caps how deep a location tree can legitimately get.
const maxNestingDepth = 32

// LocationService defines the business logic for location operations.
type LocationService interface {
	Create(ctx context.Context, scope access.Scope, input CreateLocationInput) (*Location, error)
	Get(ctx context.Context, scope access.Scope, id string) (*Location, error)
	List(ctx context.Context, scope access.Scope, opts ListOptions) ([]Location, int, error)
	Update(ctx context.Context, scope access.Scope, id string, input UpdateLocationInput) (*Location, error)
	Delete(ctx context.Context, scope access.Scope, id, confirmName string) error
}

// CreateLocationInput is the validated input for creating a location.
type CreateLocationInput struct {
	Name        string
	Description string
	ParentID    string
}

// UpdateLocationInput is the validated input for updating a location.
// An empty ParentID detaches the location.
type UpdateLocationInput struct {
	Name        string
	Description string
	ParentID    string
}

type locationService struct {
	repo  LocationRepository
	audit audit.AuditService
}

// NewLocationService creates a new location service.
func NewLocationService(repo LocationRepository, auditSvc audit.AuditService) LocationService {
	return &locationService{repo: repo, audit: auditSvc}
}

func (s *locationService) Create(ctx context.Context, scope access.Scope, input CreateLocationInput) (*Location, error) {
	if !access.CanCreate(scope.Role) {
		return nil, apperror.NewForbidden("observers cannot create locations")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.NewFieldError("name", "name is required")
	}

	parentID, err := s.resolveParent(ctx, scope, "", input.ParentID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	loc := &Location{
		ID:          generateUUID(),
		CampaignID:  scope.CampaignID,
		Name:        name,
		Description: descriptionPtr(input.Description),
		ParentID:    parentID,
		CreatedBy:   scope.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, loc); err != nil {
		return nil, err
	}

	s.logAction(ctx, scope, audit.ActionLocationCreated, loc)
	return loc, nil
}

// resolveParent validates a requested parent: it must be a visible location
// in the same campaign, and re-parenting must not close a cycle. The chain
// walk is bounded; a chain deeper than maxNestingDepth is rejected.
func (s *locationService) resolveParent(ctx context.Context, scope access.Scope, selfID, parentID string) (*string, error) {
	if parentID == "" {
		return nil, nil
	}
	if parentID == selfID {
		return nil, apperror.NewFieldError("parent_id", "a location cannot be its own parent")
	}

	// The scoped lookup conceals parents from other campaigns.
	parent, err := s.repo.FindByID(ctx, scope, parentID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewFieldError("parent_id", "parent location not found")
		}
		return nil, err
	}

	if selfID != "" {
		cursor := parent
		for depth := 0; cursor.ParentID != nil; depth++ {
			if depth >= maxNestingDepth {
				return nil, apperror.NewFieldError("parent_id", "location tree is nested too deeply")
			}
			if *cursor.ParentID == selfID {
				return nil, apperror.NewFieldError("parent_id", "cannot move a location under its own descendant")
			}
			cursor, err = s.repo.FindByID(ctx, scope, *cursor.ParentID)
			if err != nil {
				return nil, err
			}
		}
	}

	return &parent.ID, nil
}

func (s *locationService) Get(ctx context.Context, scope access.Scope, id string) (*Location, error) {
	return s.repo.FindByID(ctx, scope, id)
}

func (s *locationService) List(ctx context.Context, scope access.Scope, opts ListOptions) ([]Location, int, error) {
	return s.repo.List(ctx, scope, opts)
}

func (s *locationService) Update(ctx context.Context, scope access.Scope, id string, input UpdateLocationInput) (*Location, error) {
	loc, err := s.repo.FindByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if !access.CanEdit(scope, loc) {
		return nil, apperror.NewForbidden("you cannot edit this location")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.NewFieldError("name", "name is required")
	}

	parentID, err := s.resolveParent(ctx, scope, loc.ID, input.ParentID)
	if err != nil {
		return nil, err
	}

	loc.Name = name
	loc.Description = descriptionPtr(input.Description)
	loc.ParentID = parentID
	loc.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, loc); err != nil {
		return nil, err
	}

	s.logAction(ctx, scope, audit.ActionLocationUpdated, loc)
	return loc, nil
}

func (s *locationService) Delete(ctx context.Context, scope access.Scope, id, confirmName string) error {
	loc, err := s.repo.FindByID(ctx, scope, id)
	if err != nil {
		return err
	}
	if confirmName != loc.Name {
		return apperror.NewFieldError("confirm_name", "name does not match")
	}
	if !access.CanEdit(scope, loc) {
		return apperror.NewForbidden("you cannot delete this location")
	}

	entry := &audit.AuditEntry{
		CampaignID: loc.CampaignID,
		UserID:     scope.UserID,
		Action:     audit.ActionLocationDeleted,
		RecordType: "location",
		RecordID:   loc.ID,
		RecordName: loc.Name,
	}
	return s.repo.SoftDelete(ctx, id, scope.UserID, entry)
}

func (s *locationService) logAction(ctx context.Context, scope access.Scope, action string, loc *Location) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Log(ctx, &audit.AuditEntry{
		CampaignID: loc.CampaignID,
		UserID:     scope.UserID,
		Action:     action,
		RecordType: "location",
		RecordID:   loc.ID,
		RecordName: loc.Name,
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
