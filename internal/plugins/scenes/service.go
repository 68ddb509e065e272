package scenes

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

// SceneService defines the business logic for scene operations.
type SceneService interface {
	Create(ctx context.Context, scope access.Scope, input CreateSceneInput) (*Scene, error)
	Get(ctx context.Context, scope access.Scope, id string) (*Scene, error)
	List(ctx context.Context, scope access.Scope, opts ListOptions) ([]Scene, int, error)
	Update(ctx context.Context, scope access.Scope, id string, input UpdateSceneInput) (*Scene, error)
	Delete(ctx context.Context, scope access.Scope, id, confirmName string) error
}

// CreateSceneInput is the validated input for creating a scene.
type CreateSceneInput struct {
	Name        string
	Description string
	Status      Status // Empty defaults to planned.
	SortOrder   *int   // Nil appends after the last active scene.
}

// UpdateSceneInput is the validated input for updating a scene.
type UpdateSceneInput struct {
	Name        string
	Description string
	Status      Status
	SortOrder   int
}

type sceneService struct {
	repo  SceneRepository
	audit audit.AuditService
}

// NewSceneService creates a new scene service.
func NewSceneService(repo SceneRepository, auditSvc audit.AuditService) SceneService {
	return &sceneService{repo: repo, audit: auditSvc}
}

func (s *sceneService) Create(ctx context.Context, scope access.Scope, input CreateSceneInput) (*Scene, error) {
	if !access.CanCreate(scope.Role) {
		return nil, apperror.NewForbidden("observers cannot create scenes")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.NewFieldError("name", "name is required")
	}

	status := input.Status
	if status == "" {
		status = StatusPlanned
	}
	if !status.IsValid() {
		return nil, apperror.NewFieldError("status", "status must be planned, completed, or cancelled")
	}

	sortOrder := 0
	if input.SortOrder != nil {
		sortOrder = *input.SortOrder
	} else {
		next, err := s.repo.NextSortOrder(ctx, scope.CampaignID)
		if err != nil {
			return nil, err
		}
		sortOrder = next
	}

	now := time.Now().UTC()
	scene := &Scene{
		ID:          generateUUID(),
		CampaignID:  scope.CampaignID,
		Name:        name,
		Description: descriptionPtr(input.Description),
		Status:      status,
		SortOrder:   sortOrder,
		CreatedBy:   scope.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, scene); err != nil {
		return nil, err
	}

	s.logAction(ctx, scope, audit.ActionSceneCreated, scene)
	return scene, nil
}

func (s *sceneService) Get(ctx context.Context, scope access.Scope, id string) (*Scene, error) {
	return s.repo.FindByID(ctx, scope, id)
}

func (s *sceneService) List(ctx context.Context, scope access.Scope, opts ListOptions) ([]Scene, int, error) {
	return s.repo.List(ctx, scope, opts)
}

func (s *sceneService) Update(ctx context.Context, scope access.Scope, id string, input UpdateSceneInput) (*Scene, error) {
	scene, err := s.repo.FindByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if !access.CanEdit(scope, scene) {
		return nil, apperror.NewForbidden("you cannot edit this scene")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.NewFieldError("name", "name is required")
	}
	if !input.Status.IsValid() {
		return nil, apperror.NewFieldError("status", "status must be planned, completed, or cancelled")
	}

	scene.Name = name
	scene.Description = descriptionPtr(input.Description)
	scene.Status = input.Status
	scene.SortOrder = input.SortOrder
	scene.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, scene); err != nil {
		return nil, err
	}

	s.logAction(ctx, scope, audit.ActionSceneUpdated, scene)
	return scene, nil
}

func (s *sceneService) Delete(ctx context.Context, scope access.Scope, id, confirmName string) error {
	scene, err := s.repo.FindByID(ctx, scope, id)
	if err != nil {
		return err
	}
	if confirmName != scene.Name {
		return apperror.NewFieldError("confirm_name", "name does not match")
	}
	if !access.CanEdit(scope, scene) {
		return apperror.NewForbidden("you cannot delete this scene")
	}

	entry := &audit.AuditEntry{
		CampaignID: scene.CampaignID,
		UserID:     scope.UserID,
		Action:     audit.ActionSceneDeleted,
		RecordType: "scene",
		RecordID:   scene.ID,
		RecordName: scene.Name,
	}
	return s.repo.SoftDelete(ctx, id, scope.UserID, entry)
}

func (s *sceneService) logAction(ctx context.Context, scope access.Scope, action string, scene *Scene) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Log(ctx, &audit.AuditEntry{
		CampaignID: scene.CampaignID,
		UserID:     scope.UserID,
		Action:     action,
		RecordType: "scene",
		RecordID:   scene.ID,
		RecordName: scene.Name,
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
