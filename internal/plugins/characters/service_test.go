package characters

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/questlog-app/questlog/internal/access"
	"github.com/questlog-app/questlog/internal/apperror"
	"github.com/questlog-app/questlog/internal/plugins/audit"
	"github.com/questlog-app/questlog/internal/plugins/campaigns"
	"github.com/questlog-app/questlog/internal/validate"
)

// --- Mock Repository ---

// mockCharacterRepo implements CharacterRepository for testing.
type mockCharacterRepo struct {
	createFn              func(ctx context.Context, ch *Character) error
	findByIDFn            func(ctx context.Context, scope access.Scope, id string) (*Character, error)
	listFn                func(ctx context.Context, scope access.Scope, opts ListOptions) ([]Character, int, error)
	updateFn              func(ctx context.Context, ch *Character) error
	softDeleteFn          func(ctx context.Context, id, deletedBy string, entry *audit.AuditEntry) error
	nameExistsFn          func(ctx context.Context, campaignID, name, excludeID string) (bool, error)
	countActiveByPlayerFn func(ctx context.Context, campaignID, playerID string) (int, error)
}

func (m *mockCharacterRepo) Create(ctx context.Context, ch *Character) error {
	if m.createFn != nil {
		return m.createFn(ctx, ch)
	}
	return nil
}

func (m *mockCharacterRepo) FindByID(ctx context.Context, scope access.Scope, id string) (*Character, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, scope, id)
	}
	return nil, apperror.NewNotFound("character not found")
}

func (m *mockCharacterRepo) List(ctx context.Context, scope access.Scope, opts ListOptions) ([]Character, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, scope, opts)
	}
	return nil, 0, nil
}

func (m *mockCharacterRepo) Update(ctx context.Context, ch *Character) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, ch)
	}
	return nil
}

func (m *mockCharacterRepo) SoftDelete(ctx context.Context, id, deletedBy string, entry *audit.AuditEntry) error {
	if m.softDeleteFn != nil {
		return m.softDeleteFn(ctx, id, deletedBy, entry)
	}
	return nil
}

func (m *mockCharacterRepo) NameExists(ctx context.Context, campaignID, name, excludeID string) (bool, error) {
	if m.nameExistsFn != nil {
		return m.nameExistsFn(ctx, campaignID, name, excludeID)
	}
	return false, nil
}

func (m *mockCharacterRepo) CountActiveByPlayer(ctx context.Context, campaignID, playerID string) (int, error) {
	if m.countActiveByPlayerFn != nil {
		return m.countActiveByPlayerFn(ctx, campaignID, playerID)
	}
	return 0, nil
}

// --- Helpers ---

func newTestService(repo CharacterRepository) CharacterService {
	return NewCharacterService(repo, nil)
}

func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status code %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

func testCampaign() *campaigns.Campaign {
	return &campaigns.Campaign{
		ID:                       "camp-1",
		Name:                     "Curse of Strahd",
		Slug:                     "curse-of-strahd",
		OwnerID:                  "owner-1",
		IsActive:                 true,
		AllowGMCharacterDeletion: true,
	}
}

func scopeFor(role campaigns.Role, userID string) access.Scope {
	return access.Scope{CampaignID: "camp-1", UserID: userID, Role: role}
}

func strPtr(s string) *string { return &s }

func testCharacter(playerID *string) *Character {
	kind := KindNPC
	if playerID != nil {
		kind = KindPC
	}
	return &Character{
		ID:         "char-1",
		CampaignID: "camp-1",
		Kind:       kind,
		Name:       "Strahd von Zarovich",
		PlayerID:   playerID,
		CreatedBy:  "owner-1",
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}

// --- Create ---

func TestCreateObserverForbidden(t *testing.T) {
	svc := newTestService(&mockCharacterRepo{})

	_, err := svc.Create(context.Background(), testCampaign(), scopeFor(campaigns.RoleObserver, "obs-1"), CreateCharacterInput{
		Name: "Ireena",
		Kind: KindPC,
	})
	assertAppError(t, err, http.StatusForbidden)
}

func TestCreatePlayerAlwaysOwnsOwnPC(t *testing.T) {
	var created *Character
	repo := &mockCharacterRepo{
		createFn: func(ctx context.Context, ch *Character) error {
			created = ch
			return nil
		},
	}
	svc := newTestService(repo)

	// The player asks for someone else to own the PC; the request is
	// ignored and ownership lands on the creator.
	ch, err := svc.Create(context.Background(), testCampaign(), scopeFor(campaigns.RolePlayer, "player-1"), CreateCharacterInput{
		Name:     "Ireena Kolyana",
		Kind:     KindPC,
		PlayerID: "player-2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.PlayerID == nil || *ch.PlayerID != "player-1" {
		t.Errorf("expected owner player-1, got %v", ch.PlayerID)
	}
	if created == nil {
		t.Fatal("expected repo.Create to be called")
	}
	if ch.CreatedBy != "player-1" {
		t.Errorf("expected created_by player-1, got %s", ch.CreatedBy)
	}
}

func TestCreateGMAssignsOwner(t *testing.T) {
	svc := newTestService(&mockCharacterRepo{})

	ch, err := svc.Create(context.Background(), testCampaign(), scopeFor(campaigns.RoleGM, "gm-1"), CreateCharacterInput{
		Name:     "Ismark the Lesser",
		Kind:     KindPC,
		PlayerID: "player-2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.PlayerID == nil || *ch.PlayerID != "player-2" {
		t.Errorf("expected owner player-2, got %v", ch.PlayerID)
	}
}

func TestCreateGMUnassignedPC(t *testing.T) {
	svc := newTestService(&mockCharacterRepo{})

	ch, err := svc.Create(context.Background(), testCampaign(), scopeFor(campaigns.RoleGM, "gm-1"), CreateCharacterInput{
		Name: "Pre-made Hero",
		Kind: KindPC,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.PlayerID != nil {
		t.Errorf("expected unowned PC, got owner %v", *ch.PlayerID)
	}
}

func TestCreateNPCRejectsOwner(t *testing.T) {
	svc := newTestService(&mockCharacterRepo{})

	_, err := svc.Create(context.Background(), testCampaign(), scopeFor(campaigns.RoleGM, "gm-1"), CreateCharacterInput{
		Name:     "Strahd",
		Kind:     KindNPC,
		PlayerID: "player-1",
	})
	assertAppError(t, err, http.StatusUnprocessableEntity)
}

func TestCreateEnforcesCharacterCap(t *testing.T) {
	campaign := testCampaign()
	campaign.MaxCharactersPerPlayer = 2

	repo := &mockCharacterRepo{
		countActiveByPlayerFn: func(ctx context.Context, campaignID, playerID string) (int, error) {
			return 2, nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), campaign, scopeFor(campaigns.RolePlayer, "player-1"), CreateCharacterInput{
		Name: "Third Wheel",
		Kind: KindPC,
	})
	assertAppError(t, err, http.StatusUnprocessableEntity)

	var appErr *apperror.AppError
	errors.As(err, &appErr)
	if appErr.Fields["campaign"] == "" {
		t.Error("expected a field error on campaign")
	}
}

func TestCreateCapBoundaryAllowsLast(t *testing.T) {
	campaign := testCampaign()
	campaign.MaxCharactersPerPlayer = 2

	repo := &mockCharacterRepo{
		countActiveByPlayerFn: func(ctx context.Context, campaignID, playerID string) (int, error) {
			return 1, nil
		},
	}
	svc := newTestService(repo)

	if _, err := svc.Create(context.Background(), campaign, scopeFor(campaigns.RolePlayer, "player-1"), CreateCharacterInput{
		Name: "Second Character",
		Kind: KindPC,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateCapIgnoredForNPCs(t *testing.T) {
	campaign := testCampaign()
	campaign.MaxCharactersPerPlayer = 1

	repo := &mockCharacterRepo{
		countActiveByPlayerFn: func(ctx context.Context, campaignID, playerID string) (int, error) {
			t.Error("cap check should not run for NPCs")
			return 99, nil
		},
	}
	svc := newTestService(repo)

	if _, err := svc.Create(context.Background(), campaign, scopeFor(campaigns.RoleGM, "gm-1"), CreateCharacterInput{
		Name: "Villager",
		Kind: KindNPC,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateDuplicateName(t *testing.T) {
	repo := &mockCharacterRepo{
		nameExistsFn: func(ctx context.Context, campaignID, name, excludeID string) (bool, error) {
			return true, nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), testCampaign(), scopeFor(campaigns.RoleGM, "gm-1"), CreateCharacterInput{
		Name: "Strahd von Zarovich",
		Kind: KindNPC,
	})
	assertAppError(t, err, http.StatusUnprocessableEntity)

	var appErr *apperror.AppError
	errors.As(err, &appErr)
	if appErr.Fields["name"] == "" {
		t.Error("expected a field error on name")
	}
}

// --- Update ---

func TestUpdateForeignPCInvisibleToPlayer(t *testing.T) {
	// The repo enforces visibility in SQL, so another player's PC simply
	// is not found. The mock's default reproduces that.
	svc := newTestService(&mockCharacterRepo{})

	_, err := svc.Update(context.Background(), scopeFor(campaigns.RolePlayer, "player-1"), "char-1", UpdateCharacterInput{
		Name: "New Name",
	})
	assertAppError(t, err, http.StatusNotFound)
}

func TestUpdateVisibleButNotEditable(t *testing.T) {
	// An observer sees everything but edits nothing. Visible-but-locked
	// records answer 403, not 404.
	repo := &mockCharacterRepo{
		findByIDFn: func(ctx context.Context, scope access.Scope, id string) (*Character, error) {
			return testCharacter(nil), nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.Update(context.Background(), scopeFor(campaigns.RoleObserver, "obs-1"), "char-1", UpdateCharacterInput{
		Name: "New Name",
	})
	assertAppError(t, err, http.StatusForbidden)
}

func TestUpdatePlayerEditsOwnPC(t *testing.T) {
	repo := &mockCharacterRepo{
		findByIDFn: func(ctx context.Context, scope access.Scope, id string) (*Character, error) {
			return testCharacter(strPtr("player-1")), nil
		},
	}
	svc := newTestService(repo)

	ch, err := svc.Update(context.Background(), scopeFor(campaigns.RolePlayer, "player-1"), "char-1", UpdateCharacterInput{
		Name: "Renamed Hero",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.Name != "Renamed Hero" {
		t.Errorf("expected renamed character, got %s", ch.Name)
	}
}

func TestUpdateRenameChecksUniqueness(t *testing.T) {
	var checkedExclude string
	repo := &mockCharacterRepo{
		findByIDFn: func(ctx context.Context, scope access.Scope, id string) (*Character, error) {
			return testCharacter(nil), nil
		},
		nameExistsFn: func(ctx context.Context, campaignID, name, excludeID string) (bool, error) {
			checkedExclude = excludeID
			return false, nil
		},
	}
	svc := newTestService(repo)

	if _, err := svc.Update(context.Background(), scopeFor(campaigns.RoleGM, "gm-1"), "char-1", UpdateCharacterInput{
		Name: "Count Strahd",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if checkedExclude != "char-1" {
		t.Errorf("rename must exclude the record itself, got exclude %q", checkedExclude)
	}
}

func TestUpdateSameNameSkipsUniquenessCheck(t *testing.T) {
	repo := &mockCharacterRepo{
		findByIDFn: func(ctx context.Context, scope access.Scope, id string) (*Character, error) {
			return testCharacter(nil), nil
		},
		nameExistsFn: func(ctx context.Context, campaignID, name, excludeID string) (bool, error) {
			t.Error("uniqueness check should be skipped when the name is unchanged")
			return false, nil
		},
	}
	svc := newTestService(repo)

	if _, err := svc.Update(context.Background(), scopeFor(campaigns.RoleGM, "gm-1"), "char-1", UpdateCharacterInput{
		Name: "Strahd von Zarovich",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- Delete ---

func TestDeleteConfirmNameMismatch(t *testing.T) {
	repo := &mockCharacterRepo{
		findByIDFn: func(ctx context.Context, scope access.Scope, id string) (*Character, error) {
			return testCharacter(nil), nil
		},
	}
	svc := newTestService(repo)

	err := svc.Delete(context.Background(), testCampaign(), scopeFor(campaigns.RoleGM, "gm-1"), "char-1", "wrong name")
	assertAppError(t, err, http.StatusUnprocessableEntity)
}

func TestDeleteGMBlockedByCampaignToggle(t *testing.T) {
	campaign := testCampaign()
	campaign.AllowGMCharacterDeletion = false

	repo := &mockCharacterRepo{
		findByIDFn: func(ctx context.Context, scope access.Scope, id string) (*Character, error) {
			ch := testCharacter(strPtr("player-1"))
			ch.Name = "Ireena Kolyana"
			return ch, nil
		},
	}
	svc := newTestService(repo)

	err := svc.Delete(context.Background(), campaign, scopeFor(campaigns.RoleGM, "gm-1"), "char-1", "Ireena Kolyana")
	assertAppError(t, err, http.StatusForbidden)
}

func TestDeleteGMAllowedByCampaignToggle(t *testing.T) {
	var deleted bool
	repo := &mockCharacterRepo{
		findByIDFn: func(ctx context.Context, scope access.Scope, id string) (*Character, error) {
			ch := testCharacter(strPtr("player-1"))
			ch.Name = "Ireena Kolyana"
			return ch, nil
		},
		softDeleteFn: func(ctx context.Context, id, deletedBy string, entry *audit.AuditEntry) error {
			deleted = true
			if entry.Action != audit.ActionCharacterDeleted {
				t.Errorf("expected delete audit action, got %s", entry.Action)
			}
			if entry.RecordName != "Ireena Kolyana" {
				t.Errorf("expected record name in audit entry, got %s", entry.RecordName)
			}
			return nil
		},
	}
	svc := newTestService(repo)

	if err := svc.Delete(context.Background(), testCampaign(), scopeFor(campaigns.RoleGM, "gm-1"), "char-1", "Ireena Kolyana"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Error("expected repo.SoftDelete to be called")
	}
}

func TestDeleteOwnerIgnoresToggle(t *testing.T) {
	// The toggle only constrains GMs; the campaign owner always may delete.
	campaign := testCampaign()
	campaign.AllowGMCharacterDeletion = false

	repo := &mockCharacterRepo{
		findByIDFn: func(ctx context.Context, scope access.Scope, id string) (*Character, error) {
			ch := testCharacter(strPtr("player-1"))
			ch.Name = "Ireena Kolyana"
			return ch, nil
		},
	}
	svc := newTestService(repo)

	if err := svc.Delete(context.Background(), campaign, scopeFor(campaigns.RoleOwner, "owner-1"), "char-1", "Ireena Kolyana"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteAlreadyDeletedNotFound(t *testing.T) {
	// A repeat delete is indistinguishable from deleting a record that
	// never existed.
	svc := newTestService(&mockCharacterRepo{})

	err := svc.Delete(context.Background(), testCampaign(), scopeFor(campaigns.RoleGM, "gm-1"), "char-1", "whatever")
	assertAppError(t, err, http.StatusNotFound)
}

// --- List visibility ---

func TestListPassesScopeThrough(t *testing.T) {
	var got access.Scope
	repo := &mockCharacterRepo{
		listFn: func(ctx context.Context, scope access.Scope, opts ListOptions) ([]Character, int, error) {
			got = scope
			return nil, 0, nil
		},
	}
	svc := newTestService(repo)

	scope := scopeFor(campaigns.RolePlayer, "player-1")
	if _, _, err := svc.List(context.Background(), scope, DefaultListOptions()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.OwnerRestricted() {
		t.Error("player scope must be owner-restricted when it reaches the repository")
	}
}

func TestCreateRequestNameFitsColumn(t *testing.T) {
	// The name column is VARCHAR(100). A longer name must fail validation
	// as a field error, never reach the insert and die as a 500.
	err := validate.Struct(CreateCharacterRequest{Name: strings.Repeat("a", 150), Kind: "pc"})
	assertAppError(t, err, http.StatusUnprocessableEntity)

	if err := validate.Struct(CreateCharacterRequest{Name: strings.Repeat("a", 100), Kind: "pc"}); err != nil {
		t.Errorf("100-char name should validate, got %v", err)
	}
}
