package campaigns

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/questlog-app/questlog/internal/apperror"
)

// --- Mock Repository ---

// mockCampaignRepo implements CampaignRepository for testing.
type mockCampaignRepo struct {
	createFn            func(ctx context.Context, campaign *Campaign) error
	findByIDFn          func(ctx context.Context, id string) (*Campaign, error)
	findActiveBySlugFn  func(ctx context.Context, slug string) (*Campaign, error)
	listByUserFn        func(ctx context.Context, userID string, opts ListOptions) ([]Campaign, int, error)
	listPublicFn        func(ctx context.Context, limit int) ([]Campaign, error)
	updateFn            func(ctx context.Context, campaign *Campaign) error
	deleteFn            func(ctx context.Context, id string) error
	slugExistsFn        func(ctx context.Context, slug string) (bool, error)
	addMemberFn         func(ctx context.Context, member *Membership) error
	removeMemberFn      func(ctx context.Context, campaignID, userID string) error
	findMemberFn        func(ctx context.Context, campaignID, userID string) (*Membership, error)
	listMembersFn       func(ctx context.Context, campaignID string) ([]Membership, error)
	updateMemberRoleFn  func(ctx context.Context, campaignID, userID string, role Role) error
	createInvitationFn  func(ctx context.Context, inv *Invitation) error
	findInvByTokenFn    func(ctx context.Context, token string) (*Invitation, error)
	listInvitationsFn   func(ctx context.Context, campaignID string) ([]Invitation, error)
	deleteInvitationFn  func(ctx context.Context, campaignID, invitationID string) error
	acceptInvitationFn  func(ctx context.Context, inv *Invitation, userID string) error
}

func (m *mockCampaignRepo) Create(ctx context.Context, campaign *Campaign) error {
	if m.createFn != nil {
		return m.createFn(ctx, campaign)
	}
	return nil
}

func (m *mockCampaignRepo) FindByID(ctx context.Context, id string) (*Campaign, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("campaign not found")
}

func (m *mockCampaignRepo) FindActiveBySlug(ctx context.Context, slug string) (*Campaign, error) {
	if m.findActiveBySlugFn != nil {
		return m.findActiveBySlugFn(ctx, slug)
	}
	return nil, apperror.NewNotFound("campaign not found")
}

func (m *mockCampaignRepo) ListByUser(ctx context.Context, userID string, opts ListOptions) ([]Campaign, int, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID, opts)
	}
	return nil, 0, nil
}

func (m *mockCampaignRepo) ListPublic(ctx context.Context, limit int) ([]Campaign, error) {
	if m.listPublicFn != nil {
		return m.listPublicFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockCampaignRepo) Update(ctx context.Context, campaign *Campaign) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, campaign)
	}
	return nil
}

func (m *mockCampaignRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockCampaignRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	if m.slugExistsFn != nil {
		return m.slugExistsFn(ctx, slug)
	}
	return false, nil
}

func (m *mockCampaignRepo) AddMember(ctx context.Context, member *Membership) error {
	if m.addMemberFn != nil {
		return m.addMemberFn(ctx, member)
	}
	return nil
}

func (m *mockCampaignRepo) RemoveMember(ctx context.Context, campaignID, userID string) error {
	if m.removeMemberFn != nil {
		return m.removeMemberFn(ctx, campaignID, userID)
	}
	return nil
}

func (m *mockCampaignRepo) FindMember(ctx context.Context, campaignID, userID string) (*Membership, error) {
	if m.findMemberFn != nil {
		return m.findMemberFn(ctx, campaignID, userID)
	}
	return nil, apperror.NewNotFound("member not found")
}

func (m *mockCampaignRepo) ListMembers(ctx context.Context, campaignID string) ([]Membership, error) {
	if m.listMembersFn != nil {
		return m.listMembersFn(ctx, campaignID)
	}
	return nil, nil
}

func (m *mockCampaignRepo) UpdateMemberRole(ctx context.Context, campaignID, userID string, role Role) error {
	if m.updateMemberRoleFn != nil {
		return m.updateMemberRoleFn(ctx, campaignID, userID, role)
	}
	return nil
}

func (m *mockCampaignRepo) CreateInvitation(ctx context.Context, inv *Invitation) error {
	if m.createInvitationFn != nil {
		return m.createInvitationFn(ctx, inv)
	}
	return nil
}

func (m *mockCampaignRepo) FindInvitationByToken(ctx context.Context, token string) (*Invitation, error) {
	if m.findInvByTokenFn != nil {
		return m.findInvByTokenFn(ctx, token)
	}
	return nil, apperror.NewNotFound("invitation not found")
}

func (m *mockCampaignRepo) ListInvitations(ctx context.Context, campaignID string) ([]Invitation, error) {
	if m.listInvitationsFn != nil {
		return m.listInvitationsFn(ctx, campaignID)
	}
	return nil, nil
}

func (m *mockCampaignRepo) DeleteInvitation(ctx context.Context, campaignID, invitationID string) error {
	if m.deleteInvitationFn != nil {
		return m.deleteInvitationFn(ctx, campaignID, invitationID)
	}
	return nil
}

func (m *mockCampaignRepo) AcceptInvitation(ctx context.Context, inv *Invitation, userID string) error {
	if m.acceptInvitationFn != nil {
		return m.acceptInvitationFn(ctx, inv, userID)
	}
	return nil
}

// mockUserFinder implements UserFinder for testing.
type mockUserFinder struct {
	findByEmailFn func(ctx context.Context, email string) (*MemberUser, error)
	findByIDFn    func(ctx context.Context, id string) (*MemberUser, error)
}

func (m *mockUserFinder) FindUserByEmail(ctx context.Context, email string) (*MemberUser, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserFinder) FindUserByID(ctx context.Context, id string) (*MemberUser, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("user not found")
}

func newTestService(repo *mockCampaignRepo, users *mockUserFinder) CampaignService {
	if users == nil {
		users = &mockUserFinder{}
	}
	return NewCampaignService(repo, users, nil, "http://localhost:8080")
}


// assertAppError checks that an error is an AppError with the expected code.
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

func testCampaign() *Campaign {
	return &Campaign{
		ID:       "camp-1",
		Name:     "Curse of Strahd",
		Slug:     "curse-of-strahd",
		OwnerID:  "owner-1",
		IsActive: true,
	}
}

// --- Role Resolution ---

func TestResolveRoleOwnerWinsOverMembership(t *testing.T) {
	// A stray membership row must never demote the owner.
	repo := &mockCampaignRepo{
		findMemberFn: func(ctx context.Context, campaignID, userID string) (*Membership, error) {
			return &Membership{CampaignID: campaignID, UserID: userID, Role: RoleObserver}, nil
		},
	}
	svc := newTestService(repo, nil)

	role, err := svc.ResolveRole(context.Background(), testCampaign(), "owner-1")
	if err != nil {
		t.Fatalf("ResolveRole: %v", err)
	}
	if role != RoleOwner {
		t.Errorf("owner resolved to %v, want RoleOwner", role)
	}
}

func TestResolveRoleMember(t *testing.T) {
	repo := &mockCampaignRepo{
		findMemberFn: func(ctx context.Context, campaignID, userID string) (*Membership, error) {
			return &Membership{CampaignID: campaignID, UserID: userID, Role: RoleGM}, nil
		},
	}
	svc := newTestService(repo, nil)

	role, err := svc.ResolveRole(context.Background(), testCampaign(), "user-2")
	if err != nil {
		t.Fatalf("ResolveRole: %v", err)
	}
	if role != RoleGM {
		t.Errorf("member resolved to %v, want RoleGM", role)
	}
}

func TestResolveRoleNonMember(t *testing.T) {
	// A missing membership resolves to RoleNone without error.
	svc := newTestService(&mockCampaignRepo{}, nil)

	role, err := svc.ResolveRole(context.Background(), testCampaign(), "stranger")
	if err != nil {
		t.Fatalf("ResolveRole: %v", err)
	}
	if role != RoleNone {
		t.Errorf("non-member resolved to %v, want RoleNone", role)
	}
}

func TestResolveRoleAnonymous(t *testing.T) {
	repo := &mockCampaignRepo{
		findMemberFn: func(ctx context.Context, campaignID, userID string) (*Membership, error) {
			t.Fatal("repo should not be queried for an empty user ID")
			return nil, nil
		},
	}
	svc := newTestService(repo, nil)

	role, err := svc.ResolveRole(context.Background(), testCampaign(), "")
	if err != nil {
		t.Fatalf("ResolveRole: %v", err)
	}
	if role != RoleNone {
		t.Errorf("anonymous resolved to %v, want RoleNone", role)
	}
}

// --- Campaign CRUD ---

func TestCreateGeneratesSlug(t *testing.T) {
	var created *Campaign
	repo := &mockCampaignRepo{
		createFn: func(ctx context.Context, campaign *Campaign) error {
			created = campaign
			return nil
		},
	}
	svc := newTestService(repo, nil)

	campaign, err := svc.Create(context.Background(), "owner-1", CreateCampaignInput{Name: "Tomb of Annihilation!"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if campaign.Slug != "tomb-of-annihilation" {
		t.Errorf("slug = %q, want %q", campaign.Slug, "tomb-of-annihilation")
	}
	if created == nil || created.OwnerID != "owner-1" {
		t.Error("campaign was not persisted with the creator as owner")
	}
	if !campaign.IsActive {
		t.Error("new campaigns should start active")
	}
}

func TestCreateSlugCollision(t *testing.T) {
	taken := map[string]bool{"tomb-of-annihilation": true, "tomb-of-annihilation-2": true}
	repo := &mockCampaignRepo{
		slugExistsFn: func(ctx context.Context, slug string) (bool, error) {
			return taken[slug], nil
		},
	}
	svc := newTestService(repo, nil)

	campaign, err := svc.Create(context.Background(), "owner-1", CreateCampaignInput{Name: "Tomb of Annihilation"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if campaign.Slug != "tomb-of-annihilation-3" {
		t.Errorf("slug = %q, want %q", campaign.Slug, "tomb-of-annihilation-3")
	}
}

func TestCreateEmptyName(t *testing.T) {
	svc := newTestService(&mockCampaignRepo{}, nil)

	_, err := svc.Create(context.Background(), "owner-1", CreateCampaignInput{Name: "   "})
	assertAppError(t, err, http.StatusUnprocessableEntity)
}

func TestUpdateKeepsSlugWhenNameUnchanged(t *testing.T) {
	existing := testCampaign()
	repo := &mockCampaignRepo{
		findByIDFn: func(ctx context.Context, id string) (*Campaign, error) {
			c := *existing
			return &c, nil
		},
		slugExistsFn: func(ctx context.Context, slug string) (bool, error) {
			t.Fatal("slug should not be regenerated for an unchanged name")
			return false, nil
		},
	}
	svc := newTestService(repo, nil)

	updated, err := svc.Update(context.Background(), existing.ID, UpdateCampaignInput{
		Name:     existing.Name,
		IsActive: true,
		IsPublic: true,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Slug != existing.Slug {
		t.Errorf("slug changed from %q to %q on a settings-only edit", existing.Slug, updated.Slug)
	}
	if !updated.IsPublic {
		t.Error("IsPublic change was not applied")
	}
}

// --- Membership ---

func TestAddMemberByEmailOwnerRejected(t *testing.T) {
	users := &mockUserFinder{
		findByEmailFn: func(ctx context.Context, email string) (*MemberUser, error) {
			return &MemberUser{ID: "owner-1", Email: email}, nil
		},
	}
	svc := newTestService(&mockCampaignRepo{}, users)

	err := svc.AddMemberByEmail(context.Background(), testCampaign(), "owner@example.com", RolePlayer)
	assertAppError(t, err, http.StatusConflict)
}

func TestAddMemberByEmailUnknownUser(t *testing.T) {
	svc := newTestService(&mockCampaignRepo{}, &mockUserFinder{})

	err := svc.AddMemberByEmail(context.Background(), testCampaign(), "nobody@example.com", RolePlayer)
	assertAppError(t, err, http.StatusUnprocessableEntity)

	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Fields["email"] == "" {
		t.Error("expected a field error keyed on email")
	}
}

func TestAddMemberByEmailAlreadyMember(t *testing.T) {
	repo := &mockCampaignRepo{
		findMemberFn: func(ctx context.Context, campaignID, userID string) (*Membership, error) {
			return &Membership{CampaignID: campaignID, UserID: userID, Role: RolePlayer}, nil
		},
	}
	users := &mockUserFinder{
		findByEmailFn: func(ctx context.Context, email string) (*MemberUser, error) {
			return &MemberUser{ID: "user-2", Email: email}, nil
		},
	}
	svc := newTestService(repo, users)

	err := svc.AddMemberByEmail(context.Background(), testCampaign(), "player@example.com", RolePlayer)
	assertAppError(t, err, http.StatusConflict)
}

func TestRemoveMemberOwnerRejected(t *testing.T) {
	svc := newTestService(&mockCampaignRepo{}, nil)

	err := svc.RemoveMember(context.Background(), testCampaign(), "owner-1")
	assertAppError(t, err, http.StatusConflict)
}

func TestUpdateMemberRoleRejectsOwnerRole(t *testing.T) {
	svc := newTestService(&mockCampaignRepo{}, nil)

	err := svc.UpdateMemberRole(context.Background(), testCampaign(), "user-2", RoleOwner)
	assertAppError(t, err, http.StatusUnprocessableEntity)
}

// --- Invitations ---

func pendingInvitation() *Invitation {
	return &Invitation{
		ID:         "inv-1",
		CampaignID: "camp-1",
		Token:      "tok",
		Role:       RolePlayer,
		InvitedBy:  "owner-1",
		ExpiresAt:  time.Now().UTC().Add(24 * time.Hour),
		CreatedAt:  time.Now().UTC(),
	}
}

func TestCreateInvitationReturnsTokenOnce(t *testing.T) {
	var stored *Invitation
	repo := &mockCampaignRepo{
		createInvitationFn: func(ctx context.Context, inv *Invitation) error {
			stored = inv
			return nil
		},
	}
	svc := newTestService(repo, nil)

	inv, token, err := svc.CreateInvitation(context.Background(), testCampaign(), "owner-1", RolePlayer, "")
	if err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}
	if len(token) != invitationTokenBytes*2 {
		t.Errorf("token length = %d, want %d hex chars", len(token), invitationTokenBytes*2)
	}
	if stored == nil || stored.Token != token {
		t.Error("persisted invitation does not carry the returned token")
	}
	if inv.IsExpired() {
		t.Error("fresh invitation is already expired")
	}
}

func TestAcceptInvitationExpired(t *testing.T) {
	repo := &mockCampaignRepo{
		findInvByTokenFn: func(ctx context.Context, token string) (*Invitation, error) {
			inv := pendingInvitation()
			inv.ExpiresAt = time.Now().UTC().Add(-time.Hour)
			return inv, nil
		},
	}
	svc := newTestService(repo, nil)

	_, err := svc.AcceptInvitation(context.Background(), "tok", "user-2", "u2@example.com")
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found for expired invitation, got %v", err)
	}
}

func TestAcceptInvitationEmailMismatch(t *testing.T) {
	restricted := "invited@example.com"
	repo := &mockCampaignRepo{
		findInvByTokenFn: func(ctx context.Context, token string) (*Invitation, error) {
			inv := pendingInvitation()
			inv.Email = &restricted
			return inv, nil
		},
	}
	svc := newTestService(repo, nil)

	_, err := svc.AcceptInvitation(context.Background(), "tok", "user-2", "someoneelse@example.com")
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found for email mismatch, got %v", err)
	}
}

func TestAcceptInvitationEmailMatchCaseInsensitive(t *testing.T) {
	restricted := "Invited@Example.com"
	accepted := false
	repo := &mockCampaignRepo{
		findInvByTokenFn: func(ctx context.Context, token string) (*Invitation, error) {
			inv := pendingInvitation()
			inv.Email = &restricted
			return inv, nil
		},
		findByIDFn: func(ctx context.Context, id string) (*Campaign, error) {
			return testCampaign(), nil
		},
		acceptInvitationFn: func(ctx context.Context, inv *Invitation, userID string) error {
			accepted = true
			return nil
		},
	}
	svc := newTestService(repo, nil)

	campaign, err := svc.AcceptInvitation(context.Background(), "tok", "user-2", "invited@example.com")
	if err != nil {
		t.Fatalf("AcceptInvitation: %v", err)
	}
	if !accepted {
		t.Error("invitation was not redeemed")
	}
	if campaign.ID != "camp-1" {
		t.Errorf("joined campaign = %q, want camp-1", campaign.ID)
	}
}

func TestAcceptInvitationAlreadyMember(t *testing.T) {
	repo := &mockCampaignRepo{
		findInvByTokenFn: func(ctx context.Context, token string) (*Invitation, error) {
			return pendingInvitation(), nil
		},
		findByIDFn: func(ctx context.Context, id string) (*Campaign, error) {
			return testCampaign(), nil
		},
		findMemberFn: func(ctx context.Context, campaignID, userID string) (*Membership, error) {
			return &Membership{CampaignID: campaignID, UserID: userID, Role: RoleObserver}, nil
		},
	}
	svc := newTestService(repo, nil)

	_, err := svc.AcceptInvitation(context.Background(), "tok", "user-2", "u2@example.com")
	assertAppError(t, err, http.StatusConflict)
}

func TestAcceptInvitationInactiveCampaign(t *testing.T) {
	repo := &mockCampaignRepo{
		findInvByTokenFn: func(ctx context.Context, token string) (*Invitation, error) {
			return pendingInvitation(), nil
		},
		findByIDFn: func(ctx context.Context, id string) (*Campaign, error) {
			c := testCampaign()
			c.IsActive = false
			return c, nil
		},
	}
	svc := newTestService(repo, nil)

	_, err := svc.AcceptInvitation(context.Background(), "tok", "user-2", "u2@example.com")
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found for inactive campaign, got %v", err)
	}
}

// --- Direct Join ---

func TestJoinPrivateCampaignConcealed(t *testing.T) {
	campaign := testCampaign()
	campaign.AllowPlayerJoin = true // Flags are irrelevant while private.
	svc := newTestService(&mockCampaignRepo{}, nil)

	err := svc.Join(context.Background(), campaign, "user-2", RolePlayer)
	if !apperror.IsNotFound(err) {
		t.Fatalf("joining a private campaign should read as not found, got %v", err)
	}
}

func TestJoinRespectsJoinFlags(t *testing.T) {
	campaign := testCampaign()
	campaign.IsPublic = true
	campaign.AllowObserverJoin = true
	campaign.AllowPlayerJoin = false

	added := RoleNone
	repo := &mockCampaignRepo{
		addMemberFn: func(ctx context.Context, member *Membership) error {
			added = member.Role
			return nil
		},
	}
	svc := newTestService(repo, nil)

	err := svc.Join(context.Background(), campaign, "user-2", RolePlayer)
	assertAppError(t, err, http.StatusForbidden)

	if err := svc.Join(context.Background(), campaign, "user-2", RoleObserver); err != nil {
		t.Fatalf("joining as observer: %v", err)
	}
	if added != RoleObserver {
		t.Errorf("membership created with role %v, want RoleObserver", added)
	}
}

func TestJoinRejectsElevatedRoles(t *testing.T) {
	campaign := testCampaign()
	campaign.IsPublic = true
	campaign.AllowPlayerJoin = true
	svc := newTestService(&mockCampaignRepo{}, nil)

	for _, role := range []Role{RoleGM, RoleOwner} {
		err := svc.Join(context.Background(), campaign, "user-2", role)
		assertAppError(t, err, http.StatusUnprocessableEntity)
	}
}

// --- Slug generation ---

func TestGenerateSlugFallsBackToRandomSuffix(t *testing.T) {
	repo := &mockCampaignRepo{
		slugExistsFn: func(ctx context.Context, slug string) (bool, error) {
			return true, nil // Everything is taken.
		},
	}
	svc := newTestService(repo, nil).(*campaignService)

	slug, err := svc.generateSlug(context.Background(), "Popular Name")
	if err != nil {
		t.Fatalf("generateSlug: %v", err)
	}
	if !strings.HasPrefix(slug, "popular-name-") {
		t.Errorf("fallback slug %q does not keep the base", slug)
	}
}

func TestUpdateKeepsSlugOnRename(t *testing.T) {
	// The slug is the external key in every shared link; renaming the
	// campaign must not move it to a new URL.
	var saved *Campaign
	repo := &mockCampaignRepo{
		findByIDFn: func(ctx context.Context, id string) (*Campaign, error) {
			return testCampaign(), nil
		},
		updateFn: func(ctx context.Context, campaign *Campaign) error {
			saved = campaign
			return nil
		},
		slugExistsFn: func(ctx context.Context, slug string) (bool, error) {
			t.Fatal("rename must not touch slug generation")
			return false, nil
		},
	}
	svc := newTestService(repo, nil)

	updated, err := svc.Update(context.Background(), "camp-1", UpdateCampaignInput{
		Name:     "Curse of Strahd: Reloaded",
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Slug != "curse-of-strahd" {
		t.Errorf("slug changed to %q on rename", updated.Slug)
	}
	if saved == nil || saved.Slug != "curse-of-strahd" {
		t.Error("persisted campaign lost its original slug")
	}
}
