package campaigns

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/questlog-app/questlog/internal/apperror"
	"github.com/questlog-app/questlog/internal/sanitize"
)

// invitationTokenBytes is the number of random bytes in an invite token.
const invitationTokenBytes = 32

// invitationExpiryHours is how long an invitation remains valid.
const invitationExpiryHours = 168 // 7 days

// maxSlugAttempts bounds the numbered-suffix loop before falling back to
// a random suffix.
const maxSlugAttempts = 100

// CampaignService handles business logic for campaign operations.
// It owns slug generation, role resolution, membership rules, and the
// invitation lifecycle.
type CampaignService interface {
	// Campaign CRUD
	Create(ctx context.Context, userID string, input CreateCampaignInput) (*Campaign, error)
	GetByID(ctx context.Context, id string) (*Campaign, error)
	GetActiveBySlug(ctx context.Context, slug string) (*Campaign, error)
	List(ctx context.Context, userID string, opts ListOptions) ([]Campaign, int, error)
	ListPublic(ctx context.Context, limit int) ([]Campaign, error)
	Update(ctx context.Context, campaignID string, input UpdateCampaignInput) (*Campaign, error)
	Delete(ctx context.Context, campaignID string) error

	// ResolveRole returns the user's effective role in the campaign.
	// The owner always resolves to RoleOwner regardless of any membership
	// rows; non-members resolve to RoleNone without error.
	ResolveRole(ctx context.Context, campaign *Campaign, userID string) (Role, error)

	// Membership
	GetMember(ctx context.Context, campaignID, userID string) (*Membership, error)
	AddMemberByEmail(ctx context.Context, campaign *Campaign, email string, role Role) error
	RemoveMember(ctx context.Context, campaign *Campaign, userID string) error
	UpdateMemberRole(ctx context.Context, campaign *Campaign, userID string, role Role) error
	ListMembers(ctx context.Context, campaignID string) ([]Membership, error)
	LeaveCampaign(ctx context.Context, campaign *Campaign, userID string) error

	// Invitations
	CreateInvitation(ctx context.Context, campaign *Campaign, invitedBy string, role Role, email string) (*Invitation, string, error)
	ListInvitations(ctx context.Context, campaignID string) ([]Invitation, error)
	RevokeInvitation(ctx context.Context, campaignID, invitationID string) error
	PreviewInvitation(ctx context.Context, token string) (*Invitation, *Campaign, error)
	AcceptInvitation(ctx context.Context, token, userID, userEmail string) (*Campaign, error)

	// Join handles direct self-service joining of a public campaign.
	Join(ctx context.Context, campaign *Campaign, userID string, role Role) error
}

// campaignService implements CampaignService.
type campaignService struct {
	repo    CampaignRepository
	users   UserFinder
	mail    MailService // May be nil if SMTP is not configured.
	baseURL string
}

// NewCampaignService creates a new campaign service with the given
// dependencies. The mail parameter may be nil; invitations then work via
// shareable links only.
func NewCampaignService(repo CampaignRepository, users UserFinder, mail MailService, baseURL string) CampaignService {
	return &campaignService{
		repo:    repo,
		users:   users,
		mail:    mail,
		baseURL: baseURL,
	}
}

// --- Campaign CRUD ---

// Create creates a new campaign owned by the given user. Ownership is a
// column on the campaign, never a membership row.
func (s *campaignService) Create(ctx context.Context, userID string, input CreateCampaignInput) (*Campaign, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.NewFieldError("name", "campaign name is required")
	}

	slug, err := s.generateSlug(ctx, name)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("generating slug: %w", err))
	}

	now := time.Now().UTC()
	campaign := &Campaign{
		ID:          generateUUID(),
		Name:        name,
		Slug:        slug,
		Description: descriptionPtr(input.Description),
		GameSystem:  strings.TrimSpace(input.GameSystem),
		OwnerID:     userID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating campaign: %w", err))
	}

	slog.Info("campaign created",
		slog.String("campaign_id", campaign.ID),
		slog.String("slug", campaign.Slug),
		slog.String("owner_id", userID))

	return campaign, nil
}

// GetByID retrieves a campaign by ID, active or not.
func (s *campaignService) GetByID(ctx context.Context, id string) (*Campaign, error) {
	return s.repo.FindByID(ctx, id)
}

// GetActiveBySlug retrieves an active campaign by slug.
func (s *campaignService) GetActiveBySlug(ctx context.Context, slug string) (*Campaign, error) {
	return s.repo.FindActiveBySlug(ctx, slug)
}

// List returns campaigns the user owns or belongs to.
func (s *campaignService) List(ctx context.Context, userID string, opts ListOptions) ([]Campaign, int, error) {
	return s.repo.ListByUser(ctx, userID, opts)
}

// ListPublic returns active public campaigns for discovery.
func (s *campaignService) ListPublic(ctx context.Context, limit int) ([]Campaign, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListPublic(ctx, limit)
}

// Update modifies a campaign's details and settings. The slug is assigned
// at creation and never changes afterwards; it is the external key that
// invitation links, bookmarks, and API clients hold, so a rename must not
// break them.
func (s *campaignService) Update(ctx context.Context, campaignID string, input UpdateCampaignInput) (*Campaign, error) {
	campaign, err := s.repo.FindByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.NewFieldError("name", "campaign name is required")
	}

	campaign.Name = name
	campaign.Description = descriptionPtr(input.Description)
	campaign.GameSystem = strings.TrimSpace(input.GameSystem)
	campaign.IsActive = input.IsActive
	campaign.IsPublic = input.IsPublic
	campaign.AllowObserverJoin = input.AllowObserverJoin
	campaign.AllowPlayerJoin = input.AllowPlayerJoin
	campaign.MaxCharactersPerPlayer = input.MaxCharactersPerPlayer
	campaign.AllowGMCharacterDeletion = input.AllowGMCharacterDeletion

	if err := s.repo.Update(ctx, campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}

// Delete permanently removes a campaign and everything in it.
func (s *campaignService) Delete(ctx context.Context, campaignID string) error {
	if err := s.repo.Delete(ctx, campaignID); err != nil {
		return err
	}
	slog.Info("campaign deleted", slog.String("campaign_id", campaignID))
	return nil
}

// --- Role Resolution ---

// ResolveRole returns the user's effective role in the campaign. Ownership
// wins over any membership row a past role change may have left behind.
// A missing membership is not an error; it resolves to RoleNone.
func (s *campaignService) ResolveRole(ctx context.Context, campaign *Campaign, userID string) (Role, error) {
	if userID == "" {
		return RoleNone, nil
	}
	if campaign.OwnerID == userID {
		return RoleOwner, nil
	}

	member, err := s.repo.FindMember(ctx, campaign.ID, userID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return RoleNone, nil
		}
		return RoleNone, err
	}
	return member.Role, nil
}

// --- Membership ---

// GetMember retrieves a user's membership in a campaign.
func (s *campaignService) GetMember(ctx context.Context, campaignID, userID string) (*Membership, error) {
	return s.repo.FindMember(ctx, campaignID, userID)
}

// AddMemberByEmail adds a registered user to the campaign by email address.
func (s *campaignService) AddMemberByEmail(ctx context.Context, campaign *Campaign, email string, role Role) error {
	if !role.IsValid() {
		return apperror.NewFieldError("role", "invalid role")
	}

	user, err := s.users.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewFieldError("email", "no account with that email address")
		}
		return err
	}

	if user.ID == campaign.OwnerID {
		return apperror.NewConflict("the campaign owner cannot also be a member")
	}
	if _, err := s.repo.FindMember(ctx, campaign.ID, user.ID); err == nil {
		return apperror.NewConflict("user is already a member of this campaign")
	} else if !apperror.IsNotFound(err) {
		return err
	}

	member := &Membership{
		CampaignID: campaign.ID,
		UserID:     user.ID,
		Role:       role,
		JoinedAt:   time.Now().UTC(),
	}
	if err := s.repo.AddMember(ctx, member); err != nil {
		return apperror.NewInternal(fmt.Errorf("adding member: %w", err))
	}

	slog.Info("member added",
		slog.String("campaign_id", campaign.ID),
		slog.String("user_id", user.ID),
		slog.String("role", role.String()))
	return nil
}

// RemoveMember removes a member from the campaign. The owner has no
// membership row and so cannot be removed through this path.
func (s *campaignService) RemoveMember(ctx context.Context, campaign *Campaign, userID string) error {
	if userID == campaign.OwnerID {
		return apperror.NewConflict("the campaign owner cannot be removed")
	}
	return s.repo.RemoveMember(ctx, campaign.ID, userID)
}

// UpdateMemberRole changes a member's role.
func (s *campaignService) UpdateMemberRole(ctx context.Context, campaign *Campaign, userID string, role Role) error {
	if !role.IsValid() {
		return apperror.NewFieldError("role", "invalid role")
	}
	if userID == campaign.OwnerID {
		return apperror.NewConflict("the campaign owner's role cannot be changed")
	}
	return s.repo.UpdateMemberRole(ctx, campaign.ID, userID, role)
}

// ListMembers returns all members of a campaign.
func (s *campaignService) ListMembers(ctx context.Context, campaignID string) ([]Membership, error) {
	return s.repo.ListMembers(ctx, campaignID)
}

// LeaveCampaign lets a member remove themselves. Owners cannot leave their
// own campaign; they must delete it or hand it off out of band.
func (s *campaignService) LeaveCampaign(ctx context.Context, campaign *Campaign, userID string) error {
	if userID == campaign.OwnerID {
		return apperror.NewConflict("the campaign owner cannot leave their own campaign")
	}
	return s.repo.RemoveMember(ctx, campaign.ID, userID)
}

// --- Invitations ---

// CreateInvitation creates a pending invitation and returns it together
// with the raw token. The token is returned exactly once; it is never
// exposed again through list or preview responses.
func (s *campaignService) CreateInvitation(ctx context.Context, campaign *Campaign, invitedBy string, role Role, email string) (*Invitation, string, error) {
	if !role.IsValid() {
		return nil, "", apperror.NewFieldError("role", "invalid role")
	}

	token, err := generateToken()
	if err != nil {
		return nil, "", apperror.NewInternal(fmt.Errorf("generating invitation token: %w", err))
	}

	now := time.Now().UTC()
	inv := &Invitation{
		ID:         generateUUID(),
		CampaignID: campaign.ID,
		Token:      token,
		Role:       role,
		InvitedBy:  invitedBy,
		ExpiresAt:  now.Add(invitationExpiryHours * time.Hour),
		CreatedAt:  now,
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		inv.Email = &email
	}

	if err := s.repo.CreateInvitation(ctx, inv); err != nil {
		return nil, "", apperror.NewInternal(fmt.Errorf("creating invitation: %w", err))
	}

	if email != "" && s.mail != nil {
		s.sendInvitationMail(email, campaign, token)
	}

	slog.Info("invitation created",
		slog.String("campaign_id", campaign.ID),
		slog.String("invitation_id", inv.ID),
		slog.String("role", role.String()))

	return inv, token, nil
}

// sendInvitationMail dispatches the invite email in the background. Mail
// failure never fails the invitation; the shareable link still works.
func (s *campaignService) sendInvitationMail(email string, campaign *Campaign, token string) {
	link := fmt.Sprintf("%s/invitations/%s", s.baseURL, token)
	subject := fmt.Sprintf("You're invited to join %s", campaign.Name)
	body := fmt.Sprintf(
		"You have been invited to join the campaign %q.\n\nAccept here: %s\n\nThis link expires in %d days.",
		campaign.Name, link, invitationExpiryHours/24,
	)

	go func() {
		if err := s.mail.SendMail([]string{email}, subject, body); err != nil {
			slog.Error("sending invitation email failed",
				slog.String("campaign_id", campaign.ID),
				slog.Any("error", err))
		}
	}()
}

// ListInvitations returns all invitations for a campaign.
func (s *campaignService) ListInvitations(ctx context.Context, campaignID string) ([]Invitation, error) {
	return s.repo.ListInvitations(ctx, campaignID)
}

// RevokeInvitation deletes a pending invitation.
func (s *campaignService) RevokeInvitation(ctx context.Context, campaignID, invitationID string) error {
	return s.repo.DeleteInvitation(ctx, campaignID, invitationID)
}

// PreviewInvitation resolves an invite token to its invitation and
// campaign so the accept page can show what is being joined. Expired and
// already-used tokens are reported as not found.
func (s *campaignService) PreviewInvitation(ctx context.Context, token string) (*Invitation, *Campaign, error) {
	inv, err := s.validInvitationByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	campaign, err := s.repo.FindByID(ctx, inv.CampaignID)
	if err != nil {
		return nil, nil, err
	}
	if !campaign.IsActive {
		return nil, nil, apperror.NewNotFound("invitation not found")
	}
	return inv, campaign, nil
}

// AcceptInvitation redeems an invite token for the given user, creating
// the membership at the invitation's role. Email-restricted invitations
// only accept the matching account.
func (s *campaignService) AcceptInvitation(ctx context.Context, token, userID, userEmail string) (*Campaign, error) {
	inv, err := s.validInvitationByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if inv.Email != nil && !strings.EqualFold(*inv.Email, userEmail) {
		// Reveal nothing about who the invitation was meant for.
		return nil, apperror.NewNotFound("invitation not found")
	}

	campaign, err := s.repo.FindByID(ctx, inv.CampaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.IsActive {
		return nil, apperror.NewNotFound("invitation not found")
	}

	if campaign.OwnerID == userID {
		return nil, apperror.NewConflict("you already own this campaign")
	}
	if _, err := s.repo.FindMember(ctx, campaign.ID, userID); err == nil {
		return nil, apperror.NewConflict("you are already a member of this campaign")
	} else if !apperror.IsNotFound(err) {
		return nil, err
	}

	if err := s.repo.AcceptInvitation(ctx, inv, userID); err != nil {
		return nil, err
	}

	slog.Info("invitation accepted",
		slog.String("campaign_id", campaign.ID),
		slog.String("invitation_id", inv.ID),
		slog.String("user_id", userID))

	return campaign, nil
}

// validInvitationByToken looks up a token and rejects expired or used
// invitations uniformly as not found.
func (s *campaignService) validInvitationByToken(ctx context.Context, token string) (*Invitation, error) {
	if token == "" {
		return nil, apperror.NewNotFound("invitation not found")
	}
	inv, err := s.repo.FindInvitationByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.IsExpired() || inv.IsAccepted() {
		return nil, apperror.NewNotFound("invitation not found")
	}
	return inv, nil
}

// --- Direct Join ---

// Join adds the user to a public campaign at the requested role, honoring
// the campaign's self-service join flags. Private campaigns are invisible
// to this path entirely.
func (s *campaignService) Join(ctx context.Context, campaign *Campaign, userID string, role Role) error {
	if !campaign.IsPublic {
		return apperror.NewNotFound("campaign not found")
	}

	switch role {
	case RolePlayer:
		if !campaign.AllowPlayerJoin {
			return apperror.NewForbidden("this campaign does not accept new players")
		}
	case RoleObserver:
		if !campaign.AllowObserverJoin {
			return apperror.NewForbidden("this campaign does not accept observers")
		}
	default:
		return apperror.NewFieldError("role", "you can only join as a player or observer")
	}

	if campaign.OwnerID == userID {
		return apperror.NewConflict("you already own this campaign")
	}
	if _, err := s.repo.FindMember(ctx, campaign.ID, userID); err == nil {
		return apperror.NewConflict("you are already a member of this campaign")
	} else if !apperror.IsNotFound(err) {
		return err
	}

	member := &Membership{
		CampaignID: campaign.ID,
		UserID:     userID,
		Role:       role,
		JoinedAt:   time.Now().UTC(),
	}
	if err := s.repo.AddMember(ctx, member); err != nil {
		return apperror.NewInternal(fmt.Errorf("joining campaign: %w", err))
	}

	slog.Info("user joined campaign",
		slog.String("campaign_id", campaign.ID),
		slog.String("user_id", userID),
		slog.String("role", role.String()))
	return nil
}

// --- Helpers ---

// descriptionPtr sanitizes and trims a description, returning nil for empty.
func descriptionPtr(desc string) *string {
	desc = strings.TrimSpace(sanitize.HTML(desc))
	if desc == "" {
		return nil
	}
	return &desc
}

// generateSlug produces a URL slug unique among all campaigns, trying
// numbered suffixes before falling back to a random one.
func (s *campaignService) generateSlug(ctx context.Context, name string) (string, error) {
	base := Slugify(name)
	slug := base

	for i := 2; i < maxSlugAttempts+2; i++ {
		exists, err := s.repo.SlugExists(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("checking slug: %w", err)
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}

	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random slug suffix: %w", err)
	}
	return fmt.Sprintf("%s-%s", base, hex.EncodeToString(b)), nil
}

// generateUUID creates a new v4 UUID string using crypto/rand.
// Panics if the system entropy source fails, as this indicates a
// catastrophic system problem that would compromise all security.
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

// generateToken creates a cryptographically random hex-encoded token.
func generateToken() (string, error) {
	b := make([]byte, invitationTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
