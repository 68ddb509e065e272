package campaigns

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/questlog-app/questlog/internal/apperror"
)

// CampaignRepository defines the data access contract for campaign operations.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type CampaignRepository interface {
	// Campaign CRUD
	Create(ctx context.Context, campaign *Campaign) error
	FindByID(ctx context.Context, id string) (*Campaign, error)
	FindActiveBySlug(ctx context.Context, slug string) (*Campaign, error)
	ListByUser(ctx context.Context, userID string, opts ListOptions) ([]Campaign, int, error)
	ListPublic(ctx context.Context, limit int) ([]Campaign, error)
	Update(ctx context.Context, campaign *Campaign) error
	Delete(ctx context.Context, id string) error
	SlugExists(ctx context.Context, slug string) (bool, error)

	// Membership
	AddMember(ctx context.Context, member *Membership) error
	RemoveMember(ctx context.Context, campaignID, userID string) error
	FindMember(ctx context.Context, campaignID, userID string) (*Membership, error)
	ListMembers(ctx context.Context, campaignID string) ([]Membership, error)
	UpdateMemberRole(ctx context.Context, campaignID, userID string, role Role) error

	// Invitations
	CreateInvitation(ctx context.Context, inv *Invitation) error
	FindInvitationByToken(ctx context.Context, token string) (*Invitation, error)
	ListInvitations(ctx context.Context, campaignID string) ([]Invitation, error)
	DeleteInvitation(ctx context.Context, campaignID, invitationID string) error

	// AcceptInvitation atomically marks the invitation accepted and inserts
	// the membership row within a single transaction.
	AcceptInvitation(ctx context.Context, inv *Invitation, userID string) error
}

// campaignRepository implements CampaignRepository with MariaDB queries.
type campaignRepository struct {
	db *sql.DB
}

// NewCampaignRepository creates a new repository backed by the given DB pool.
func NewCampaignRepository(db *sql.DB) CampaignRepository {
	return &campaignRepository{db: db}
}

// campaignColumns is the SELECT column list shared by campaign queries.
const campaignColumns = `id, name, slug, description, game_system, owner_id, is_active, is_public,
	allow_observer_join, allow_player_join, max_characters_per_player,
	allow_gm_character_deletion, created_at, updated_at`

// scanCampaign scans one campaign row from any row scanner.
func scanCampaign(row interface{ Scan(...any) error }) (*Campaign, error) {
	c := &Campaign{}
	err := row.Scan(
		&c.ID, &c.Name, &c.Slug, &c.Description, &c.GameSystem, &c.OwnerID,
		&c.IsActive, &c.IsPublic, &c.AllowObserverJoin, &c.AllowPlayerJoin,
		&c.MaxCharactersPerPlayer, &c.AllowGMCharacterDeletion,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// --- Campaign CRUD ---

// Create inserts a new campaign row.
func (r *campaignRepository) Create(ctx context.Context, campaign *Campaign) error {
	query := `INSERT INTO campaigns (` + campaignColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		campaign.ID, campaign.Name, campaign.Slug, campaign.Description,
		campaign.GameSystem, campaign.OwnerID, campaign.IsActive, campaign.IsPublic,
		campaign.AllowObserverJoin, campaign.AllowPlayerJoin,
		campaign.MaxCharactersPerPlayer, campaign.AllowGMCharacterDeletion,
		campaign.CreatedAt, campaign.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting campaign: %w", err)
	}
	return nil
}

// FindByID retrieves a campaign by its UUID, active or not.
func (r *campaignRepository) FindByID(ctx context.Context, id string) (*Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = ?`

	c, err := scanCampaign(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("campaign not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying campaign by id: %w", err)
	}
	return c, nil
}

// FindActiveBySlug retrieves an active campaign by its URL slug. Inactive
// campaigns are reported as not found -- deactivation hides a campaign from
// every non-admin surface.
func (r *campaignRepository) FindActiveBySlug(ctx context.Context, slug string) (*Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE slug = ? AND is_active = 1`

	c, err := scanCampaign(r.db.QueryRowContext(ctx, query, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("campaign not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying campaign by slug: %w", err)
	}
	return c, nil
}

// ListByUser returns campaigns the user owns or is a member of, ordered by
// most recently updated. Returns the campaigns and total count for pagination.
func (r *campaignRepository) ListByUser(ctx context.Context, userID string, opts ListOptions) ([]Campaign, int, error) {
	countQuery := `SELECT COUNT(DISTINCT c.id) FROM campaigns c
	               LEFT JOIN campaign_members cm ON cm.campaign_id = c.id AND cm.user_id = ?
	               WHERE c.owner_id = ? OR cm.user_id IS NOT NULL`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, userID, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting user campaigns: %w", err)
	}

	query := `SELECT DISTINCT c.id, c.name, c.slug, c.description, c.game_system, c.owner_id,
	                 c.is_active, c.is_public, c.allow_observer_join, c.allow_player_join,
	                 c.max_characters_per_player, c.allow_gm_character_deletion,
	                 c.created_at, c.updated_at
	          FROM campaigns c
	          LEFT JOIN campaign_members cm ON cm.campaign_id = c.id AND cm.user_id = ?
	          WHERE c.owner_id = ? OR cm.user_id IS NOT NULL
	          ORDER BY c.updated_at DESC
	          LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, userID, userID, opts.PerPage, opts.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("listing user campaigns: %w", err)
	}
	defer rows.Close()

	var campaignsList []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning campaign row: %w", err)
		}
		campaignsList = append(campaignsList, *c)
	}
	return campaignsList, total, rows.Err()
}

// ListPublic returns active public campaigns ordered by most recently
// updated. Used for the discovery endpoint.
func (r *campaignRepository) ListPublic(ctx context.Context, limit int) ([]Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns
	          WHERE is_public = 1 AND is_active = 1
	          ORDER BY updated_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing public campaigns: %w", err)
	}
	defer rows.Close()

	var campaignsList []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning public campaign row: %w", err)
		}
		campaignsList = append(campaignsList, *c)
	}
	return campaignsList, rows.Err()
}

// Update modifies an existing campaign's details and settings. OwnerID is
// deliberately not in the column list: ownership never changes through the
// edit surface.
func (r *campaignRepository) Update(ctx context.Context, campaign *Campaign) error {
	query := `UPDATE campaigns SET name = ?, slug = ?, description = ?, game_system = ?,
	          is_active = ?, is_public = ?, allow_observer_join = ?, allow_player_join = ?,
	          max_characters_per_player = ?, allow_gm_character_deletion = ?, updated_at = NOW()
	          WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		campaign.Name, campaign.Slug, campaign.Description, campaign.GameSystem,
		campaign.IsActive, campaign.IsPublic,
		campaign.AllowObserverJoin, campaign.AllowPlayerJoin,
		campaign.MaxCharactersPerPlayer, campaign.AllowGMCharacterDeletion,
		campaign.ID,
	)
	if err != nil {
		return fmt.Errorf("updating campaign: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperror.NewNotFound("campaign not found")
	}
	return nil
}

// Delete removes a campaign. FK CASCADE handles members, invitations, and
// owned entities.
func (r *campaignRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting campaign: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperror.NewNotFound("campaign not found")
	}
	return nil
}

// SlugExists returns true if a campaign with the given slug already exists.
func (r *campaignRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM campaigns WHERE slug = ?)`, slug,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking slug existence: %w", err)
	}
	return exists, nil
}

// --- Membership ---

// AddMember inserts a new campaign membership row.
func (r *campaignRepository) AddMember(ctx context.Context, member *Membership) error {
	query := `INSERT INTO campaign_members (campaign_id, user_id, role, joined_at)
	          VALUES (?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		member.CampaignID, member.UserID, member.Role.String(), member.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("adding campaign member: %w", err)
	}
	return nil
}

// RemoveMember deletes a campaign membership row.
func (r *campaignRepository) RemoveMember(ctx context.Context, campaignID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM campaign_members WHERE campaign_id = ? AND user_id = ?`,
		campaignID, userID,
	)
	if err != nil {
		return fmt.Errorf("removing campaign member: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperror.NewNotFound("member not found")
	}
	return nil
}

// FindMember retrieves a user's membership with their display info.
func (r *campaignRepository) FindMember(ctx context.Context, campaignID, userID string) (*Membership, error) {
	query := `SELECT cm.campaign_id, cm.user_id, cm.role, cm.joined_at,
	                 u.display_name, u.email, u.avatar_path
	          FROM campaign_members cm
	          INNER JOIN users u ON u.id = cm.user_id
	          WHERE cm.campaign_id = ? AND cm.user_id = ?`

	m := &Membership{}
	var roleStr string
	err := r.db.QueryRowContext(ctx, query, campaignID, userID).Scan(
		&m.CampaignID, &m.UserID, &roleStr, &m.JoinedAt,
		&m.DisplayName, &m.Email, &m.AvatarPath,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("member not found")
	}
	if err != nil {
		return nil, fmt.Errorf("finding campaign member: %w", err)
	}
	m.Role = RoleFromString(roleStr)
	return m, nil
}

// ListMembers returns all members of a campaign with their display info,
// highest role first.
func (r *campaignRepository) ListMembers(ctx context.Context, campaignID string) ([]Membership, error) {
	query := `SELECT cm.campaign_id, cm.user_id, cm.role, cm.joined_at,
	                 u.display_name, u.email, u.avatar_path
	          FROM campaign_members cm
	          INNER JOIN users u ON u.id = cm.user_id
	          WHERE cm.campaign_id = ?
	          ORDER BY FIELD(cm.role, 'gm', 'player', 'observer'), u.display_name`

	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("listing campaign members: %w", err)
	}
	defer rows.Close()

	var members []Membership
	for rows.Next() {
		var m Membership
		var roleStr string
		if err := rows.Scan(
			&m.CampaignID, &m.UserID, &roleStr, &m.JoinedAt,
			&m.DisplayName, &m.Email, &m.AvatarPath,
		); err != nil {
			return nil, fmt.Errorf("scanning member row: %w", err)
		}
		m.Role = RoleFromString(roleStr)
		members = append(members, m)
	}
	return members, rows.Err()
}

// UpdateMemberRole changes a member's role within a campaign.
func (r *campaignRepository) UpdateMemberRole(ctx context.Context, campaignID, userID string, role Role) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE campaign_members SET role = ? WHERE campaign_id = ? AND user_id = ?`,
		role.String(), campaignID, userID,
	)
	if err != nil {
		return fmt.Errorf("updating member role: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperror.NewNotFound("member not found")
	}
	return nil
}

// --- Invitations ---

// CreateInvitation inserts a new pending invitation.
func (r *campaignRepository) CreateInvitation(ctx context.Context, inv *Invitation) error {
	query := `INSERT INTO campaign_invitations
	          (id, campaign_id, token, role, email, invited_by, expires_at, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		inv.ID, inv.CampaignID, inv.Token, inv.Role.String(), inv.Email,
		inv.InvitedBy, inv.ExpiresAt, inv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating invitation: %w", err)
	}
	return nil
}

// FindInvitationByToken retrieves an invitation by its link token.
func (r *campaignRepository) FindInvitationByToken(ctx context.Context, token string) (*Invitation, error) {
	query := `SELECT id, campaign_id, token, role, email, invited_by, expires_at,
	                 accepted_at, accepted_by, created_at
	          FROM campaign_invitations WHERE token = ?`

	inv := &Invitation{}
	var roleStr string
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&inv.ID, &inv.CampaignID, &inv.Token, &roleStr, &inv.Email,
		&inv.InvitedBy, &inv.ExpiresAt, &inv.AcceptedAt, &inv.AcceptedBy, &inv.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("invitation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("finding invitation by token: %w", err)
	}
	inv.Role = RoleFromString(roleStr)
	return inv, nil
}

// ListInvitations returns all invitations for a campaign, newest first.
func (r *campaignRepository) ListInvitations(ctx context.Context, campaignID string) ([]Invitation, error) {
	query := `SELECT id, campaign_id, token, role, email, invited_by, expires_at,
	                 accepted_at, accepted_by, created_at
	          FROM campaign_invitations WHERE campaign_id = ?
	          ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("listing invitations: %w", err)
	}
	defer rows.Close()

	var invites []Invitation
	for rows.Next() {
		var inv Invitation
		var roleStr string
		if err := rows.Scan(
			&inv.ID, &inv.CampaignID, &inv.Token, &roleStr, &inv.Email,
			&inv.InvitedBy, &inv.ExpiresAt, &inv.AcceptedAt, &inv.AcceptedBy, &inv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning invitation row: %w", err)
		}
		inv.Role = RoleFromString(roleStr)
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

// DeleteInvitation removes an invitation. Scoped by campaign ID so a
// management route can never revoke another campaign's invite.
func (r *campaignRepository) DeleteInvitation(ctx context.Context, campaignID, invitationID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM campaign_invitations WHERE id = ? AND campaign_id = ?`,
		invitationID, campaignID,
	)
	if err != nil {
		return fmt.Errorf("deleting invitation: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperror.NewNotFound("invitation not found")
	}
	return nil
}

// AcceptInvitation marks the invitation accepted and inserts the membership
// row within a single transaction, so a crash can never leave a used token
// without its membership (or the reverse).
func (r *campaignRepository) AcceptInvitation(ctx context.Context, inv *Invitation, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning invitation tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	// Guard against double-accept: only flip the row if still unaccepted.
	result, err := tx.ExecContext(ctx,
		`UPDATE campaign_invitations SET accepted_at = ?, accepted_by = ?
		 WHERE id = ? AND accepted_at IS NULL`,
		now, userID, inv.ID,
	)
	if err != nil {
		return fmt.Errorf("marking invitation accepted: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return apperror.NewConflict("invitation has already been used")
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO campaign_members (campaign_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		inv.CampaignID, userID, inv.Role.String(), now,
	); err != nil {
		return fmt.Errorf("inserting invited member: %w", err)
	}

	return tx.Commit()
}
