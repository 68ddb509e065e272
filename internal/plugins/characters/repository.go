package characters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/questlog-app/questlog/internal/access"
	"github.com/questlog-app/questlog/internal/apperror"
	"github.com/questlog-app/questlog/internal/plugins/audit"
)

// CharacterRepository defines the data access contract for character
// operations. Visibility is enforced in SQL from the access scope, so a
// restricted caller's rows never leave the database.
type CharacterRepository interface {
	Create(ctx context.Context, ch *Character) error

	// FindByID retrieves a character visible under the scope. Records the
	// scope may not see are reported as not found.
	FindByID(ctx context.Context, scope access.Scope, id string) (*Character, error)

	// List returns characters visible under the scope, with total count.
	List(ctx context.Context, scope access.Scope, opts ListOptions) ([]Character, int, error)

	Update(ctx context.Context, ch *Character) error

	// SoftDelete marks the character deleted and writes the audit entry in
	// the same transaction. Already-deleted characters report not found.
	SoftDelete(ctx context.Context, id, deletedBy string, entry *audit.AuditEntry) error

	// NameExists checks active characters for an exact, case-sensitive
	// name match, optionally excluding one record (for renames).
	NameExists(ctx context.Context, campaignID, name, excludeID string) (bool, error)

	// CountActiveByPlayer counts non-deleted characters owned by a player.
	CountActiveByPlayer(ctx context.Context, campaignID, playerID string) (int, error)
}

// characterRepository implements CharacterRepository with MariaDB queries.
type characterRepository struct {
	db *sql.DB
}

// NewCharacterRepository creates a new repository backed by the given DB pool.
func NewCharacterRepository(db *sql.DB) CharacterRepository {
	return &characterRepository{db: db}
}

const characterColumns = `id, campaign_id, kind, name, description, sheet_data, player_id,
	created_by, is_deleted, deleted_at, deleted_by, created_at, updated_at`

func scanCharacter(row interface{ Scan(...any) error }) (*Character, error) {
	ch := &Character{}
	var sheet sql.NullString
	err := row.Scan(
		&ch.ID, &ch.CampaignID, &ch.Kind, &ch.Name, &ch.Description, &sheet,
		&ch.PlayerID, &ch.CreatedBy, &ch.IsDeleted, &ch.DeletedAt, &ch.DeletedBy,
		&ch.CreatedAt, &ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if sheet.Valid && sheet.String != "" {
		ch.SheetData = []byte(sheet.String)
	}
	return ch, nil
}

// scopeWhere translates an access scope into a WHERE fragment. This is the
// SQL form of access.Scope.CanSee -- keep the two in sync.
func scopeWhere(scope access.Scope) (string, []any) {
	where := "campaign_id = ?"
	args := []any{scope.CampaignID}

	if !scope.IncludeDeleted {
		where += " AND is_deleted = 0"
	}
	if scope.OwnerRestricted() {
		where += " AND (player_id IS NULL OR player_id = ?)"
		args = append(args, scope.UserID)
	}
	return where, args
}

// Create inserts a new character row.
func (r *characterRepository) Create(ctx context.Context, ch *Character) error {
	query := `INSERT INTO characters
	          (id, campaign_id, kind, name, description, sheet_data, player_id, created_by, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var sheet any
	if len(ch.SheetData) > 0 {
		sheet = string(ch.SheetData)
	}

	_, err := r.db.ExecContext(ctx, query,
		ch.ID, ch.CampaignID, ch.Kind, ch.Name, ch.Description, sheet,
		ch.PlayerID, ch.CreatedBy, ch.CreatedAt, ch.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting character: %w", err)
	}
	return nil
}

// FindByID retrieves a character visible under the scope.
func (r *characterRepository) FindByID(ctx context.Context, scope access.Scope, id string) (*Character, error) {
	where, args := scopeWhere(scope)
	query := fmt.Sprintf(`SELECT %s FROM characters WHERE id = ? AND %s`, characterColumns, where)

	ch, err := scanCharacter(r.db.QueryRowContext(ctx, query, append([]any{id}, args...)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("character not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying character: %w", err)
	}
	return ch, nil
}

// List returns characters visible under the scope, ordered by name.
func (r *characterRepository) List(ctx context.Context, scope access.Scope, opts ListOptions) ([]Character, int, error) {
	where, args := scopeWhere(scope)

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM characters WHERE %s`, where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting characters: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM characters WHERE %s ORDER BY name LIMIT ? OFFSET ?`,
		characterColumns, where)
	rows, err := r.db.QueryContext(ctx, query, append(args, opts.PerPage, opts.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing characters: %w", err)
	}
	defer rows.Close()

	var chars []Character
	for rows.Next() {
		ch, err := scanCharacter(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning character row: %w", err)
		}
		chars = append(chars, *ch)
	}
	return chars, total, rows.Err()
}

// Update modifies a character's editable fields. Kind, owner, and campaign
// are never written here.
func (r *characterRepository) Update(ctx context.Context, ch *Character) error {
	query := `UPDATE characters SET name = ?, description = ?, sheet_data = ?, updated_at = NOW()
	          WHERE id = ? AND is_deleted = 0`

	var sheet any
	if len(ch.SheetData) > 0 {
		sheet = string(ch.SheetData)
	}

	result, err := r.db.ExecContext(ctx, query, ch.Name, ch.Description, sheet, ch.ID)
	if err != nil {
		return fmt.Errorf("updating character: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return apperror.NewNotFound("character not found")
	}
	return nil
}

// SoftDelete marks the character deleted and writes the audit entry in one
// transaction. The is_deleted guard makes a repeat delete a no-op that
// reports not found, leaving the original deletion record untouched.
func (r *characterRepository) SoftDelete(ctx context.Context, id, deletedBy string, entry *audit.AuditEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE characters SET is_deleted = 1, deleted_at = ?, deleted_by = ? WHERE id = ? AND is_deleted = 0`,
		now, deletedBy, id,
	)
	if err != nil {
		return fmt.Errorf("soft-deleting character: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return apperror.NewNotFound("character not found")
	}

	if err := audit.InsertTx(ctx, tx, entry); err != nil {
		return fmt.Errorf("recording character deletion: %w", err)
	}

	return tx.Commit()
}

// NameExists checks active characters for an exact name match. BINARY
// forces a case-sensitive comparison regardless of column collation.
func (r *characterRepository) NameExists(ctx context.Context, campaignID, name, excludeID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM characters
	          WHERE campaign_id = ? AND BINARY name = ? AND is_deleted = 0 AND id != ?)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, campaignID, name, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking character name: %w", err)
	}
	return exists, nil
}

// CountActiveByPlayer counts non-deleted characters owned by a player.
func (r *characterRepository) CountActiveByPlayer(ctx context.Context, campaignID, playerID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM characters WHERE campaign_id = ? AND player_id = ? AND is_deleted = 0`,
		campaignID, playerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting player characters: %w", err)
	}
	return count, nil
}
