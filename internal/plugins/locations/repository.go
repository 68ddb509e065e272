package locations

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

// LocationRepository defines the data access contract for location
// operations.
type LocationRepository interface {
	Create(ctx context.Context, loc *Location) error
	FindByID(ctx context.Context, scope access.Scope, id string) (*Location, error)
	List(ctx context.Context, scope access.Scope, opts ListOptions) ([]Location, int, error)
	Update(ctx context.Context, loc *Location) error
	SoftDelete(ctx context.Context, id, deletedBy string, entry *audit.AuditEntry) error

	// HasActiveChildren reports whether any non-deleted location still
	// points at this one as its parent.
	HasActiveChildren(ctx context.Context, id string) (bool, error)
}

type locationRepository struct {
	db *sql.DB
}

// NewLocationRepository creates a new repository backed by the given DB pool.
func NewLocationRepository(db *sql.DB) LocationRepository {
	return &locationRepository{db: db}
}

const locationColumns = `id, campaign_id, name, description, parent_id, created_by,
	is_deleted, deleted_at, deleted_by, created_at, updated_at`

func scanLocation(row interface{ Scan(...any) error }) (*Location, error) {
	loc := &Location{}
	err := row.Scan(
		&loc.ID, &loc.CampaignID, &loc.Name, &loc.Description, &loc.ParentID,
		&loc.CreatedBy, &loc.IsDeleted, &loc.DeletedAt, &loc.DeletedBy,
		&loc.CreatedAt, &loc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return loc, nil
}

func scopeWhere(scope access.Scope) (string, []any) {
	where := "campaign_id = ?"
	args := []any{scope.CampaignID}
	if !scope.IncludeDeleted {
		where += " AND is_deleted = 0"
	}
	return where, args
}

func (r *locationRepository) Create(ctx context.Context, loc *Location) error {
	query := `INSERT INTO locations (id, campaign_id, name, description, parent_id, created_by, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		loc.ID, loc.CampaignID, loc.Name, loc.Description, loc.ParentID,
		loc.CreatedBy, loc.CreatedAt, loc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting location: %w", err)
	}
	return nil
}

func (r *locationRepository) FindByID(ctx context.Context, scope access.Scope, id string) (*Location, error) {
	where, args := scopeWhere(scope)
	query := fmt.Sprintf(`SELECT %s FROM locations WHERE id = ? AND %s`, locationColumns, where)

	loc, err := scanLocation(r.db.QueryRowContext(ctx, query, append([]any{id}, args...)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("location not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying location: %w", err)
	}
	return loc, nil
}

func (r *locationRepository) List(ctx context.Context, scope access.Scope, opts ListOptions) ([]Location, int, error) {
	where, args := scopeWhere(scope)

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM locations WHERE %s`, where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting locations: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM locations WHERE %s ORDER BY name LIMIT ? OFFSET ?`,
		locationColumns, where)
	rows, err := r.db.QueryContext(ctx, query, append(args, opts.PerPage, opts.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()

	var list []Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning location row: %w", err)
		}
		list = append(list, *loc)
	}
	return list, total, rows.Err()
}

func (r *locationRepository) Update(ctx context.Context, loc *Location) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE locations SET name = ?, description = ?, parent_id = ?, updated_at = NOW()
		 WHERE id = ? AND is_deleted = 0`,
		loc.Name, loc.Description, loc.ParentID, loc.ID,
	)
	if err != nil {
		return fmt.Errorf("updating location: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return apperror.NewNotFound("location not found")
	}
	return nil
}

// SoftDelete marks the location deleted, detaches its active children, and
// writes the audit entry, all in one transaction.
func (r *locationRepository) SoftDelete(ctx context.Context, id, deletedBy string, entry *audit.AuditEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE locations SET is_deleted = 1, deleted_at = ?, deleted_by = ? WHERE id = ? AND is_deleted = 0`,
		time.Now().UTC(), deletedBy, id,
	)
	if err != nil {
		return fmt.Errorf("soft-deleting location: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return apperror.NewNotFound("location not found")
	}

	// Children of a deleted location float to the top level rather than
	// dangling under an invisible parent.
	if _, err := tx.ExecContext(ctx,
		`UPDATE locations SET parent_id = NULL, updated_at = NOW() WHERE parent_id = ? AND is_deleted = 0`,
		id,
	); err != nil {
		return fmt.Errorf("detaching child locations: %w", err)
	}

	if err := audit.InsertTx(ctx, tx, entry); err != nil {
		return fmt.Errorf("recording location deletion: %w", err)
	}
	return tx.Commit()
}

func (r *locationRepository) HasActiveChildren(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM locations WHERE parent_id = ? AND is_deleted = 0)`,
		id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking child locations: %w", err)
	}
	return exists, nil
}
