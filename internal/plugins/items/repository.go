package items

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

// ItemRepository defines the data access contract for item operations.
type ItemRepository interface {
	Create(ctx context.Context, item *Item) error
	FindByID(ctx context.Context, scope access.Scope, id string) (*Item, error)
	List(ctx context.Context, scope access.Scope, opts ListOptions) ([]Item, int, error)
	Update(ctx context.Context, item *Item) error
	SoftDelete(ctx context.Context, id, deletedBy string, entry *audit.AuditEntry) error
}

type itemRepository struct {
	db *sql.DB
}

// NewItemRepository creates a new repository backed by the given DB pool.
func NewItemRepository(db *sql.DB) ItemRepository {
	return &itemRepository{db: db}
}

const itemColumns = `id, campaign_id, name, description, created_by,
	is_deleted, deleted_at, deleted_by, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (*Item, error) {
	item := &Item{}
	err := row.Scan(
		&item.ID, &item.CampaignID, &item.Name, &item.Description, &item.CreatedBy,
		&item.IsDeleted, &item.DeletedAt, &item.DeletedBy, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Items have no owning user, so the scope only contributes the campaign
// match and the soft-delete filter.
func scopeWhere(scope access.Scope) (string, []any) {
	where := "campaign_id = ?"
	args := []any{scope.CampaignID}
	if !scope.IncludeDeleted {
		where += " AND is_deleted = 0"
	}
	return where, args
}

func (r *itemRepository) Create(ctx context.Context, item *Item) error {
	query := `INSERT INTO items (id, campaign_id, name, description, created_by, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.CampaignID, item.Name, item.Description, item.CreatedBy,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting item: %w", err)
	}
	return nil
}

func (r *itemRepository) FindByID(ctx context.Context, scope access.Scope, id string) (*Item, error) {
	where, args := scopeWhere(scope)
	query := fmt.Sprintf(`SELECT %s FROM items WHERE id = ? AND %s`, itemColumns, where)

	item, err := scanItem(r.db.QueryRowContext(ctx, query, append([]any{id}, args...)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("item not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying item: %w", err)
	}
	return item, nil
}

func (r *itemRepository) List(ctx context.Context, scope access.Scope, opts ListOptions) ([]Item, int, error) {
	where, args := scopeWhere(scope)

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM items WHERE %s`, where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting items: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM items WHERE %s ORDER BY name LIMIT ? OFFSET ?`,
		itemColumns, where)
	rows, err := r.db.QueryContext(ctx, query, append(args, opts.PerPage, opts.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var list []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning item row: %w", err)
		}
		list = append(list, *item)
	}
	return list, total, rows.Err()
}

func (r *itemRepository) Update(ctx context.Context, item *Item) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, updated_at = NOW() WHERE id = ? AND is_deleted = 0`,
		item.Name, item.Description, item.ID,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return apperror.NewNotFound("item not found")
	}
	return nil
}

// SoftDelete marks the item deleted and writes the audit entry in the same
// transaction.
func (r *itemRepository) SoftDelete(ctx context.Context, id, deletedBy string, entry *audit.AuditEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE items SET is_deleted = 1, deleted_at = ?, deleted_by = ? WHERE id = ? AND is_deleted = 0`,
		time.Now().UTC(), deletedBy, id,
	)
	if err != nil {
		return fmt.Errorf("soft-deleting item: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return apperror.NewNotFound("item not found")
	}

	if err := audit.InsertTx(ctx, tx, entry); err != nil {
		return fmt.Errorf("recording item deletion: %w", err)
	}
	return tx.Commit()
}
