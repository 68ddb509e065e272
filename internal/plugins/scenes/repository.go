package scenes

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

// SceneRepository defines the data access contract for scene operations.
type SceneRepository interface {
	Create(ctx context.Context, scene *Scene) error
	FindByID(ctx context.Context, scope access.Scope, id string) (*Scene, error)
	List(ctx context.Context, scope access.Scope, opts ListOptions) ([]Scene, int, error)
	Update(ctx context.Context, scene *Scene) error
	SoftDelete(ctx context.Context, id, deletedBy string, entry *audit.AuditEntry) error

	// NextSortOrder returns one past the highest active sort order, so new
	// scenes append to the end of the campaign's running order.
	NextSortOrder(ctx context.Context, campaignID string) (int, error)
}

type sceneRepository struct {
	db *sql.DB
}

// NewSceneRepository creates a new repository backed by the given DB pool.
func NewSceneRepository(db *sql.DB) SceneRepository {
	return &sceneRepository{db: db}
}

const sceneColumns = `id, campaign_id, name, description, status, sort_order, created_by,
	is_deleted, deleted_at, deleted_by, created_at, updated_at`

func scanScene(row interface{ Scan(...any) error }) (*Scene, error) {
	scene := &Scene{}
	err := row.Scan(
		&scene.ID, &scene.CampaignID, &scene.Name, &scene.Description, &scene.Status,
		&scene.SortOrder, &scene.CreatedBy, &scene.IsDeleted, &scene.DeletedAt,
		&scene.DeletedBy, &scene.CreatedAt, &scene.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return scene, nil
}

func scopeWhere(scope access.Scope) (string, []any) {
	where := "campaign_id = ?"
	args := []any{scope.CampaignID}
	if !scope.IncludeDeleted {
		where += " AND is_deleted = 0"
	}
	return where, args
}

func (r *sceneRepository) Create(ctx context.Context, scene *Scene) error {
	query := `INSERT INTO scenes (id, campaign_id, name, description, status, sort_order, created_by, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		scene.ID, scene.CampaignID, scene.Name, scene.Description, scene.Status,
		scene.SortOrder, scene.CreatedBy, scene.CreatedAt, scene.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting scene: %w", err)
	}
	return nil
}

func (r *sceneRepository) FindByID(ctx context.Context, scope access.Scope, id string) (*Scene, error) {
	where, args := scopeWhere(scope)
	query := fmt.Sprintf(`SELECT %s FROM scenes WHERE id = ? AND %s`, sceneColumns, where)

	scene, err := scanScene(r.db.QueryRowContext(ctx, query, append([]any{id}, args...)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("scene not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying scene: %w", err)
	}
	return scene, nil
}

// List returns scenes in running order.
func (r *sceneRepository) List(ctx context.Context, scope access.Scope, opts ListOptions) ([]Scene, int, error) {
	where, args := scopeWhere(scope)

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM scenes WHERE %s`, where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting scenes: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM scenes WHERE %s ORDER BY sort_order, created_at LIMIT ? OFFSET ?`,
		sceneColumns, where)
	rows, err := r.db.QueryContext(ctx, query, append(args, opts.PerPage, opts.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing scenes: %w", err)
	}
	defer rows.Close()

	var list []Scene
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning scene row: %w", err)
		}
		list = append(list, *scene)
	}
	return list, total, rows.Err()
}

func (r *sceneRepository) Update(ctx context.Context, scene *Scene) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE scenes SET name = ?, description = ?, status = ?, sort_order = ?, updated_at = NOW()
		 WHERE id = ? AND is_deleted = 0`,
		scene.Name, scene.Description, scene.Status, scene.SortOrder, scene.ID,
	)
	if err != nil {
		return fmt.Errorf("updating scene: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return apperror.NewNotFound("scene not found")
	}
	return nil
}

func (r *sceneRepository) SoftDelete(ctx context.Context, id, deletedBy string, entry *audit.AuditEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE scenes SET is_deleted = 1, deleted_at = ?, deleted_by = ? WHERE id = ? AND is_deleted = 0`,
		time.Now().UTC(), deletedBy, id,
	)
	if err != nil {
		return fmt.Errorf("soft-deleting scene: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return apperror.NewNotFound("scene not found")
	}

	if err := audit.InsertTx(ctx, tx, entry); err != nil {
		return fmt.Errorf("recording scene deletion: %w", err)
	}
	return tx.Commit()
}

func (r *sceneRepository) NextSortOrder(ctx context.Context, campaignID string) (int, error) {
	var next int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sort_order), -1) + 1 FROM scenes WHERE campaign_id = ? AND is_deleted = 0`,
		campaignID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("computing next sort order: %w", err)
	}
	return next, nil
}
