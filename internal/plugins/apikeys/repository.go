package apikeys

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/questlog-app/questlog/internal/apperror"
)

// APIKeyRepository defines the data access contract for API keys.
type APIKeyRepository interface {
	Create(ctx context.Context, key *APIKey) error
	FindByPrefix(ctx context.Context, prefix string) (*APIKey, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]APIKey, error)

	// UpdateActive toggles a key, scoped to the campaign so one campaign's
	// managers cannot reach another's keys by ID.
	UpdateActive(ctx context.Context, campaignID string, id int64, active bool) error
	UpdateLastUsed(ctx context.Context, id int64, ip string) error
	Delete(ctx context.Context, campaignID string, id int64) error
}

type apiKeyRepository struct {
	db *sql.DB
}

// NewAPIKeyRepository creates a new repository backed by the given DB pool.
func NewAPIKeyRepository(db *sql.DB) APIKeyRepository {
	return &apiKeyRepository{db: db}
}

const apiKeyColumns = `id, key_hash, key_prefix, name, user_id, campaign_id, permissions,
	is_active, last_used_at, last_used_ip, expires_at, created_at, updated_at`

func scanAPIKey(row interface{ Scan(...any) error }) (*APIKey, error) {
	key := &APIKey{}
	var permsJSON []byte
	err := row.Scan(
		&key.ID, &key.KeyHash, &key.KeyPrefix, &key.Name, &key.UserID, &key.CampaignID,
		&permsJSON, &key.IsActive, &key.LastUsedAt, &key.LastUsedIP, &key.ExpiresAt,
		&key.CreatedAt, &key.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(permsJSON, &key.Permissions); err != nil {
		return nil, fmt.Errorf("parsing key permissions: %w", err)
	}
	return key, nil
}

func (r *apiKeyRepository) Create(ctx context.Context, key *APIKey) error {
	perms, err := json.Marshal(key.Permissions)
	if err != nil {
		return fmt.Errorf("encoding key permissions: %w", err)
	}

	query := `INSERT INTO api_keys (key_hash, key_prefix, name, user_id, campaign_id, permissions, is_active, expires_at, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`

	result, err := r.db.ExecContext(ctx, query,
		key.KeyHash, key.KeyPrefix, key.Name, key.UserID, key.CampaignID,
		perms, key.IsActive, key.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("inserting api key: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading api key id: %w", err)
	}
	key.ID = id
	return nil
}

func (r *apiKeyRepository) FindByPrefix(ctx context.Context, prefix string) (*APIKey, error) {
	query := fmt.Sprintf(`SELECT %s FROM api_keys WHERE key_prefix = ?`, apiKeyColumns)

	key, err := scanAPIKey(r.db.QueryRowContext(ctx, query, prefix))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("api key not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying api key: %w", err)
	}
	return key, nil
}

func (r *apiKeyRepository) ListByCampaign(ctx context.Context, campaignID string) ([]APIKey, error) {
	query := fmt.Sprintf(`SELECT %s FROM api_keys WHERE campaign_id = ? ORDER BY created_at DESC`, apiKeyColumns)

	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		keys = append(keys, *key)
	}
	return keys, rows.Err()
}

func (r *apiKeyRepository) UpdateActive(ctx context.Context, campaignID string, id int64, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET is_active = ?, updated_at = NOW() WHERE id = ? AND campaign_id = ?`,
		active, id, campaignID,
	)
	if err != nil {
		return fmt.Errorf("updating api key: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return apperror.NewNotFound("api key not found")
	}
	return nil
}

func (r *apiKeyRepository) UpdateLastUsed(ctx context.Context, id int64, ip string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), last_used_ip = ? WHERE id = ?`,
		ip, id,
	)
	if err != nil {
		return fmt.Errorf("touching api key: %w", err)
	}
	return nil
}

func (r *apiKeyRepository) Delete(ctx context.Context, campaignID string, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM api_keys WHERE id = ? AND campaign_id = ?`,
		id, campaignID,
	)
	if err != nil {
		return fmt.Errorf("deleting api key: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return apperror.NewNotFound("api key not found")
	}
	return nil
}
