package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// AuditRepository defines the data access contract for audit log operations.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type AuditRepository interface {
	// Log inserts a new audit entry into the database.
	Log(ctx context.Context, entry *AuditEntry) error

	// ListByCampaign returns paginated audit entries for a campaign, most
	// recent first. Joins the users table to include display_name. Returns
	// the entries, total count (for pagination), and any error.
	ListByCampaign(ctx context.Context, campaignID string, limit, offset int) ([]AuditEntry, int, error)

	// ListByRecord returns the most recent audit entries for a specific
	// record. Used for record-level change history.
	ListByRecord(ctx context.Context, recordID string, limit int) ([]AuditEntry, error)

	// GetCampaignStats returns aggregate activity statistics for a campaign.
	GetCampaignStats(ctx context.Context, campaignID string) (*CampaignStats, error)
}

// auditRepository implements AuditRepository with MariaDB queries.
type auditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new repository backed by the given DB pool.
func NewAuditRepository(db *sql.DB) AuditRepository {
	return &auditRepository{db: db}
}

// auditInsertQuery is shared by Log and InsertTx so the transactional path
// can never drift from the direct one.
const auditInsertQuery = `INSERT INTO audit_log
	(campaign_id, user_id, action, record_type, record_id, record_name, details, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// execer covers *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEntry(ctx context.Context, ex execer, entry *AuditEntry) error {
	var detailsJSON []byte
	if entry.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshaling audit details: %w", err)
		}
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	result, err := ex.ExecContext(ctx, auditInsertQuery,
		entry.CampaignID, entry.UserID, entry.Action,
		entry.RecordType, entry.RecordID, entry.RecordName,
		detailsJSON, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting audit entry id: %w", err)
	}
	entry.ID = id
	return nil
}

// Log inserts a new audit entry. The details map is serialized to JSON
// before storage. Nil details are stored as SQL NULL.
func (r *auditRepository) Log(ctx context.Context, entry *AuditEntry) error {
	return insertEntry(ctx, r.db, entry)
}

// InsertTx writes an audit entry within a caller-owned transaction.
// Record repositories use this so a soft delete and its audit entry
// commit or roll back together.
func InsertTx(ctx context.Context, tx *sql.Tx, entry *AuditEntry) error {
	return insertEntry(ctx, tx, entry)
}

// ListByCampaign returns audit entries for a campaign ordered by most recent
// first. Joins users table to include display_name for the activity feed.
func (r *auditRepository) ListByCampaign(ctx context.Context, campaignID string, limit, offset int) ([]AuditEntry, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE campaign_id = ?`, campaignID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting audit entries: %w", err)
	}

	query := `SELECT a.id, a.campaign_id, a.user_id, a.action,
	                 a.record_type, a.record_id, a.record_name,
	                 a.details, a.created_at,
	                 COALESCE(u.display_name, 'Unknown User') AS user_name
	          FROM audit_log a
	          LEFT JOIN users u ON u.id = a.user_id
	          WHERE a.campaign_id = ?
	          ORDER BY a.created_at DESC, a.id DESC
	          LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, campaignID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanAuditRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListByRecord returns the most recent audit entries for a specific record.
func (r *auditRepository) ListByRecord(ctx context.Context, recordID string, limit int) ([]AuditEntry, error) {
	query := `SELECT a.id, a.campaign_id, a.user_id, a.action,
	                 a.record_type, a.record_id, a.record_name,
	                 a.details, a.created_at,
	                 COALESCE(u.display_name, 'Unknown User') AS user_name
	          FROM audit_log a
	          LEFT JOIN users u ON u.id = a.user_id
	          WHERE a.record_id = ?
	          ORDER BY a.created_at DESC, a.id DESC
	          LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, recordID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing record audit entries: %w", err)
	}
	defer rows.Close()

	return scanAuditRows(rows)
}

// GetCampaignStats computes aggregate activity statistics from audit_log.
func (r *auditRepository) GetCampaignStats(ctx context.Context, campaignID string) (*CampaignStats, error) {
	stats := &CampaignStats{}

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE campaign_id = ?`, campaignID,
	).Scan(&stats.TotalActions); err != nil {
		return nil, fmt.Errorf("counting campaign actions: %w", err)
	}

	var last sql.NullTime
	if err := r.db.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM audit_log WHERE campaign_id = ?`, campaignID,
	).Scan(&last); err != nil {
		return nil, fmt.Errorf("querying last activity time: %w", err)
	}
	if last.Valid {
		stats.LastActivityAt = &last.Time
	}

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM audit_log
		 WHERE campaign_id = ? AND created_at >= DATE_SUB(NOW(), INTERVAL 30 DAY)`,
		campaignID,
	).Scan(&stats.ActiveUsers); err != nil {
		return nil, fmt.Errorf("querying active users: %w", err)
	}

	return stats, nil
}

// scanAuditRows scans rows from an audit_log query into AuditEntry slices.
// Expects columns: id, campaign_id, user_id, action, record_type, record_id,
// record_name, details, created_at, user_name.
func scanAuditRows(rows *sql.Rows) ([]AuditEntry, error) {
	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var detailsJSON sql.NullString
		if err := rows.Scan(
			&e.ID, &e.CampaignID, &e.UserID, &e.Action,
			&e.RecordType, &e.RecordID, &e.RecordName,
			&detailsJSON, &e.CreatedAt, &e.UserName,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		if detailsJSON.Valid && detailsJSON.String != "" {
			if err := json.Unmarshal([]byte(detailsJSON.String), &e.Details); err != nil {
				// Non-fatal: keep the feed working.
				e.Details = map[string]any{"_parse_error": "invalid JSON"}
			}
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}
	return entries, nil
}
