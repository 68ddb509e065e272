package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/questlog-app/questlog/internal/apperror"
)

// perPage is the number of audit entries shown per page in the activity feed.
const perPage = 50

// maxRecordHistoryEntries caps the number of history entries returned for a
// single record to prevent unbounded result sets.
const maxRecordHistoryEntries = 100

// AuditService handles business logic for the audit log. It validates inputs,
// enforces limits, and delegates persistence to the repository.
type AuditService interface {
	// Log records an audit entry. Designed to be fire-and-forget friendly:
	// errors are logged but callers may choose to ignore them since audit
	// failures should not block the primary operation. Deletions do NOT go
	// through here -- they are written transactionally by the record
	// repositories via InsertTx.
	Log(ctx context.Context, entry *AuditEntry) error

	// GetCampaignActivity returns a paginated activity feed for a campaign.
	GetCampaignActivity(ctx context.Context, campaignID string, page int) ([]AuditEntry, int, error)

	// GetRecordHistory returns the recent change history for a single record.
	GetRecordHistory(ctx context.Context, recordID string) ([]AuditEntry, error)

	// GetCampaignStats returns aggregate activity statistics for a campaign.
	GetCampaignStats(ctx context.Context, campaignID string) (*CampaignStats, error)
}

// auditService implements AuditService.
type auditService struct {
	repo AuditRepository
}

// NewAuditService creates a new audit service with the given repository.
func NewAuditService(repo AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// Log validates and persists an audit entry. Logging failures are recorded
// via slog so the caller can treat this as fire-and-forget when appropriate.
func (s *auditService) Log(ctx context.Context, entry *AuditEntry) error {
	if entry.CampaignID == "" {
		return apperror.NewBadRequest("campaign ID is required for audit entry")
	}
	if entry.UserID == "" {
		return apperror.NewBadRequest("user ID is required for audit entry")
	}
	if entry.Action == "" {
		return apperror.NewBadRequest("action is required for audit entry")
	}

	if err := s.repo.Log(ctx, entry); err != nil {
		slog.Error("failed to write audit log entry",
			slog.String("campaign_id", entry.CampaignID),
			slog.String("action", entry.Action),
			slog.Any("error", err),
		)
		return apperror.NewInternal(fmt.Errorf("writing audit entry: %w", err))
	}
	return nil
}

// GetCampaignActivity returns the paginated activity feed for a campaign.
// Pages are 1-indexed. Invalid page numbers are clamped to 1.
func (s *auditService) GetCampaignActivity(ctx context.Context, campaignID string, page int) ([]AuditEntry, int, error) {
	if page < 1 {
		page = 1
	}

	offset := (page - 1) * perPage
	entries, total, err := s.repo.ListByCampaign(ctx, campaignID, perPage, offset)
	if err != nil {
		return nil, 0, apperror.NewInternal(fmt.Errorf("listing campaign activity: %w", err))
	}
	return entries, total, nil
}

// GetRecordHistory returns the recent change history for a single record.
func (s *auditService) GetRecordHistory(ctx context.Context, recordID string) ([]AuditEntry, error) {
	if recordID == "" {
		return nil, apperror.NewBadRequest("record ID is required")
	}

	entries, err := s.repo.ListByRecord(ctx, recordID, maxRecordHistoryEntries)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing record history: %w", err))
	}
	return entries, nil
}

// GetCampaignStats returns aggregate activity statistics for a campaign.
func (s *auditService) GetCampaignStats(ctx context.Context, campaignID string) (*CampaignStats, error) {
	if campaignID == "" {
		return nil, apperror.NewBadRequest("campaign ID is required")
	}

	stats, err := s.repo.GetCampaignStats(ctx, campaignID)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("getting campaign stats: %w", err))
	}
	return stats, nil
}
