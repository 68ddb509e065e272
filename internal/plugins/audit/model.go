// Package audit records user actions within campaigns. Every significant
// mutation (record CRUD, membership changes, campaign updates) is captured
// as an AuditEntry and persisted to the audit_log table. The activity feed
// gives owners and GMs visibility into who changed what and when.
//
// Soft deletes write their audit entry inside the same transaction as the
// delete itself, so a deletion can never happen unrecorded.
package audit

import "time"

// --- Action Constants ---
// Each action string follows the pattern "resource.verb" for consistent
// filtering and display grouping.

const (
	ActionCharacterCreated = "character.created"
	ActionCharacterUpdated = "character.updated"
	ActionCharacterDeleted = "character.deleted"

	ActionItemCreated = "item.created"
	ActionItemUpdated = "item.updated"
	ActionItemDeleted = "item.deleted"

	ActionSceneCreated = "scene.created"
	ActionSceneUpdated = "scene.updated"
	ActionSceneDeleted = "scene.deleted"

	ActionLocationCreated = "location.created"
	ActionLocationUpdated = "location.updated"
	ActionLocationDeleted = "location.deleted"

	ActionMemberJoined      = "member.joined"
	ActionMemberLeft        = "member.left"
	ActionMemberRoleChanged = "member.role_changed"

	ActionInvitationCreated  = "invitation.created"
	ActionInvitationAccepted = "invitation.accepted"
	ActionInvitationRevoked  = "invitation.revoked"

	ActionCampaignUpdated = "campaign.updated"
)

// AuditEntry represents a single recorded action in the audit log.
// Each entry ties a user action to a campaign and optionally to a specific
// record. The Details map holds action-specific metadata (e.g., old/new
// values for role changes).
type AuditEntry struct {
	ID         int64          `json:"id"`
	CampaignID string         `json:"campaign_id"`
	UserID     string         `json:"user_id"`
	Action     string         `json:"action"`
	RecordType string         `json:"record_type,omitempty"`
	RecordID   string         `json:"record_id,omitempty"`
	RecordName string         `json:"record_name,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`

	// UserName is joined from the users table for display in the activity
	// feed. Not stored in audit_log -- populated at query time.
	UserName string `json:"user_name,omitempty"`
}

// CampaignStats holds aggregate activity statistics for a campaign. Used
// on the activity feed header to give owners a quick overview.
type CampaignStats struct {
	// TotalActions is the number of audit entries for the campaign.
	TotalActions int `json:"total_actions"`

	// LastActivityAt is the timestamp of the most recent audit entry.
	// Nil if the campaign has no recorded activity yet.
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`

	// ActiveUsers is the count of distinct users who performed actions
	// in the campaign within the last 30 days.
	ActiveUsers int `json:"active_users"`
}
