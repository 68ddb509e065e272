// Package apikeys provides API-key access for external tools. Clients such
// as VTT integrations authenticate with a bearer key and read or write
// campaign data through the versioned /api/v1 endpoints, never with more
// authority than the key's owner holds in the campaign.
package apikeys

import "time"

// Permission represents an allowed operation class for an API key.
type Permission string

const (
	PermRead  Permission = "read"
	PermWrite Permission = "write"
)

// APIKey represents a registered API key.
type APIKey struct {
	ID          int64        `json:"id"`
	KeyHash     string       `json:"-"` // Never exposed in JSON.
	KeyPrefix   string       `json:"key_prefix"` // First 8 chars for display.
	Name        string       `json:"name"`
	UserID      string       `json:"user_id"`
	CampaignID  string       `json:"campaign_id"`
	Permissions []Permission `json:"permissions"`
	IsActive    bool         `json:"is_active"`
	LastUsedAt  *time.Time   `json:"last_used_at,omitempty"`
	LastUsedIP  *string      `json:"last_used_ip,omitempty"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// IsExpired returns true if the key has passed its expiry date.
func (k *APIKey) IsExpired() bool {
	if k.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*k.ExpiresAt)
}

// HasPermission checks if the key grants a specific permission.
func (k *APIKey) HasPermission(perm Permission) bool {
	for _, p := range k.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// CreateAPIKeyRequest holds the data for registering a new key.
type CreateAPIKeyRequest struct {
	Name          string   `json:"name" validate:"required,max=100"`
	Permissions   []string `json:"permissions" validate:"required,min=1,dive,oneof=read write"`
	ExpiresInDays int      `json:"expires_in_days" validate:"omitempty,min=1,max=365"`
}

// CreateAPIKeyInput is the validated input for creating a key.
type CreateAPIKeyInput struct {
	Name        string
	CampaignID  string
	Permissions []Permission
	ExpiresAt   *time.Time
}

// CreateAPIKeyResult is returned after key creation. RawKey is the
// plaintext key, shown exactly once and never stored.
type CreateAPIKeyResult struct {
	Key    *APIKey `json:"key"`
	RawKey string  `json:"raw_key"`
}
