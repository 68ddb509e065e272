// Package items manages campaign items: loot, artifacts, quest objects.
// Items have no per-user owner; every member sees the full list.
package items

import "time"

// Item represents an item record in a campaign.
type Item struct {
	ID          string  `json:"id"`
	CampaignID  string  `json:"campaign_id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`

	CreatedBy string `json:"created_by"`

	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *string    `json:"deleted_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityCampaignID implements access.Entity.
func (i *Item) EntityCampaignID() string { return i.CampaignID }

// EntityPlayerOwner implements access.Entity. Items are unowned.
func (i *Item) EntityPlayerOwner() string { return "" }

// EntityDeleted implements access.Entity.
func (i *Item) EntityDeleted() bool { return i.IsDeleted }

// CreateItemRequest holds the data for creating an item.
type CreateItemRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=5000"`
}

// UpdateItemRequest holds the editable item fields.
type UpdateItemRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=5000"`
}

// DeleteItemRequest requires the exact item name as confirmation.
type DeleteItemRequest struct {
	ConfirmName string `json:"confirm_name"`
}

// ListOptions holds pagination parameters for item lists.
type ListOptions struct {
	Page    int
	PerPage int
}

// DefaultListOptions returns sensible defaults for pagination.
func DefaultListOptions() ListOptions {
	return ListOptions{Page: 1, PerPage: 50}
}

// Offset returns the SQL OFFSET value for the current page.
func (o ListOptions) Offset() int {
	if o.Page < 1 {
		o.Page = 1
	}
	return (o.Page - 1) * o.PerPage
}
