// Package locations manages a campaign's places. Locations nest through an
// optional parent, forming a tree: continent, region, town, tavern.
package locations

import "time"

// Location represents a location record in a campaign.
type Location struct {
	ID          string  `json:"id"`
	CampaignID  string  `json:"campaign_id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`

	// ParentID points at the containing location, if any.
	ParentID *string `json:"parent_id,omitempty"`

	CreatedBy string `json:"created_by"`

	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *string    `json:"deleted_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityCampaignID implements access.Entity.
func (l *Location) EntityCampaignID() string { return l.CampaignID }

// EntityPlayerOwner implements access.Entity. Locations are unowned.
func (l *Location) EntityPlayerOwner() string { return "" }

// EntityDeleted implements access.Entity.
func (l *Location) EntityDeleted() bool { return l.IsDeleted }

// CreateLocationRequest holds the data for creating a location.
type CreateLocationRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=5000"`
	ParentID    string `json:"parent_id" validate:"omitempty,uuid4"`
}

// UpdateLocationRequest holds the editable location fields. An empty
// ParentID detaches the location from its parent.
type UpdateLocationRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=5000"`
	ParentID    string `json:"parent_id" validate:"omitempty,uuid4"`
}

// DeleteLocationRequest requires the exact location name as confirmation.
type DeleteLocationRequest struct {
	ConfirmName string `json:"confirm_name"`
}

// ListOptions holds pagination parameters for location lists.
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
