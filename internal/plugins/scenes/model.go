// Package scenes manages the planned beats of a campaign: encounters,
// set pieces, session agendas. Scenes are unowned and ordered by the GM.
package scenes

import "time"

// Status tracks where a scene sits in the campaign's timeline.
type Status string

const (
	StatusPlanned   Status = "planned"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsValid returns true for a recognized scene status.
func (s Status) IsValid() bool {
	return s == StatusPlanned || s == StatusCompleted || s == StatusCancelled
}

// Scene represents a scene record in a campaign.
type Scene struct {
	ID          string  `json:"id"`
	CampaignID  string  `json:"campaign_id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Status      Status  `json:"status"`
	SortOrder   int     `json:"sort_order"`

	CreatedBy string `json:"created_by"`

	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *string    `json:"deleted_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityCampaignID implements access.Entity.
func (s *Scene) EntityCampaignID() string { return s.CampaignID }

// EntityPlayerOwner implements access.Entity. Scenes are unowned.
func (s *Scene) EntityPlayerOwner() string { return "" }

// EntityDeleted implements access.Entity.
func (s *Scene) EntityDeleted() bool { return s.IsDeleted }

// CreateSceneRequest holds the data for creating a scene. Omitted status
// defaults to planned; omitted sort order appends at the end.
type CreateSceneRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=5000"`
	Status      string `json:"status" validate:"omitempty,oneof=planned completed cancelled"`
	SortOrder   *int   `json:"sort_order" validate:"omitempty,min=0"`
}

// UpdateSceneRequest holds the editable scene fields.
type UpdateSceneRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=5000"`
	Status      string `json:"status" validate:"required,oneof=planned completed cancelled"`
	SortOrder   int    `json:"sort_order" validate:"min=0"`
}

// DeleteSceneRequest requires the exact scene name as confirmation.
type DeleteSceneRequest struct {
	ConfirmName string `json:"confirm_name"`
}

// ListOptions holds pagination parameters for scene lists.
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
