// Package mail provides outbound email for Questlog. SMTP settings live
// in the database and are managed by site admins; the encrypted password
// is never returned to clients, only a boolean indicating one is set.
// Campaigns use the Sender interface for invitation emails.
package mail

import "time"

// Settings holds the SMTP configuration as exposed to admins. The password
// is intentionally omitted; HasPassword shows whether one is stored.
type Settings struct {
	Host        string    `json:"host"`
	Port        int       `json:"port"`
	Username    string    `json:"username"`
	HasPassword bool      `json:"has_password"`
	FromAddress string    `json:"from_address"`
	FromName    string    `json:"from_name"`
	Encryption  string    `json:"encryption"` // "starttls", "ssl", or "none".
	Enabled     bool      `json:"enabled"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// settingsRow is the raw database row including encrypted password bytes.
// Internal only, never exposed outside the repository.
type settingsRow struct {
	Host              string
	Port              int
	Username          string
	PasswordEncrypted []byte // AES-256-GCM encrypted, nil if not set.
	FromAddress       string
	FromName          string
	Encryption        string
	Enabled           bool
	UpdatedAt         time.Time
}

func (r *settingsRow) toSettings() *Settings {
	return &Settings{
		Host:        r.Host,
		Port:        r.Port,
		Username:    r.Username,
		HasPassword: len(r.PasswordEncrypted) > 0,
		FromAddress: r.FromAddress,
		FromName:    r.FromName,
		Encryption:  r.Encryption,
		Enabled:     r.Enabled,
		UpdatedAt:   r.UpdatedAt,
	}
}

// UpdateSettingsRequest holds the data for updating SMTP settings.
// An empty password means "keep the existing one".
type UpdateSettingsRequest struct {
	Host        string `json:"host" validate:"required_if=Enabled true,max=255"`
	Port        int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Username    string `json:"username" validate:"max=255"`
	Password    string `json:"password" validate:"max=255"`
	FromAddress string `json:"from_address" validate:"required_if=Enabled true,omitempty,email"`
	FromName    string `json:"from_name" validate:"max=100"`
	Encryption  string `json:"encryption" validate:"omitempty,oneof=starttls ssl none"`
	Enabled     bool   `json:"enabled"`
}
