package models

import (
	"time"

	"github.com/google/uuid"
)

// Service identifies an external OAuth integration.
type Service string

const (
	ServiceGoogleDrive Service = "google_drive"
	ServiceYouTube     Service = "youtube"
)

// Valid reports whether the service is supported.
func (s Service) Valid() bool {
	return s == ServiceGoogleDrive || s == ServiceYouTube
}

// Integration stores a user's OAuth credentials for one service.
// Tokens are encrypted at rest; see pkg/crypto.
type Integration struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Service      Service   `json:"service"`
	AccessToken  string    `json:"-"` // encrypted
	RefreshToken string    `json:"-"` // encrypted
	ExpiresAt    time.Time `json:"expires_at"`
	Scopes       string    `json:"scopes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the access token has passed its expiry.
func (i *Integration) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// IntegrationStatus is the connection state exposed to the dashboard.
type IntegrationStatus struct {
	Service   Service    `json:"service"`
	Connected bool       `json:"connected"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Scopes    string     `json:"scopes,omitempty"`
}
