// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User represents a registered account.
type User struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Email     string `gorm:"uniqueIndex;not null" json:"email"`
	Password  string `gorm:"not null" json:"-"`
	FirstName string `gorm:"not null" json:"first_name"`
	LastName  string `gorm:"not null;index" json:"last_name"`
	// FacebookID is set for externally authenticated accounts, which carry no
	// local password.
	FacebookID string `json:"facebook_id,omitempty"`
	// ProfileImage and BackgroundImage are opaque asset-store handles.
	ProfileImage    string    `json:"profile_image"`
	BackgroundImage string    `json:"background_image"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
