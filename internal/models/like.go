package models

import (
	"time"
)

// Like records that a user likes a post, or a comment on a post when
// CommentID is set. At most one row exists per (user, target) pair; the
// toggle in the service layer enforces this rather than the database.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	CommentID *uint     `gorm:"index" json:"comment_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
