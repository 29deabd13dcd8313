package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CommentMaxLength bounds comment content, counted in runes.
const CommentMaxLength = 1000

// Comment represents a reply to a post.
type Comment struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	PostID    string    `gorm:"size:64;index;not null" json:"post_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	AuthorRef string    `gorm:"size:64;index" json:"author_ref,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns the id and creation time when the caller did not.
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	return nil
}
