package models

import "time"

// Post is one shared link to a generated image or video.
// ID equals the identifier embedded in URL once the re-keying migration has run;
// legacy rows may still carry a surrogate value.
type Post struct {
	ID            string     `gorm:"primaryKey;size:64" json:"id"`
	URL           string     `gorm:"size:768;uniqueIndex;not null" json:"url"`
	Prompt        string     `gorm:"type:text" json:"prompt"`
	AuthorRef     string     `gorm:"size:64;index" json:"author_ref"`
	VideoURL      string     `gorm:"size:1024" json:"video_url"`
	ImageURL      string     `gorm:"size:1024" json:"image_url"`
	Width         int        `gorm:"not null;default:0" json:"width"`
	Height        int        `gorm:"not null;default:0" json:"height"`
	SiteName      string     `gorm:"size:64" json:"site_name"`
	Title         string     `gorm:"size:255" json:"title"`
	NSFW          bool       `gorm:"column:nsfw;not null;default:false;index" json:"nsfw"`
	Clicks        int64      `gorm:"not null;default:0" json:"clicks"`
	Views         int64      `gorm:"not null;default:0" json:"views"`
	CommentCount  int64      `gorm:"not null;default:0" json:"comment_count"`
	LastCommentAt *time.Time `gorm:"index" json:"last_comment_at"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
