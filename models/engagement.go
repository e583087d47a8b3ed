package models

import "time"

// Engagement is a comment on a blog post or a reply in a forum thread.
// It is owned by its parent item and persisted with it.
type Engagement struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	ItemID    string     `gorm:"size:36;not null;index:idx_engagement_item_seq,priority:1" json:"-"`
	Seq       int        `gorm:"not null;index:idx_engagement_item_seq,priority:2" json:"-"`
	AuthorID  string     `gorm:"size:36;not null;index" json:"authorId"`
	Text      string     `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time  `json:"createdAt"`
	Author    *AuthorRef `gorm:"-" json:"author,omitempty"`
}
