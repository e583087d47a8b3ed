package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContentKind discriminates rows of the shared content table.
type ContentKind string

const (
	KindBlog  ContentKind = "blog"
	KindForum ContentKind = "forum"
)

// DefaultCategory is assigned to forum threads created without one.
const DefaultCategory = "General"

// ContentItem is a blog post or forum thread together with its ordered engagements.
// Kind-specific columns stay zero for the other kind.
type ContentItem struct {
	ID        string      `gorm:"primaryKey;size:36" json:"id"`
	Kind      ContentKind `gorm:"size:16;not null;index:idx_content_kind_created,priority:1" json:"kind"`
	Title     string      `gorm:"size:200;not null" json:"title"`
	Body      string      `gorm:"type:text;not null" json:"content"`
	AuthorID  string      `gorm:"size:36;not null;index" json:"authorId"`
	Views     int64       `gorm:"not null;default:0" json:"views"`
	CreatedAt time.Time   `gorm:"index:idx_content_kind_created,priority:2" json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`

	// Blog
	ImageURL    string   `gorm:"size:512" json:"image,omitempty"`
	Tags        []string `gorm:"serializer:json;type:text" json:"tags,omitempty"`
	IsPublished bool     `gorm:"not null;index" json:"isPublished"`

	// Forum
	Category     string    `gorm:"size:50;index" json:"category,omitempty"`
	IsPinned     bool      `gorm:"not null" json:"isPinned"`
	IsLocked     bool      `gorm:"not null" json:"isLocked"`
	LastActivity time.Time `gorm:"index" json:"lastActivity"`

	Engagements []Engagement `gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE" json:"engagements"`

	Author      *AuthorRef `gorm:"-" json:"author,omitempty"`
	ContentHTML string     `gorm:"-" json:"contentHtml,omitempty"`
}

// TableName pins the shared table name.
func (ContentItem) TableName() string {
	return "content_items"
}

// BeforeCreate assigns a UUID and timestamps when absent. LastActivity defaults to CreatedAt.
func (c *ContentItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	// MySQL strict mode rejects zero datetimes, so blog rows carry one too.
	if c.LastActivity.IsZero() {
		c.LastActivity = c.CreatedAt
	}
	return nil
}

// FindEngagement returns the index of the engagement with id, or -1.
func (c *ContentItem) FindEngagement(id string) int {
	for i := range c.Engagements {
		if c.Engagements[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers cannot alias stored slices.
func (c ContentItem) Clone() ContentItem {
	out := c
	if c.Tags != nil {
		out.Tags = append([]string(nil), c.Tags...)
	}
	if c.Engagements != nil {
		out.Engagements = append([]Engagement(nil), c.Engagements...)
	}
	if c.Author != nil {
		a := *c.Author
		out.Author = &a
	}
	return out
}
