package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContactStatus tracks a contact message through pending -> read -> replied.
type ContactStatus string

const (
	ContactPending ContactStatus = "pending"
	ContactRead    ContactStatus = "read"
	ContactReplied ContactStatus = "replied"
)

// Valid reports whether s is one of the known statuses.
func (s ContactStatus) Valid() bool {
	switch s {
	case ContactPending, ContactRead, ContactReplied:
		return true
	}
	return false
}

// ContactMessage is an inbound message from the public contact form.
type ContactMessage struct {
	ID           string        `gorm:"primaryKey;size:36" json:"id"`
	Name         string        `gorm:"size:100;not null" json:"name"`
	Email        string        `gorm:"size:255;not null" json:"email"`
	Subject      string        `gorm:"size:200;not null" json:"subject"`
	Message      string        `gorm:"type:text;not null" json:"message"`
	IPAddress    string        `gorm:"size:45" json:"ipAddress"`
	UserAgent    string        `gorm:"size:512" json:"userAgent"`
	Status       ContactStatus `gorm:"size:16;not null;index" json:"status"`
	ReplyMessage string        `gorm:"type:text" json:"replyMessage,omitempty"`
	RepliedAt    *time.Time    `json:"repliedAt,omitempty"`
	CreatedAt    time.Time     `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// BeforeCreate assigns a UUID and timestamps when absent.
func (m *ContactMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = ContactPending
	}
	return nil
}
