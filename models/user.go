package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a platform account. Passwords are stored as bcrypt hashes only.
// Accounts are deactivated rather than deleted so authored content keeps its author.
type User struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Username     string     `gorm:"size:30;not null;uniqueIndex" json:"username"`
	Email        string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string     `gorm:"size:255" json:"-"`
	Provider     string     `gorm:"size:32;index:idx_users_provider" json:"provider,omitempty"`
	ProviderID   string     `gorm:"size:255;index:idx_users_provider" json:"-"`
	AvatarURL    string     `gorm:"size:512" json:"avatar"`
	Bio          string     `gorm:"size:500" json:"bio"`
	IsActive     bool       `gorm:"not null;default:true" json:"isActive"`
	LastLogin    *time.Time `json:"lastLogin"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// BeforeCreate assigns a UUID and timestamps when absent.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}

// AuthorRef is the display view of a user embedded in content responses.
type AuthorRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Ref returns the display view of u.
func (u User) Ref() *AuthorRef {
	return &AuthorRef{ID: u.ID, Username: u.Username, Avatar: u.AvatarURL}
}
