// Package storage defines the persistence contracts for users, content items and contact messages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cppla/webdevhub/models"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique username or email is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

// SortOrder selects the listing order of content items.
type SortOrder int

const (
	// SortNewest orders by CreatedAt descending.
	SortNewest SortOrder = iota
	// SortPinnedActivity orders pinned items first, then by LastActivity descending.
	SortPinnedActivity
)

// ContentQuery filters and pages a content listing. Zero values mean "no filter".
type ContentQuery struct {
	Kind          models.ContentKind
	PublishedOnly bool
	Category      string
	AuthorID      string
	Sort          SortOrder
	Offset        int
	Limit         int
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	// FindUserByLogin matches a lowercased email or an exact username.
	FindUserByLogin(ctx context.Context, identifier string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByProvider(ctx context.Context, provider, providerID string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	SaveUser(ctx context.Context, user *models.User) error
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]models.User, error)
}

// ContentStore persists content items as aggregates with their engagements.
type ContentStore interface {
	ListItems(ctx context.Context, q ContentQuery) ([]models.ContentItem, int64, error)
	CountItems(ctx context.Context, q ContentQuery) (int64, error)
	GetItem(ctx context.Context, kind models.ContentKind, id string) (*models.ContentItem, error)
	CreateItem(ctx context.Context, item *models.ContentItem) error
	// SaveItem replaces the item and its full engagement sequence atomically.
	SaveItem(ctx context.Context, item *models.ContentItem) error
	// SaveViews writes the view counter without touching other columns.
	SaveViews(ctx context.Context, id string, views int64) error
	DeleteItem(ctx context.Context, kind models.ContentKind, id string) error
	Categories(ctx context.Context, kind models.ContentKind) ([]string, error)
	CountEngagementsByAuthor(ctx context.Context, authorID string) (int64, error)
}

// ContactStore persists contact messages.
type ContactStore interface {
	CreateContact(ctx context.Context, msg *models.ContactMessage) error
	GetContact(ctx context.Context, id string) (*models.ContactMessage, error)
	// ListContacts filters by status when non-empty, newest first.
	ListContacts(ctx context.Context, status models.ContactStatus, offset, limit int) ([]models.ContactMessage, int64, error)
	SaveContact(ctx context.Context, msg *models.ContactMessage) error
	DeleteContact(ctx context.Context, id string) error
	// CountContacts counts messages with status (any when empty) created at or after since (any when zero).
	CountContacts(ctx context.Context, status models.ContactStatus, since time.Time) (int64, error)
}

// Store aggregates every persistence contract.
type Store interface {
	UserStore
	ContentStore
	ContactStore
	Migrate(ctx context.Context) error
}
