// Package memory is a map-backed storage.Store used by tests and by --storage memory.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cppla/webdevhub/models"
	"github.com/cppla/webdevhub/storage"
)

type itemEntry struct {
	item models.ContentItem
	seq  int64
}

type contactEntry struct {
	msg models.ContactMessage
	seq int64
}

// Store keeps every record in process memory.
type Store struct {
	mu       sync.RWMutex
	seq      int64
	users    map[string]models.User
	items    map[string]*itemEntry
	contacts map[string]*contactEntry
}

var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:    make(map[string]models.User),
		items:    make(map[string]*itemEntry),
		contacts: make(map[string]*contactEntry),
	}
}

// Migrate is a no-op.
func (s *Store) Migrate(ctx context.Context) error { return nil }

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

// === Users ===

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username || strings.EqualFold(u.Email, user.Email) {
			return storage.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (s *Store) FindUserByLogin(ctx context.Context, identifier string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(identifier)
	for _, u := range s.users {
		if u.Email == lower || u.Username == identifier {
			out := u
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(email)
	for _, u := range s.users {
		if u.Email == lower {
			out := u
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) FindUserByProvider(ctx context.Context, provider, providerID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Provider == provider && u.ProviderID == providerID {
			out := u
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) SaveUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return storage.ErrNotFound
	}
	for id, u := range s.users {
		if id != user.ID && (u.Username == user.Username || strings.EqualFold(u.Email, user.Email)) {
			return storage.ErrDuplicate
		}
	}
	user.UpdatedAt = time.Now()
	s.users[user.ID] = *user
	return nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

// === Content ===

func (s *Store) filterItems(q storage.ContentQuery) []*itemEntry {
	matched := make([]*itemEntry, 0, len(s.items))
	for _, e := range s.items {
		if e.item.Kind != q.Kind {
			continue
		}
		if q.PublishedOnly && !e.item.IsPublished {
			continue
		}
		if q.Category != "" && e.item.Category != q.Category {
			continue
		}
		if q.AuthorID != "" && e.item.AuthorID != q.AuthorID {
			continue
		}
		matched = append(matched, e)
	}
	return matched
}

func (s *Store) ListItems(ctx context.Context, q storage.ContentQuery) ([]models.ContentItem, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.filterItems(q)
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if q.Sort == storage.SortPinnedActivity {
			if a.item.IsPinned != b.item.IsPinned {
				return a.item.IsPinned
			}
			if !a.item.LastActivity.Equal(b.item.LastActivity) {
				return a.item.LastActivity.After(b.item.LastActivity)
			}
			return a.seq > b.seq
		}
		if !a.item.CreatedAt.Equal(b.item.CreatedAt) {
			return a.item.CreatedAt.After(b.item.CreatedAt)
		}
		return a.seq > b.seq
	})

	total := int64(len(matched))
	start := q.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}

	out := make([]models.ContentItem, 0, end-start)
	for _, e := range matched[start:end] {
		out = append(out, e.item.Clone())
	}
	return out, total, nil
}

func (s *Store) CountItems(ctx context.Context, q storage.ContentQuery) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterItems(q))), nil
}

func (s *Store) GetItem(ctx context.Context, kind models.ContentKind, id string) (*models.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[id]
	if !ok || e.item.Kind != kind {
		return nil, storage.ErrNotFound
	}
	out := e.item.Clone()
	return &out, nil
}

func (s *Store) CreateItem(ctx context.Context, item *models.ContentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}
	stored := item.Clone()
	numberEngagements(&stored)
	s.items[item.ID] = &itemEntry{item: stored, seq: s.nextSeq()}
	return nil
}

func (s *Store) SaveItem(ctx context.Context, item *models.ContentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[item.ID]
	if !ok {
		return storage.ErrNotFound
	}
	stored := item.Clone()
	stored.Author = nil
	stored.ContentHTML = ""
	numberEngagements(&stored)
	e.item = stored
	return nil
}

func (s *Store) SaveViews(ctx context.Context, id string, views int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[id]
	if !ok {
		return storage.ErrNotFound
	}
	e.item.Views = views
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, kind models.ContentKind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[id]
	if !ok || e.item.Kind != kind {
		return storage.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *Store) Categories(ctx context.Context, kind models.ContentKind) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]struct{}{}
	for _, e := range s.items {
		if e.item.Kind == kind && e.item.Category != "" {
			seen[e.item.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) CountEngagementsByAuthor(ctx context.Context, authorID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.items {
		for _, en := range e.item.Engagements {
			if en.AuthorID == authorID {
				n++
			}
		}
	}
	return n, nil
}

func numberEngagements(item *models.ContentItem) {
	for i := range item.Engagements {
		item.Engagements[i].ItemID = item.ID
		item.Engagements[i].Seq = i
		item.Engagements[i].Author = nil
	}
}

// === Contacts ===

func (s *Store) CreateContact(ctx context.Context, msg *models.ContactMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now
	if msg.Status == "" {
		msg.Status = models.ContactPending
	}
	s.contacts[msg.ID] = &contactEntry{msg: *msg, seq: s.nextSeq()}
	return nil
}

func (s *Store) GetContact(ctx context.Context, id string) (*models.ContactMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.contacts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := e.msg
	return &out, nil
}

func (s *Store) ListContacts(ctx context.Context, status models.ContactStatus, offset, limit int) ([]models.ContactMessage, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*contactEntry, 0, len(s.contacts))
	for _, e := range s.contacts {
		if status == "" || e.msg.Status == status {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].msg.CreatedAt.Equal(matched[j].msg.CreatedAt) {
			return matched[i].msg.CreatedAt.After(matched[j].msg.CreatedAt)
		}
		return matched[i].seq > matched[j].seq
	})

	total := int64(len(matched))
	if offset > len(matched) {
		offset = len(matched)
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]models.ContactMessage, 0, end-offset)
	for _, e := range matched[offset:end] {
		out = append(out, e.msg)
	}
	return out, total, nil
}

func (s *Store) SaveContact(ctx context.Context, msg *models.ContactMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.contacts[msg.ID]
	if !ok {
		return storage.ErrNotFound
	}
	msg.UpdatedAt = time.Now()
	e.msg = *msg
	return nil
}

func (s *Store) DeleteContact(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contacts[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.contacts, id)
	return nil
}

func (s *Store) CountContacts(ctx context.Context, status models.ContactStatus, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.contacts {
		if status != "" && e.msg.Status != status {
			continue
		}
		if !since.IsZero() && e.msg.CreatedAt.Before(since) {
			continue
		}
		n++
	}
	return n, nil
}
