// Package gormstore implements storage.Store on MySQL or PostgreSQL through gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/webdevhub/models"
	"github.com/cppla/webdevhub/storage"
)

// Store implements storage.Store backed by a gorm connection.
type Store struct {
	db *gorm.DB
}

var _ storage.Store = (*Store)(nil)

// New wraps an opened gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates every table the platform needs.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.ContentItem{},
		&models.Engagement{},
		&models.ContactMessage{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return storage.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return storage.ErrDuplicate
	default:
		return err
	}
}

// === Users ===

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", translate(err))
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) FindUserByLogin(ctx context.Context, identifier string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ? OR username = ?", strings.ToLower(identifier), identifier).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", strings.ToLower(email)).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) FindUserByProvider(ctx context.Context, provider, providerID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("provider = ? AND provider_id = ?", provider, providerID).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) SaveUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("save user: %w", translate(err))
	}
	return nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]models.User, error) {
	out := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// === Content ===

func (s *Store) itemQuery(ctx context.Context, q storage.ContentQuery) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&models.ContentItem{}).Where("kind = ?", q.Kind)
	if q.PublishedOnly {
		tx = tx.Where("is_published = ?", true)
	}
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}
	if q.AuthorID != "" {
		tx = tx.Where("author_id = ?", q.AuthorID)
	}
	return tx
}

func orderedEngagements(db *gorm.DB) *gorm.DB {
	return db.Order("seq ASC")
}

func (s *Store) ListItems(ctx context.Context, q storage.ContentQuery) ([]models.ContentItem, int64, error) {
	var total int64
	if err := s.itemQuery(ctx, q).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	tx := s.itemQuery(ctx, q).Preload("Engagements", orderedEngagements)
	if q.Sort == storage.SortPinnedActivity {
		tx = tx.Order("is_pinned DESC").Order("last_activity DESC")
	} else {
		tx = tx.Order("created_at DESC")
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var items []models.ContentItem
	if err := tx.Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Store) CountItems(ctx context.Context, q storage.ContentQuery) (int64, error) {
	var total int64
	if err := s.itemQuery(ctx, q).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) GetItem(ctx context.Context, kind models.ContentKind, id string) (*models.ContentItem, error) {
	var item models.ContentItem
	err := s.db.WithContext(ctx).
		Preload("Engagements", orderedEngagements).
		Where("kind = ?", kind).
		First(&item, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (s *Store) CreateItem(ctx context.Context, item *models.ContentItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(item).Error; err != nil {
			return fmt.Errorf("create item: %w", translate(err))
		}
		return replaceEngagements(tx, item)
	})
}

// SaveItem writes the aggregate in one transaction: the item row, then the whole engagement sequence.
func (s *Store) SaveItem(ctx context.Context, item *models.ContentItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ContentItem{}).Where("id = ?", item.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return storage.ErrNotFound
		}
		if err := tx.Omit(clause.Associations).Save(item).Error; err != nil {
			return fmt.Errorf("save item: %w", translate(err))
		}
		if err := tx.Where("item_id = ?", item.ID).Delete(&models.Engagement{}).Error; err != nil {
			return fmt.Errorf("clear engagements: %w", err)
		}
		return replaceEngagements(tx, item)
	})
}

func replaceEngagements(tx *gorm.DB, item *models.ContentItem) error {
	if len(item.Engagements) == 0 {
		return nil
	}
	rows := make([]models.Engagement, len(item.Engagements))
	for i, e := range item.Engagements {
		e.ItemID = item.ID
		e.Seq = i
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now()
		}
		rows[i] = e
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("insert engagements: %w", err)
	}
	return nil
}

func (s *Store) SaveViews(ctx context.Context, id string, views int64) error {
	res := s.db.WithContext(ctx).Model(&models.ContentItem{}).Where("id = ?", id).UpdateColumn("views", views)
	if res.Error != nil {
		return res.Error
	}
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, kind models.ContentKind, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("kind = ?", kind).Delete(&models.ContentItem{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrNotFound
		}
		return tx.Where("item_id = ?", id).Delete(&models.Engagement{}).Error
	})
}

func (s *Store) Categories(ctx context.Context, kind models.ContentKind) ([]string, error) {
	var cats []string
	err := s.db.WithContext(ctx).Model(&models.ContentItem{}).
		Where("kind = ? AND category <> ''", kind).
		Distinct("category").
		Order("category").
		Pluck("category", &cats).Error
	if err != nil {
		return nil, err
	}
	return cats, nil
}

func (s *Store) CountEngagementsByAuthor(ctx context.Context, authorID string) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Engagement{}).Where("author_id = ?", authorID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// === Contacts ===

func (s *Store) CreateContact(ctx context.Context, msg *models.ContactMessage) error {
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("create contact: %w", err)
	}
	return nil
}

func (s *Store) GetContact(ctx context.Context, id string) (*models.ContactMessage, error) {
	var msg models.ContactMessage
	if err := s.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

func (s *Store) ListContacts(ctx context.Context, status models.ContactStatus, offset, limit int) ([]models.ContactMessage, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ContactMessage{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var msgs []models.ContactMessage
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&msgs).Error
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

func (s *Store) SaveContact(ctx context.Context, msg *models.ContactMessage) error {
	msg.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(msg).Error; err != nil {
		return fmt.Errorf("save contact: %w", err)
	}
	return nil
}

func (s *Store) DeleteContact(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.ContactMessage{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CountContacts(ctx context.Context, status models.ContactStatus, since time.Time) (int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ContactMessage{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
