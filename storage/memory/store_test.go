package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/webdevhub/models"
	"github.com/cppla/webdevhub/storage"
)

// newTestStore creates a store holding one user and one published blog post.
func newTestStore(t *testing.T) (*Store, *models.User, *models.ContentItem) {
	t.Helper()
	store := New()
	ctx := context.Background()

	user := &models.User{Username: "alice", Email: "alice@example.com", IsActive: true}
	require.NoError(t, store.CreateUser(ctx, user))

	post := &models.ContentItem{Kind: models.KindBlog, Title: "Hello", Body: "World", AuthorID: user.ID, IsPublished: true}
	require.NoError(t, store.CreateItem(ctx, post))
	return store, user, post
}

func TestStore_CreateUser_Duplicate(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	err := store.CreateUser(ctx, &models.User{Username: "alice", Email: "other@example.com"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	err = store.CreateUser(ctx, &models.User{Username: "bob", Email: "ALICE@example.com"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestStore_FindUserByLogin(t *testing.T) {
	store, user, _ := newTestStore(t)
	ctx := context.Background()

	byEmail, err := store.FindUserByLogin(ctx, "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byName, err := store.FindUserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	_, err = store.FindUserByLogin(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_GetItem_KindMismatch(t *testing.T) {
	store, _, post := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetItem(ctx, models.KindBlog, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Title)

	_, err = store.GetItem(ctx, models.KindForum, post.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_SaveItem_ReplacesEngagements(t *testing.T) {
	store, user, post := newTestStore(t)
	ctx := context.Background()

	item, err := store.GetItem(ctx, models.KindBlog, post.ID)
	require.NoError(t, err)
	item.Engagements = append(item.Engagements,
		models.Engagement{ID: "e1", AuthorID: user.ID, Text: "first"},
		models.Engagement{ID: "e2", AuthorID: user.ID, Text: "second"},
	)
	require.NoError(t, store.SaveItem(ctx, item))

	// caller mutations after save must not leak into the store
	item.Engagements[0].Text = "mutated"

	got, err := store.GetItem(ctx, models.KindBlog, post.ID)
	require.NoError(t, err)
	require.Len(t, got.Engagements, 2)
	assert.Equal(t, "first", got.Engagements[0].Text)
	assert.Equal(t, 1, got.Engagements[1].Seq)
	assert.Equal(t, post.ID, got.Engagements[1].ItemID)

	n, err := store.CountEngagementsByAuthor(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestStore_ListItems_ForumOrdering(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	old := &models.ContentItem{Kind: models.KindForum, Title: "old", Body: "b", Category: "General", LastActivity: now.Add(-time.Hour)}
	fresh := &models.ContentItem{Kind: models.KindForum, Title: "fresh", Body: "b", Category: "Help", LastActivity: now}
	pinned := &models.ContentItem{Kind: models.KindForum, Title: "pinned", Body: "b", Category: "General", IsPinned: true, LastActivity: now.Add(-2 * time.Hour)}
	for _, it := range []*models.ContentItem{old, fresh, pinned} {
		require.NoError(t, store.CreateItem(ctx, it))
	}

	items, total, err := store.ListItems(ctx, storage.ContentQuery{Kind: models.KindForum, Sort: storage.SortPinnedActivity, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"pinned", "fresh", "old"}, []string{items[0].Title, items[1].Title, items[2].Title})

	items, total, err = store.ListItems(ctx, storage.ContentQuery{Kind: models.KindForum, Category: "General", Sort: storage.SortPinnedActivity, Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 1)
	assert.Equal(t, "old", items[0].Title)

	cats, err := store.Categories(ctx, models.KindForum)
	require.NoError(t, err)
	assert.Equal(t, []string{"General", "Help"}, cats)
}

func TestStore_Contacts(t *testing.T) {
	store := New()
	ctx := context.Background()

	a := &models.ContactMessage{Name: "A", Email: "a@example.com", Subject: "Hello there", Message: "a long enough message"}
	b := &models.ContactMessage{Name: "B", Email: "b@example.com", Subject: "Hello again", Message: "another long message", CreatedAt: time.Now().Add(-10 * 24 * time.Hour)}
	require.NoError(t, store.CreateContact(ctx, a))
	require.NoError(t, store.CreateContact(ctx, b))
	assert.Equal(t, models.ContactPending, a.Status)

	a.Status = models.ContactRead
	require.NoError(t, store.SaveContact(ctx, a))

	list, total, err := store.ListContacts(ctx, models.ContactPending, 0, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, b.ID, list[0].ID)

	recent, err := store.CountContacts(ctx, "", time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, recent)

	require.NoError(t, store.DeleteContact(ctx, a.ID))
	assert.ErrorIs(t, store.DeleteContact(ctx, a.ID), storage.ErrNotFound)
}
