//go:build integration
// +build integration

package gormstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cppla/webdevhub/config"
	"github.com/cppla/webdevhub/models"
	"github.com/cppla/webdevhub/storage"
)

// setupTestStore starts a PostgreSQL container and returns a migrated store.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:alpine",
		postgres.WithDatabase("webdevhub"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := config.OpenDatabase(config.AppConfig{DBDriver: "postgres", DatabaseURI: connStr, LogLevel: "silent"})
	require.NoError(t, err)

	store := New(db)
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestStore_Integration(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	alice := &models.User{Username: "alice", Email: "alice@example.com", IsActive: true}
	require.NoError(t, store.CreateUser(ctx, alice))
	assert.NotEmpty(t, alice.ID)

	err := store.CreateUser(ctx, &models.User{Username: "alice", Email: "other@example.com", IsActive: true})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	found, err := store.FindUserByLogin(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, found.ID)

	// blog rows never touch LastActivity but must still insert a real datetime
	post := &models.ContentItem{
		Kind:        models.KindBlog,
		Title:       "Hello",
		Body:        "first post",
		AuthorID:    alice.ID,
		IsPublished: true,
	}
	require.NoError(t, store.CreateItem(ctx, post))
	storedPost, err := store.GetItem(ctx, models.KindBlog, post.ID)
	require.NoError(t, err)
	assert.False(t, storedPost.LastActivity.IsZero())
	assert.WithinDuration(t, storedPost.CreatedAt, storedPost.LastActivity, time.Second)
	require.NoError(t, store.DeleteItem(ctx, models.KindBlog, post.ID))

	thread := &models.ContentItem{
		Kind:         models.KindForum,
		Title:        "Gorm aggregates",
		Body:         "How do I save children atomically?",
		AuthorID:     alice.ID,
		Category:     models.DefaultCategory,
		LastActivity: time.Now(),
	}
	require.NoError(t, store.CreateItem(ctx, thread))

	got, err := store.GetItem(ctx, models.KindForum, thread.ID)
	require.NoError(t, err)
	got.Engagements = append(got.Engagements,
		models.Engagement{ID: "00000000-0000-0000-0000-000000000001", AuthorID: alice.ID, Text: "first", CreatedAt: time.Now()},
		models.Engagement{ID: "00000000-0000-0000-0000-000000000002", AuthorID: alice.ID, Text: "second", CreatedAt: time.Now()},
	)
	require.NoError(t, store.SaveItem(ctx, got))

	got.Engagements = got.Engagements[1:]
	require.NoError(t, store.SaveItem(ctx, got))

	reloaded, err := store.GetItem(ctx, models.KindForum, thread.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Engagements, 1)
	assert.Equal(t, "second", reloaded.Engagements[0].Text)

	require.NoError(t, store.SaveViews(ctx, thread.ID, 5))
	items, total, err := store.ListItems(ctx, storage.ContentQuery{Kind: models.KindForum, Category: models.DefaultCategory, Sort: storage.SortPinnedActivity, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.EqualValues(t, 5, items[0].Views)

	cats, err := store.Categories(ctx, models.KindForum)
	require.NoError(t, err)
	assert.Equal(t, []string{models.DefaultCategory}, cats)

	require.NoError(t, store.DeleteItem(ctx, models.KindForum, thread.ID))
	_, err = store.GetItem(ctx, models.KindForum, thread.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	n, err := store.CountEngagementsByAuthor(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
