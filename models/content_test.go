package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentItem_BeforeCreateFillsTimestamps(t *testing.T) {
	post := &ContentItem{Kind: KindBlog, Title: "Hello", Body: "body"}
	require.NoError(t, post.BeforeCreate(nil))
	assert.NotEmpty(t, post.ID)
	assert.False(t, post.CreatedAt.IsZero())
	assert.False(t, post.UpdatedAt.IsZero())
	assert.Equal(t, post.CreatedAt, post.LastActivity)

	active := time.Now().Add(-time.Hour)
	thread := &ContentItem{Kind: KindForum, LastActivity: active}
	require.NoError(t, thread.BeforeCreate(nil))
	assert.Equal(t, active, thread.LastActivity)
}
