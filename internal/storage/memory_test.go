package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/command-center/internal/models"
)

func TestMemoryThreadLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	thread := &models.Thread{ID: "t1", AgentID: "titus", Title: "New Thread"}
	require.NoError(t, store.CreateThread(ctx, thread))

	got, err := store.GetThread(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "New Thread", got.Title)
	assert.False(t, got.CreatedAt.IsZero())

	require.NoError(t, store.RenameThread(ctx, "t1", "Deploy planning"))
	got, err = store.GetThread(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Deploy planning", got.Title)

	require.NoError(t, store.DeleteThread(ctx, "t1"))
	_, err = store.GetThread(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryListThreadsPinnedFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	require.NoError(t, store.CreateThread(ctx, &models.Thread{ID: "old", AgentID: "titus"}))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, store.CreateThread(ctx, &models.Thread{ID: "new", AgentID: "titus"}))
	require.NoError(t, store.CreateThread(ctx, &models.Thread{ID: "other", AgentID: "scout"}))

	require.NoError(t, store.SetThreadPinned(ctx, "old", true))

	threads, err := store.ListThreads(ctx, "titus")
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, "old", threads[0].ID, "pinned threads sort first")
	assert.Equal(t, "new", threads[1].ID)
}

func TestMemoryDeleteThreadOrphansMessages(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	require.NoError(t, store.CreateThread(ctx, &models.Thread{ID: "t1", AgentID: "titus"}))
	require.NoError(t, store.SaveMessage(ctx, &models.Message{ID: "m1", ThreadID: "t1", Content: "hi"}))

	require.NoError(t, store.DeleteThread(ctx, "t1"))

	msgs, err := store.GetThreadMessages(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, msgs, "orphaned rows no longer belong to the thread")

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Messages, "the row itself survives the thread")
}

func TestMemoryMessagesSortedByCreation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	base := time.Now()
	require.NoError(t, store.SaveMessage(ctx, &models.Message{ID: "m2", ThreadID: "t1", CreatedAt: base.Add(time.Second)}))
	require.NoError(t, store.SaveMessage(ctx, &models.Message{ID: "m1", ThreadID: "t1", CreatedAt: base}))

	msgs, err := store.GetThreadMessages(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)

	count, err := store.CountThreadMessages(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemoryClearThreadMessages(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	require.NoError(t, store.SaveMessage(ctx, &models.Message{ID: "m1", ThreadID: "t1"}))
	require.NoError(t, store.SaveMessage(ctx, &models.Message{ID: "m2", ThreadID: "t2"}))

	require.NoError(t, store.ClearThreadMessages(ctx, "t1"))

	count, err := store.CountThreadMessages(ctx, "t1")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = store.CountThreadMessages(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "other threads are untouched")
}
