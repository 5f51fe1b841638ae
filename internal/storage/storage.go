package storage

import (
	"context"
	"errors"

	"github.com/xaenox/command-center/internal/models"
)

// ErrNotFound is returned when a thread or message does not exist.
var ErrNotFound = errors.New("not found")

type Storage interface {
	ThreadStorage
	MessageStorage
	UploadStorage

	Stats(ctx context.Context) (models.StoreStats, error)
	Close() error
}

type ThreadStorage interface {
	CreateThread(ctx context.Context, thread *models.Thread) error
	GetThread(ctx context.Context, id string) (*models.Thread, error)
	// ListThreads returns a single agent's threads, pinned first, then most
	// recently updated first.
	ListThreads(ctx context.Context, agentID string) ([]*models.Thread, error)
	RenameThread(ctx context.Context, id, title string) error
	SetThreadPinned(ctx context.Context, id string, pinned bool) error
	// TouchThread refreshes updated_at so recency ordering stays correct.
	TouchThread(ctx context.Context, id string) error
	DeleteThread(ctx context.Context, id string) error
}

type MessageStorage interface {
	SaveMessage(ctx context.Context, msg *models.Message) error
	// GetThreadMessages returns a thread's messages in creation order,
	// oldest first.
	GetThreadMessages(ctx context.Context, threadID string) ([]*models.Message, error)
	CountThreadMessages(ctx context.Context, threadID string) (int, error)
	ClearThreadMessages(ctx context.Context, threadID string) error
}

type UploadStorage interface {
	SaveUpload(ctx context.Context, upload *models.FileUpload) error
}
