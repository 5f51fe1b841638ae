package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xaenox/command-center/internal/models"
)

type MemoryStorage struct {
	mu       sync.RWMutex
	threads  map[string]*models.Thread
	messages map[string]*models.Message
	uploads  map[string]*models.FileUpload
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		threads:  make(map[string]*models.Thread),
		messages: make(map[string]*models.Message),
		uploads:  make(map[string]*models.FileUpload),
	}
}

func (s *MemoryStorage) CreateThread(ctx context.Context, thread *models.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	thread.CreatedAt = now
	thread.UpdatedAt = now
	copied := *thread
	s.threads[thread.ID] = &copied
	return nil
}

func (s *MemoryStorage) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thread, exists := s.threads[id]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *thread
	return &copied, nil
}

func (s *MemoryStorage) ListThreads(ctx context.Context, agentID string) ([]*models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var threads []*models.Thread
	for _, thread := range s.threads {
		if thread.AgentID == agentID {
			copied := *thread
			threads = append(threads, &copied)
		}
	}

	// Pinned first, then most recently updated
	sort.Slice(threads, func(i, j int) bool {
		if threads[i].Pinned != threads[j].Pinned {
			return threads[i].Pinned
		}
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})

	return threads, nil
}

func (s *MemoryStorage) RenameThread(ctx context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, exists := s.threads[id]
	if !exists {
		return ErrNotFound
	}
	thread.Title = title
	thread.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorage) SetThreadPinned(ctx context.Context, id string, pinned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, exists := s.threads[id]
	if !exists {
		return ErrNotFound
	}
	thread.Pinned = pinned
	thread.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorage) TouchThread(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if thread, exists := s.threads[id]; exists {
		thread.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemoryStorage) DeleteThread(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.threads, id)
	// Orphan the thread's messages, matching ON DELETE SET NULL
	for _, msg := range s.messages {
		if msg.ThreadID == id {
			msg.ThreadID = ""
		}
	}
	return nil
}

func (s *MemoryStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	copied := *msg
	s.messages[msg.ID] = &copied
	return nil
}

func (s *MemoryStorage) GetThreadMessages(ctx context.Context, threadID string) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var messages []*models.Message
	for _, msg := range s.messages {
		if msg.ThreadID == threadID {
			copied := *msg
			messages = append(messages, &copied)
		}
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	return messages, nil
}

func (s *MemoryStorage) CountThreadMessages(ctx context.Context, threadID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, msg := range s.messages {
		if msg.ThreadID == threadID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) ClearThreadMessages(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, msg := range s.messages {
		if msg.ThreadID == threadID {
			delete(s.messages, id)
		}
	}
	return nil
}

func (s *MemoryStorage) SaveUpload(ctx context.Context, upload *models.FileUpload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = time.Now()
	}
	copied := *upload
	s.uploads[upload.ID] = &copied
	return nil
}

func (s *MemoryStorage) Stats(ctx context.Context) (models.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.StoreStats{
		Threads:  int64(len(s.threads)),
		Messages: int64(len(s.messages)),
		Uploads:  int64(len(s.uploads)),
	}, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
