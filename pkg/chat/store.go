package chat

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a chat ID has no stored record
var ErrNotFound = errors.New("chat not found")

// Info is a listing entry for one stored chat
type Info struct {
	ID        string
	UpdatedAt time.Time
}

// Store is the persistence contract injected into sessions. No component
// reaches persistence any other way.
type Store interface {
	// Get returns the chat for an ID, or ErrNotFound
	Get(ctx context.Context, chatID string) (*Chat, error)

	// Save inserts or replaces a chat record
	Save(ctx context.Context, chat *Chat) error

	// Update applies a mutation to a stored chat atomically
	Update(ctx context.Context, chatID string, mutate func(*Chat) error) error

	// Clear removes one chat record
	Clear(ctx context.Context, chatID string) error

	// List enumerates stored chats
	List(ctx context.Context) ([]Info, error)
}

// MemoryStore is a mutex-guarded in-memory store. The calling pattern
// issues at most one concurrent turn per chat ID; the mutex guards the
// map itself.
type MemoryStore struct {
	chats map[string]*Chat
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chats: make(map[string]*Chat)}
}

// Get returns the chat for an ID, or ErrNotFound
func (m *MemoryStore) Get(_ context.Context, chatID string) (*Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chat, ok := m.chats[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *chat
	return &copied, nil
}

// Save inserts or replaces a chat record
func (m *MemoryStore) Save(_ context.Context, chat *Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *chat
	m.chats[chat.ID] = &copied
	return nil
}

// Update applies a mutation to a stored chat
func (m *MemoryStore) Update(_ context.Context, chatID string, mutate func(*Chat) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat, ok := m.chats[chatID]
	if !ok {
		return ErrNotFound
	}
	if err := mutate(chat); err != nil {
		return err
	}
	chat.UpdatedAt = time.Now()
	return nil
}

// Clear removes one chat record
func (m *MemoryStore) Clear(_ context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chats, chatID)
	return nil
}

// List enumerates stored chats
func (m *MemoryStore) List(_ context.Context) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, 0, len(m.chats))
	for _, chat := range m.chats {
		infos = append(infos, Info{ID: chat.ID, UpdatedAt: chat.UpdatedAt})
	}
	return infos, nil
}
