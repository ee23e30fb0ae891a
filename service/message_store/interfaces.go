package message_store

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Storage.Get for a missing key.
var ErrNotFound = errors.New("storage: key not found")

// Storage is the durable string-keyed blob store the message store persists
// into. Implementations live in pebble_service and redis_service.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// DeletePolicy selects how delete_message events change a conversation log.
type DeletePolicy string

const (
	// DeleteMark keeps the slot and clears the content.
	DeleteMark DeletePolicy = "mark"
	// DeleteRemove filters the message out of the list.
	DeleteRemove DeletePolicy = "remove"
)

// MemoryStorage keeps blobs in process memory (tests and ephemeral sessions).
type MemoryStorage struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		blobs: make(map[string][]byte),
	}
}

func (m *MemoryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if blob, exists := m.blobs[key]; exists {
		out := make([]byte, len(blob))
		copy(out, blob)
		return out, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStorage) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	blob := make([]byte, len(value))
	copy(blob, value)
	m.blobs[key] = blob
	return nil
}

func (m *MemoryStorage) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, key)
	return nil
}
