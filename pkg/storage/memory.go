package storage

import (
	"sync"
)

// Checkpoints persists small named counters: the scanner cursor and the next token id.
type Checkpoints interface {
	// Load reads a stored value, returning 0 when the key has never been saved
	// key: e.g. "cursor:eth-mainnet" or "next_token_id:eth-mainnet"
	Load(key string) (uint64, error)

	// Save stores the value under key, overwriting any previous value
	Save(key string, value uint64) error

	// Close releases resources
	Close() error
}

// CursorKey is the checkpoint key holding the next block the scanner should handle.
func CursorKey(chain string) string {
	return "cursor:" + chain
}

// LastDropKey is the checkpoint key holding the last boundary a distribution pass started at.
func LastDropKey(chain string) string {
	return "last_drop:" + chain
}

// TokenIDKey is the checkpoint key holding the next sequential token id.
func TokenIDKey(chain string) string {
	return "next_token_id:" + chain
}

// MemoryStore is a simple in-memory implementation (Note: data lost on restart, for testing/temp tasks only)
type MemoryStore struct {
	data   map[string]uint64
	prefix string
	mu     sync.RWMutex
}

// NewMemoryStore initializes a new in-memory storage.
func NewMemoryStore(prefix string) *MemoryStore {
	return &MemoryStore{
		data:   make(map[string]uint64),
		prefix: prefix,
	}
}

func (m *MemoryStore) Load(key string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[m.prefix+key], nil
}

func (m *MemoryStore) Save(key string, value uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[m.prefix+key] = value
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
