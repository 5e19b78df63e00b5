package memory

import (
	"context"
	"sync"
)

// SnapshotStore is an in-process key-value store for session snapshots.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{data: make(map[string][]byte)}
}

func (s *SnapshotStore) Save(_ context.Context, key string, data []byte) error {
	value := make([]byte, len(data))
	copy(value, data)

	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

func (s *SnapshotStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

func (s *SnapshotStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}
