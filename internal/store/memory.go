package store

import "sync"

// MemoryStore keeps everything in process memory. It is used by tests and by
// the "memory" backend, which deliberately forgets state on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if val, ok := s.data[key]; ok {
		copyVal := make([]byte, len(val))
		copy(copyVal, val)
		return copyVal, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copyVal := make([]byte, len(value))
	copy(copyVal, value)
	s.data[key] = copyVal
	return nil
}

func (s *MemoryStore) Close() error { return nil }
