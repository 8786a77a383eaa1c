package store

import "sync"

// MemStore is an in-memory KV for tests and throwaway runs.
type MemStore struct {
	mu sync.Mutex
	m  map[string]string
}

var _ KV = (*MemStore)(nil)

func NewMemStore() *MemStore { return &MemStore{m: make(map[string]string)} }

func (s *MemStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *MemStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}
