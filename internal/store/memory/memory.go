package memory

import (
	"context"
	"sort"
	"sync"
)

// Store is an in-process backend. It keeps nothing across restarts and is
// used when no Redis is configured, and in tests.
type Store struct {
	mu    sync.RWMutex
	items map[string][]byte // bucket -> JSON document
}

// New creates an empty store.
func New() *Store {
	return &Store{
		items: make(map[string][]byte),
	}
}

// Get returns copies of the values for the keys that exist.
func (s *Store) Get(_ context.Context, keys ...string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := s.items[k]; ok {
			out[k] = clone(v)
		}
	}
	return out, nil
}

// Set stores copies of the values.
func (s *Store) Set(_ context.Context, items map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range items {
		s.items[k] = clone(v)
	}
	return nil
}

// Remove deletes the keys. Missing keys are ignored.
func (s *Store) Remove(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.items, k)
	}
	return nil
}

// Keys returns every key, sorted.
func (s *Store) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// BytesInUse sums key and value lengths.
func (s *Store) BytesInUse(_ context.Context, keys ...string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	if len(keys) == 0 {
		for k, v := range s.items {
			total += int64(len(k) + len(v))
		}
		return total, nil
	}
	for _, k := range keys {
		if v, ok := s.items[k]; ok {
			total += int64(len(k) + len(v))
		}
	}
	return total, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Count returns the number of stored keys.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
