// Package memory implements repository.KVStore with a map
package memory

import (
	"context"
	"sync"

	"netbloom/internal/repository"
)

var _ repository.KVStore = (*Store)(nil)

// Store is an in-memory KVStore
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

// New creates an empty store
func New() *Store {
	return &Store{data: make(map[string]string)}
}

// Get returns the value stored under key
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

// Set stores value under key
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// Len returns the number of keys
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Close does nothing
func (s *Store) Close() error {
	return nil
}
