package memory

import (
	"context"
	"sync"

	"ridemeter/internal/repository"
)

// Store is an in-process DurableStore. Writes are visible to later reads
// in the same process only; it is meant for tests and local runs.
type Store struct {
	mu     sync.RWMutex
	data   map[string]map[string][]byte
	closed bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{data: make(map[string]map[string][]byte)}
}

func (s *Store) Get(_ context.Context, driverID, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, repository.ErrStoreUnavailable
	}
	v, ok := s.data[driverID][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *Store) Set(_ context.Context, driverID, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return repository.ErrStoreUnavailable
	}
	bucket, ok := s.data[driverID]
	if !ok {
		bucket = make(map[string][]byte)
		s.data[driverID] = bucket
	}
	bucket[key] = append([]byte(nil), value...)
	return nil
}

// Close makes every later call fail with repository.ErrStoreUnavailable.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

var _ repository.DurableStore = (*Store)(nil)
