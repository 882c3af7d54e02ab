package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/michbru/PTrees/internal/domain"
	"github.com/michbru/PTrees/internal/storage"
)

// SecurityStore is an in-memory implementation of storage.SecurityStore.
type SecurityStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Security // keyed by entity
}

// NewSecurityStore creates a new in-memory security store.
func NewSecurityStore() *SecurityStore {
	return &SecurityStore{
		data: make(map[string]*domain.Security),
	}
}

// Insert adds a new security. Returns ErrDuplicateKey if the entity exists.
func (s *SecurityStore) Insert(_ context.Context, sec *domain.Security) error {
	if sec == nil || sec.Entity == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sec.Entity]; exists {
		return storage.ErrDuplicateKey
	}

	secCopy := *sec
	s.data[sec.Entity] = &secCopy
	return nil
}

// GetByEntity retrieves a security by entity identifier.
func (s *SecurityStore) GetByEntity(_ context.Context, entity string) (*domain.Security, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sec, exists := s.data[entity]
	if !exists {
		return nil, storage.ErrNotFound
	}

	secCopy := *sec
	return &secCopy, nil
}

// GetAll retrieves all securities, ordered by entity ASC.
func (s *SecurityStore) GetAll(_ context.Context) ([]*domain.Security, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Security, 0, len(s.data))
	for _, sec := range s.data {
		secCopy := *sec
		result = append(result, &secCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Entity < result[j].Entity
	})

	return result, nil
}

var _ storage.SecurityStore = (*SecurityStore)(nil)
