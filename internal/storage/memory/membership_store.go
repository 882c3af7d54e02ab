package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/michbru/PTrees/internal/domain"
	"github.com/michbru/PTrees/internal/storage"
)

// MembershipStore is an in-memory implementation of storage.MembershipStore.
type MembershipStore struct {
	mu   sync.RWMutex
	data map[domain.UniverseMembership]struct{}
}

// NewMembershipStore creates a new in-memory membership store.
func NewMembershipStore() *MembershipStore {
	return &MembershipStore{
		data: make(map[domain.UniverseMembership]struct{}),
	}
}

// InsertBulk adds multiple membership pairs. Fails entire batch on duplicate.
func (s *MembershipStore) InsertBulk(_ context.Context, members []domain.UniverseMembership) error {
	if len(members) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[domain.UniverseMembership]struct{}, len(members))

	for _, m := range members {
		if m.Entity == "" || m.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[m]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[m]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[m] = struct{}{}
	}

	for _, m := range members {
		s.data[m] = struct{}{}
	}

	return nil
}

// GetByDate retrieves the constituents at the given month-end, ordered by
// entity ASC.
func (s *MembershipStore) GetByDate(_ context.Context, date time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []string
	for m := range s.data {
		if m.Date.Equal(date) {
			result = append(result, m.Entity)
		}
	}

	sort.Strings(result)
	return result, nil
}

// GetByRange retrieves membership pairs within [start, end] (inclusive),
// ordered by (date, entity) ASC.
func (s *MembershipStore) GetByRange(_ context.Context, start, end time.Time) ([]domain.UniverseMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.UniverseMembership
	for m := range s.data {
		if m.Date.Before(start) || m.Date.After(end) {
			continue
		}
		result = append(result, m)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].Entity < result[j].Entity
	})

	return result, nil
}

var _ storage.MembershipStore = (*MembershipStore)(nil)
