package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/michbru/PTrees/internal/domain"
	"github.com/michbru/PTrees/internal/storage"
)

// PanelStore is an in-memory implementation of storage.PanelStore.
type PanelStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PanelRow // keyed by (entity, date)
}

// NewPanelStore creates a new in-memory panel store.
func NewPanelStore() *PanelStore {
	return &PanelStore{
		data: make(map[string]*domain.PanelRow),
	}
}

func panelKey(entity string, date time.Time) string {
	return fmt.Sprintf("%s|%d", entity, date.UnixMilli())
}

// InsertBulk adds multiple panel rows. Fails entire batch on duplicate.
func (s *PanelStore) InsertBulk(_ context.Context, rows []*domain.PanelRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))

	for _, r := range rows {
		if r == nil || r.Entity == "" || r.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := panelKey(r.Entity, r.Date)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range rows {
		s.data[panelKey(r.Entity, r.Date)] = copyPanelRow(r)
	}

	return nil
}

// GetByEntity retrieves all rows for an entity, ordered by date ASC.
func (s *PanelStore) GetByEntity(_ context.Context, entity string) ([]*domain.PanelRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PanelRow
	for _, r := range s.data {
		if r.Entity == entity {
			result = append(result, copyPanelRow(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

// GetByRange retrieves rows within [start, end] (inclusive), ordered by
// (entity, date) ASC.
func (s *PanelStore) GetByRange(_ context.Context, start, end time.Time) ([]*domain.PanelRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PanelRow
	for _, r := range s.data {
		if r.Date.Before(start) || r.Date.After(end) {
			continue
		}
		result = append(result, copyPanelRow(r))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Entity != result[j].Entity {
			return result[i].Entity < result[j].Entity
		}
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

func copyPanelRow(r *domain.PanelRow) *domain.PanelRow {
	rowCopy := &domain.PanelRow{
		Entity: r.Entity,
		Date:   r.Date,
		Values: make(map[string]float64, len(r.Values)),
		Labels: make(map[string]string, len(r.Labels)),
	}
	for k, v := range r.Values {
		rowCopy.Values[k] = v
	}
	for k, v := range r.Labels {
		rowCopy.Labels[k] = v
	}
	return rowCopy
}

var _ storage.PanelStore = (*PanelStore)(nil)
