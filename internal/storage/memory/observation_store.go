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

// ObservationStore is an in-memory implementation of storage.ObservationStore.
type ObservationStore struct {
	mu   sync.RWMutex
	data map[string]domain.RawObservation // keyed by (entity, field, freq, date)
}

// NewObservationStore creates a new in-memory observation store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{
		data: make(map[string]domain.RawObservation),
	}
}

func observationKey(o domain.RawObservation) string {
	return fmt.Sprintf("%s|%s|%s|%d", o.Entity, o.Field, o.Freq, o.Date.UnixMilli())
}

// InsertBulk adds multiple observations. Fails entire batch on duplicate.
func (s *ObservationStore) InsertBulk(_ context.Context, obs []domain.RawObservation) error {
	if len(obs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(obs))

	for _, o := range obs {
		if o.Entity == "" || o.Field == "" {
			return storage.ErrInvalidInput
		}
		key := observationKey(o)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, o := range obs {
		s.data[observationKey(o)] = o
	}

	return nil
}

// GetByEntityField retrieves all observations for one entity and field,
// ordered by date ASC.
func (s *ObservationStore) GetByEntityField(_ context.Context, entity, field string) ([]domain.RawObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.RawObservation
	for _, o := range s.data {
		if o.Entity == entity && o.Field == field {
			result = append(result, o)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

// GetByRange retrieves observations for the given entities and fields within
// [start, end] (inclusive), ordered by (entity, field, date) ASC.
func (s *ObservationStore) GetByRange(_ context.Context, entities []string, fields []string, start, end time.Time) ([]domain.RawObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wantEntity := make(map[string]bool, len(entities))
	for _, e := range entities {
		wantEntity[e] = true
	}
	wantField := make(map[string]bool, len(fields))
	for _, f := range fields {
		wantField[f] = true
	}

	var result []domain.RawObservation
	for _, o := range s.data {
		if !wantEntity[o.Entity] {
			continue
		}
		if len(wantField) > 0 && !wantField[o.Field] {
			continue
		}
		if o.Date.Before(start) || o.Date.After(end) {
			continue
		}
		result = append(result, o)
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		return a.Date.Before(b.Date)
	})

	return result, nil
}

var _ storage.ObservationStore = (*ObservationStore)(nil)
