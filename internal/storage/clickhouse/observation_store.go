package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/michbru/PTrees/internal/domain"
	"github.com/michbru/PTrees/internal/storage"
)

// ObservationStore implements storage.ObservationStore using ClickHouse.
type ObservationStore struct {
	conn *Conn
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(conn *Conn) *ObservationStore {
	return &ObservationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

// InsertBulk adds multiple observations. Fails entire batch on duplicate.
func (s *ObservationStore) InsertBulk(ctx context.Context, obs []domain.RawObservation) error {
	if len(obs) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		entity string
		field  string
		freq   domain.Frequency
		date   time.Time
	}
	seen := make(map[key]struct{})
	for _, o := range obs {
		if o.Entity == "" || o.Field == "" {
			return storage.ErrInvalidInput
		}
		k := key{o.Entity, o.Field, o.Freq, o.Date}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, o := range obs {
		exists, err := s.exists(ctx, o)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO raw_observations (
			entity, field, freq, obs_date, value, currency
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, o := range obs {
		err = batch.Append(
			o.Entity, o.Field, string(o.Freq), o.Date, o.Value, o.Currency,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByEntityField retrieves all observations for one entity and field,
// ordered by date ASC.
func (s *ObservationStore) GetByEntityField(ctx context.Context, entity, field string) ([]domain.RawObservation, error) {
	query := `
		SELECT entity, field, freq, obs_date, value, currency
		FROM raw_observations
		WHERE entity = ? AND field = ?
		ORDER BY obs_date ASC
	`

	rows, err := s.conn.Query(ctx, query, entity, field)
	if err != nil {
		return nil, fmt.Errorf("query by entity field: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetByRange retrieves observations for the given entities and fields within
// [start, end] (inclusive), ordered by (entity, field, date) ASC. Empty
// fields means all fields.
func (s *ObservationStore) GetByRange(ctx context.Context, entities []string, fields []string, start, end time.Time) ([]domain.RawObservation, error) {
	query := `
		SELECT entity, field, freq, obs_date, value, currency
		FROM raw_observations
		WHERE entity IN (?) AND obs_date >= ? AND obs_date <= ?
	`
	args := []any{entities, start, end}
	if len(fields) > 0 {
		query += ` AND field IN (?)`
		args = append(args, fields)
	}
	query += ` ORDER BY entity ASC, field ASC, obs_date ASC`

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by range: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// exists checks if an observation with the given key exists.
func (s *ObservationStore) exists(ctx context.Context, o domain.RawObservation) (bool, error) {
	query := `
		SELECT count(*) FROM raw_observations
		WHERE entity = ? AND field = ? AND freq = ? AND obs_date = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, o.Entity, o.Field, string(o.Freq), o.Date).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanObservations scans multiple rows.
func scanObservations(rows chRows) ([]domain.RawObservation, error) {
	var result []domain.RawObservation

	for rows.Next() {
		var o domain.RawObservation
		var freq string
		var obsDate time.Time

		err := rows.Scan(&o.Entity, &o.Field, &freq, &obsDate, &o.Value, &o.Currency)
		if err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}

		o.Freq = domain.Frequency(freq)
		o.Date = obsDate.UTC()
		result = append(result, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observation rows: %w", err)
	}

	return result, nil
}

// chRows is the subset of driver.Rows the scanners use.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}
