package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/michbru/PTrees/internal/domain"
	"github.com/michbru/PTrees/internal/storage"
)

// PanelStore implements storage.PanelStore using ClickHouse.
type PanelStore struct {
	conn *Conn
}

// NewPanelStore creates a new PanelStore.
func NewPanelStore(conn *Conn) *PanelStore {
	return &PanelStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PanelStore = (*PanelStore)(nil)

// InsertBulk adds multiple panel rows. Fails entire batch on duplicate.
func (s *PanelStore) InsertBulk(ctx context.Context, rows []*domain.PanelRow) error {
	if len(rows) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		entity string
		date   time.Time
	}
	seen := make(map[key]struct{})
	for _, r := range rows {
		if r == nil || r.Entity == "" || r.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		k := key{r.Entity, r.Date}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, r := range rows {
		exists, err := s.exists(ctx, r.Entity, r.Date)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO panel_rows (entity, obs_date, cells, labels)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		cells := r.Values
		if cells == nil {
			cells = map[string]float64{}
		}
		labels := r.Labels
		if labels == nil {
			labels = map[string]string{}
		}
		if err := batch.Append(r.Entity, r.Date, cells, labels); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByEntity retrieves all rows for an entity, ordered by date ASC.
func (s *PanelStore) GetByEntity(ctx context.Context, entity string) ([]*domain.PanelRow, error) {
	query := `
		SELECT entity, obs_date, cells, labels
		FROM panel_rows
		WHERE entity = ?
		ORDER BY obs_date ASC
	`

	rows, err := s.conn.Query(ctx, query, entity)
	if err != nil {
		return nil, fmt.Errorf("query by entity: %w", err)
	}
	defer rows.Close()

	return scanPanelRows(rows)
}

// GetByRange retrieves rows within [start, end] (inclusive), ordered by
// (entity, date) ASC.
func (s *PanelStore) GetByRange(ctx context.Context, start, end time.Time) ([]*domain.PanelRow, error) {
	query := `
		SELECT entity, obs_date, cells, labels
		FROM panel_rows
		WHERE obs_date >= ? AND obs_date <= ?
		ORDER BY entity ASC, obs_date ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by range: %w", err)
	}
	defer rows.Close()

	return scanPanelRows(rows)
}

// exists checks if a row with the given key exists.
func (s *PanelStore) exists(ctx context.Context, entity string, date time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM panel_rows
		WHERE entity = ? AND obs_date = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, entity, date).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanPanelRows scans multiple rows.
func scanPanelRows(rows chRows) ([]*domain.PanelRow, error) {
	var result []*domain.PanelRow

	for rows.Next() {
		var r domain.PanelRow
		var obsDate time.Time

		err := rows.Scan(&r.Entity, &obsDate, &r.Values, &r.Labels)
		if err != nil {
			return nil, fmt.Errorf("scan panel row: %w", err)
		}

		r.Date = obsDate.UTC()
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate panel rows: %w", err)
	}

	return result, nil
}
