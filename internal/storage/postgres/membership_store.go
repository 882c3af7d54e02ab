package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/michbru/PTrees/internal/domain"
	"github.com/michbru/PTrees/internal/storage"
)

// MembershipStore implements storage.MembershipStore using PostgreSQL.
type MembershipStore struct {
	pool *Pool
}

// NewMembershipStore creates a new MembershipStore.
func NewMembershipStore(pool *Pool) *MembershipStore {
	return &MembershipStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MembershipStore = (*MembershipStore)(nil)

// InsertBulk adds multiple membership pairs atomically inside one
// transaction. Fails entire batch on any duplicate (date, entity).
func (s *MembershipStore) InsertBulk(ctx context.Context, members []domain.UniverseMembership) error {
	if len(members) == 0 {
		return nil
	}
	for _, m := range members {
		if m.Entity == "" || m.Date.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO universe_membership (snapshot_date, entity)
		VALUES ($1, $2)
	`
	for _, m := range members {
		if _, err := tx.Exec(ctx, query, m.Date, m.Entity); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert membership: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByDate retrieves the constituents at the given month-end, ordered by
// entity ASC.
func (s *MembershipStore) GetByDate(ctx context.Context, date time.Time) ([]string, error) {
	query := `
		SELECT entity
		FROM universe_membership
		WHERE snapshot_date = $1
		ORDER BY entity ASC
	`

	rows, err := s.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("get membership by date: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var entity string
		if err := rows.Scan(&entity); err != nil {
			return nil, fmt.Errorf("scan membership row: %w", err)
		}
		result = append(result, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate membership rows: %w", err)
	}

	return result, nil
}

// GetByRange retrieves membership pairs within [start, end] (inclusive),
// ordered by (date, entity) ASC.
func (s *MembershipStore) GetByRange(ctx context.Context, start, end time.Time) ([]domain.UniverseMembership, error) {
	query := `
		SELECT snapshot_date, entity
		FROM universe_membership
		WHERE snapshot_date >= $1 AND snapshot_date <= $2
		ORDER BY snapshot_date ASC, entity ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get membership by range: %w", err)
	}
	defer rows.Close()

	return scanMemberships(rows)
}

// scanMemberships scans multiple rows. Dates are normalized back to UTC;
// postgres DATE columns come back at midnight in the session location.
func scanMemberships(rows pgx.Rows) ([]domain.UniverseMembership, error) {
	var result []domain.UniverseMembership
	for rows.Next() {
		var m domain.UniverseMembership
		if err := rows.Scan(&m.Date, &m.Entity); err != nil {
			return nil, fmt.Errorf("scan membership row: %w", err)
		}
		m.Date = m.Date.UTC()
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate membership rows: %w", err)
	}
	return result, nil
}
