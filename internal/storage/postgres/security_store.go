package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/michbru/PTrees/internal/domain"
	"github.com/michbru/PTrees/internal/storage"
)

// SecurityStore implements storage.SecurityStore using PostgreSQL.
type SecurityStore struct {
	pool *Pool
}

// NewSecurityStore creates a new SecurityStore.
func NewSecurityStore(pool *Pool) *SecurityStore {
	return &SecurityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SecurityStore = (*SecurityStore)(nil)

// Insert adds a new security. Returns ErrDuplicateKey if the entity exists.
func (s *SecurityStore) Insert(ctx context.Context, sec *domain.Security) error {
	if sec == nil || sec.Entity == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO securities (
			entity, name, sector_code, industry_code
		) VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query,
		sec.Entity,
		sec.Name,
		sec.SectorCode,
		sec.IndustryCode,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert security: %w", err)
	}
	return nil
}

// GetByEntity retrieves a security by entity identifier. Returns ErrNotFound
// if not exists.
func (s *SecurityStore) GetByEntity(ctx context.Context, entity string) (*domain.Security, error) {
	query := `
		SELECT entity, name, sector_code, industry_code
		FROM securities
		WHERE entity = $1
	`

	row := s.pool.QueryRow(ctx, query, entity)
	sec, err := scanSecurity(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get security by entity: %w", err)
	}
	return sec, nil
}

// GetAll retrieves all securities, ordered by entity ASC.
func (s *SecurityStore) GetAll(ctx context.Context) ([]*domain.Security, error) {
	query := `
		SELECT entity, name, sector_code, industry_code
		FROM securities
		ORDER BY entity ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all securities: %w", err)
	}
	defer rows.Close()

	var result []*domain.Security
	for rows.Next() {
		sec, err := scanSecurity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan security row: %w", err)
		}
		result = append(result, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate security rows: %w", err)
	}

	return result, nil
}

// scanSecurity scans a single row into Security.
func scanSecurity(row pgx.Row) (*domain.Security, error) {
	var sec domain.Security

	err := row.Scan(
		&sec.Entity,
		&sec.Name,
		&sec.SectorCode,
		&sec.IndustryCode,
	)
	if err != nil {
		return nil, err
	}

	return &sec, nil
}
