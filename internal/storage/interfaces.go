package storage

import (
	"context"
	"time"

	"github.com/michbru/PTrees/internal/domain"
)

// ObservationStore provides access to raw_observations storage.
type ObservationStore interface {
	// InsertBulk adds multiple observations atomically. Fails entire batch on
	// any duplicate (entity, field, freq, date).
	InsertBulk(ctx context.Context, obs []domain.RawObservation) error

	// GetByEntityField retrieves all observations for one entity and field,
	// ordered by date ASC.
	GetByEntityField(ctx context.Context, entity, field string) ([]domain.RawObservation, error)

	// GetByRange retrieves observations for the given entities and fields
	// within [start, end] (inclusive), ordered by (entity, field, date) ASC.
	// Empty fields means all fields.
	GetByRange(ctx context.Context, entities []string, fields []string, start, end time.Time) ([]domain.RawObservation, error)
}

// MembershipStore provides access to universe_membership storage.
type MembershipStore interface {
	// InsertBulk adds multiple membership pairs atomically. Fails entire
	// batch on any duplicate (date, entity).
	InsertBulk(ctx context.Context, members []domain.UniverseMembership) error

	// GetByDate retrieves the entities that were constituents at the given
	// month-end, ordered by entity ASC.
	GetByDate(ctx context.Context, date time.Time) ([]string, error)

	// GetByRange retrieves membership pairs within [start, end] (inclusive),
	// ordered by (date, entity) ASC.
	GetByRange(ctx context.Context, start, end time.Time) ([]domain.UniverseMembership, error)
}

// SecurityStore provides access to securities storage.
type SecurityStore interface {
	// Insert adds a new security. Returns ErrDuplicateKey if the entity exists.
	Insert(ctx context.Context, s *domain.Security) error

	// GetByEntity retrieves a security by entity identifier. Returns
	// ErrNotFound if not exists.
	GetByEntity(ctx context.Context, entity string) (*domain.Security, error)

	// GetAll retrieves all securities, ordered by entity ASC.
	GetAll(ctx context.Context) ([]*domain.Security, error)
}

// PanelStore provides access to finished panel rows.
type PanelStore interface {
	// InsertBulk adds multiple panel rows atomically. Fails entire batch on
	// any duplicate (entity, date).
	InsertBulk(ctx context.Context, rows []*domain.PanelRow) error

	// GetByEntity retrieves all rows for an entity, ordered by date ASC.
	GetByEntity(ctx context.Context, entity string) ([]*domain.PanelRow, error)

	// GetByRange retrieves rows within [start, end] (inclusive), ordered by
	// (entity, date) ASC.
	GetByRange(ctx context.Context, start, end time.Time) ([]*domain.PanelRow, error)
}
