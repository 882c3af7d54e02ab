package clickhouse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/michbru/PTrees/internal/domain"
	"github.com/michbru/PTrees/internal/storage"
)

func TestPanelStore_InsertBulkAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPanelStore(conn)
	ctx := context.Background()

	rows := []*domain.PanelRow{
		{
			Entity: "A",
			Date:   monthEnd(2015, 2, 28),
			Values: map[string]float64{"size": 1.2, "bm": 0.4},
			Labels: map[string]string{"sector_code": "45"},
		},
		{
			Entity: "A",
			Date:   monthEnd(2015, 1, 31),
			Values: map[string]float64{"size": 1.1},
		},
	}
	require.NoError(t, store.InsertBulk(ctx, rows))

	got, err := store.GetByEntity(ctx, "A")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 1.1, got[0].Values["size"], "rows must come back date-ordered")
	require.Equal(t, "45", got[1].Labels["sector_code"])
}

func TestPanelStore_DuplicateKey(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPanelStore(conn)
	ctx := context.Background()

	rows := []*domain.PanelRow{{Entity: "A", Date: monthEnd(2015, 1, 31)}}
	require.NoError(t, store.InsertBulk(ctx, rows))

	err := store.InsertBulk(ctx, rows)
	require.True(t, errors.Is(err, storage.ErrDuplicateKey), "expected ErrDuplicateKey, got %v", err)
}

func TestPanelStore_GetByRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPanelStore(conn)
	ctx := context.Background()

	rows := []*domain.PanelRow{
		{Entity: "B", Date: monthEnd(2015, 1, 31)},
		{Entity: "A", Date: monthEnd(2015, 1, 31)},
		{Entity: "A", Date: monthEnd(2015, 3, 31)},
	}
	require.NoError(t, store.InsertBulk(ctx, rows))

	got, err := store.GetByRange(ctx, monthEnd(2015, 1, 1), monthEnd(2015, 2, 28))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "A", got[0].Entity)
	require.Equal(t, "B", got[1].Entity)
}

func TestPanelStore_IntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPanelStore(conn)
	ctx := context.Background()

	rows := []*domain.PanelRow{
		{Entity: "A", Date: monthEnd(2015, 1, 31)},
		{Entity: "A", Date: monthEnd(2015, 1, 31)},
	}

	err := store.InsertBulk(ctx, rows)
	require.True(t, errors.Is(err, storage.ErrDuplicateKey), "expected ErrDuplicateKey, got %v", err)
}
