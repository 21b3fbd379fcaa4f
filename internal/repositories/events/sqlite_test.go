package events

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stallbook/stallbook/internal/common"
	"github.com/stallbook/stallbook/internal/models"
	"github.com/stallbook/stallbook/internal/store"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newEvent(owner, date string, state models.MarketEventState) *models.MarketEvent {
	return &models.MarketEvent{
		Envelope: models.NewEnvelope(owner, time.Now()),
		Date:     date,
		Place:    "plaza mayor",
		State:    state,
	}
}

func TestUpsertAndGet_NullableBalances(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	m := newEvent("o1", "2025-06-07", models.StatePartiallyScheduled)
	require.NoError(t, r.Upsert(ctx, m))

	got, err := r.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, got.OpeningBalance)
	assert.Nil(t, got.ClosingBalance)
	assert.Nil(t, got.CashCountResult)
	assert.Equal(t, models.StatePartiallyScheduled, got.State)

	opening := int64(10000)
	m.OpeningBalance = &opening
	m.State = models.StateFullyScheduled
	m.Touch(time.Now())
	require.NoError(t, r.Upsert(ctx, m))

	got, err = r.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got.OpeningBalance)
	assert.Equal(t, int64(10000), *got.OpeningBalance)
	assert.Equal(t, models.StateFullyScheduled, got.State)
	assert.Equal(t, int64(2), got.Version)
}

func TestGetByID_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListByOwnerStates(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	scheduled := newEvent("o1", "2025-06-08", models.StatePartiallyScheduled)
	inProgress := newEvent("o1", "2025-06-07", models.StateInProgress)
	closed := newEvent("o1", "2025-06-01", models.StateClosed)
	inactive := newEvent("o1", "2025-06-02", models.StateInProgress)
	inactive.Active = false
	for _, m := range []*models.MarketEvent{scheduled, inProgress, closed, inactive} {
		require.NoError(t, r.Upsert(ctx, m))
	}

	got, err := r.ListByOwnerStates(ctx, "o1",
		models.StatePartiallyScheduled, models.StateFullyScheduled,
		models.StateInProgress, models.StatePendingReconciliation)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// ordered by date
	assert.Equal(t, inProgress.ID, got[0].ID)
	assert.Equal(t, scheduled.ID, got[1].ID)

	got, err = r.ListByOwnerStates(ctx, "o1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDirtyFlow(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	m := newEvent("o1", "2025-06-07", models.StateInProgress)
	require.NoError(t, r.Upsert(ctx, m))

	dirty, err := r.ListDirtyByOwner(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, dirty, 1)

	require.NoError(t, r.MarkClean(ctx, m.ID, m.Version))
	dirty, err = r.ListDirtyByOwner(ctx, "o1")
	require.NoError(t, err)
	assert.Empty(t, dirty)
}
