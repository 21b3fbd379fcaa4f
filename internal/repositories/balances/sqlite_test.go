package balances

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

func TestGetUnconsumedByOwner(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	_, err := r.GetUnconsumedByOwner(ctx, "o1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	consumed := &models.SavedBalance{
		Envelope: models.NewEnvelope("o1", time.Now()),
		Amount:   5000, SourceEventID: "ev0", Consumed: true,
	}
	open := &models.SavedBalance{
		Envelope: models.NewEnvelope("o1", time.Now()),
		Amount:   13000, SourceEventID: "ev1",
	}
	require.NoError(t, r.Upsert(ctx, consumed))
	require.NoError(t, r.Upsert(ctx, open))

	got, err := r.GetUnconsumedByOwner(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, open.ID, got.ID)
	assert.Equal(t, int64(13000), got.Amount)

	// consuming it empties the slot
	got.Consumed = true
	got.Touch(time.Now())
	require.NoError(t, r.Upsert(ctx, got))

	_, err = r.GetUnconsumedByOwner(ctx, "o1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListAndCount(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	b := &models.SavedBalance{Envelope: models.NewEnvelope("o1", time.Now()), Amount: 100}
	require.NoError(t, r.Upsert(ctx, b))

	list, err := r.ListByOwner(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	n, err := r.CountByOwner(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	dirty, err := r.ListDirtyByOwner(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	require.NoError(t, r.MarkClean(ctx, b.ID, b.Version))
	dirty, err = r.ListDirtyByOwner(ctx, "o1")
	require.NoError(t, err)
	assert.Empty(t, dirty)
}
