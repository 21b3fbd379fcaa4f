package articles

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

func TestUpsertAndGet(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	a := &models.Article{
		Envelope:   models.NewEnvelope("o1", time.Now()),
		Name:       "mug",
		CategoryID: "cat-1",
		PriceCents: 1250,
	}
	require.NoError(t, r.Upsert(ctx, a))

	got, err := r.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "mug", got.Name)
	assert.Equal(t, "cat-1", got.CategoryID)
	assert.Equal(t, int64(1250), got.PriceCents)

	_, err = r.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDirtyBookkeeping(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	a := &models.Article{Envelope: models.NewEnvelope("o1", time.Now()), Name: "mug"}
	require.NoError(t, r.Upsert(ctx, a))

	dirty, err := r.ListDirtyByOwner(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, dirty, 1)

	require.NoError(t, r.MarkClean(ctx, a.ID, a.Version))
	dirty, err = r.ListDirtyByOwner(ctx, "o1")
	require.NoError(t, err)
	assert.Empty(t, dirty)

	n, err := r.CountByOwner(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
