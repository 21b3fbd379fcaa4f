package categories

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

func newCategory(owner, name string) *models.Category {
	return &models.Category{
		Envelope: models.NewEnvelope(owner, time.Now()),
		Name:     name,
	}
}

func TestUpsert_InsertAndUpdate(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	c := newCategory("o1", "ceramics")
	require.NoError(t, r.Upsert(ctx, c))

	c.Name = "pottery"
	c.Touch(time.Now())
	require.NoError(t, r.Upsert(ctx, c))

	got, err := r.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "pottery", got.Name)
	assert.Equal(t, int64(2), got.Version)
	assert.True(t, got.Dirty)
}

func TestGetByID_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListByOwner_SkipsInactiveAndOtherOwners(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	a := newCategory("o1", "a")
	b := newCategory("o1", "b")
	b.Active = false
	other := newCategory("o2", "c")
	for _, c := range []*models.Category{a, b, other} {
		require.NoError(t, r.Upsert(ctx, c))
	}

	got, err := r.ListByOwner(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
}

func TestListDirtyByOwner_OldestFirst_IncludesInactive(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	newer := newCategory("o1", "newer")
	newer.LastModified = 2000
	older := newCategory("o1", "older")
	older.LastModified = 1000
	older.Active = false
	clean := newCategory("o1", "clean")
	clean.Dirty = false
	for _, c := range []*models.Category{newer, older, clean} {
		require.NoError(t, r.Upsert(ctx, c))
	}

	got, err := r.ListDirtyByOwner(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, older.ID, got[0].ID)
	assert.Equal(t, newer.ID, got[1].ID)
}

func TestMarkClean_OnlyMatchingVersion(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	c := newCategory("o1", "a")
	require.NoError(t, r.Upsert(ctx, c))

	// stale version: the record was edited again since the push started
	require.NoError(t, r.MarkClean(ctx, c.ID, c.Version-1))
	got, err := r.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Dirty)

	require.NoError(t, r.MarkClean(ctx, c.ID, c.Version))
	got, err = r.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.Dirty)
}

func TestCountByOwner_IncludesInactive(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	a := newCategory("o1", "a")
	b := newCategory("o1", "b")
	b.Active = false
	require.NoError(t, r.Upsert(ctx, a))
	require.NoError(t, r.Upsert(ctx, b))

	n, err := r.CountByOwner(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = r.CountByOwner(ctx, "o2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestDelete_RemovesRow(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	c := newCategory("o1", "a")
	require.NoError(t, r.Upsert(ctx, c))
	require.NoError(t, r.Delete(ctx, c.ID))

	_, err := r.GetByID(ctx, c.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
