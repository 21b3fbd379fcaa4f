package expenses

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func newExpense(owner, event string, seq int64, amount int64) *models.ExpenseLine {
	return &models.ExpenseLine{
		Envelope:      models.NewEnvelope(owner, time.Now()),
		EventID:       event,
		LineNumber:    fmt.Sprintf("%04d", seq),
		Concept:       "pitch fee",
		Amount:        amount,
		PaymentMethod: models.PaymentCash,
	}
}

func TestUpsertGetList(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	e1 := newExpense("o1", "ev1", 1, 1500)
	e2 := newExpense("o1", "ev1", 2, 800)
	require.NoError(t, r.Upsert(ctx, e1))
	require.NoError(t, r.Upsert(ctx, e2))

	got, err := r.GetByID(ctx, e1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), got.Amount)
	assert.Equal(t, "0001", got.LineNumber)

	list, err := r.ListByEvent(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "0001", list[0].LineNumber)
	assert.Equal(t, "0002", list[1].LineNumber)
}

func TestNextLineSeq_PerEvent(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	seq, err := r.NextLineSeq(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	require.NoError(t, r.Upsert(ctx, newExpense("o1", "ev1", 1, 100)))
	seq, err = r.NextLineSeq(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)

	seq, err = r.NextLineSeq(ctx, "ev2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
}
