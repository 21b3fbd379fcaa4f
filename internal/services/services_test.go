package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stallbook/stallbook/internal/logging"
	"github.com/stallbook/stallbook/internal/models"
	"github.com/stallbook/stallbook/internal/notify"
	"github.com/stallbook/stallbook/internal/remote"
	"github.com/stallbook/stallbook/internal/repositories/events"
	"github.com/stallbook/stallbook/internal/schedule"
	"github.com/stallbook/stallbook/internal/session"
	"github.com/stallbook/stallbook/internal/store"
)

// testEnv wires one service stack over an in-memory database, an in-memory
// remote and a settable clock. The remote starts online.
type testEnv struct {
	db     *sql.DB
	remote *remote.MemoryStore
	hub    *notify.Hub
	clock  *schedule.FakeClock
	logger logging.Logger
	sess   session.Session
}

func newTestEnv(t *testing.T, tier models.Tier) *testEnv {
	t.Helper()

	db, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	return &testEnv{
		db:     db,
		remote: remote.NewMemoryStore(),
		hub:    notify.NewHub(),
		clock:  schedule.NewFakeClock(time.Date(2025, 6, 7, 10, 0, 0, 0, loc)),
		logger: logging.NewDefault(),
		sess:   session.Session{OwnerID: "owner-1", Tier: tier, Locale: "es"},
	}
}

// today formats the clock's current calendar day.
func (e *testEnv) today() string {
	return e.clock.Now().Format(dateLayout)
}

// seedEvent plants a market event directly in the local store, bypassing
// the service path, for tests that need a specific starting state.
func (e *testEnv) seedEvent(t *testing.T, date string, state models.MarketEventState, mutate func(*models.MarketEvent)) *models.MarketEvent {
	t.Helper()
	m := &models.MarketEvent{
		Envelope: models.NewEnvelope(e.sess.OwnerID, e.clock.Now()),
		Date:     date,
		Place:    "plaza mayor",
		State:    state,
	}
	if mutate != nil {
		mutate(m)
	}
	require.NoError(t, events.NewSQLiteRepository(e.db).Upsert(ctx(), m))
	return m
}

func (e *testEnv) getEvent(t *testing.T, id string) *models.MarketEvent {
	t.Helper()
	m, err := events.NewSQLiteRepository(e.db).GetByID(ctx(), id)
	require.NoError(t, err)
	return m
}

func ctx() context.Context { return context.Background() }

func i64(v int64) *int64 { return &v }
