package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stallbook/stallbook/internal/models"
)

func newAutomaton(e *testEnv) *Automaton {
	return NewAutomaton(e.db, e.remote, e.hub, e.clock, e.logger)
}

func (e *testEnv) addLine(t *testing.T, eventID string) {
	t.Helper()
	svc := newSalesService(e)
	_, _, err := svc.CreateReceipt(ctx(), e.sess, ReceiptInput{
		EventID:       eventID,
		PaymentMethod: models.PaymentCash,
		Lines:         []ReceiptLineInput{{Description: "mug", Quantity: 1, UnitPrice: 1000}},
	})
	require.NoError(t, err)
}

func TestAutomaton_ScheduledEntersProgressOnEventDay(t *testing.T) {
	e := newTestEnv(t, models.TierFree)
	a := newAutomaton(e)

	partial := e.seedEvent(t, e.today(), models.StatePartiallyScheduled, nil)
	full := e.seedEvent(t, e.today(), models.StateFullyScheduled, func(m *models.MarketEvent) {
		m.OpeningBalance = i64(5000)
	})
	future := e.seedEvent(t, "2025-06-14", models.StateFullyScheduled, nil)

	require.NoError(t, a.Run(ctx(), e.sess))

	assert.Equal(t, models.StateInProgress, e.getEvent(t, partial.ID).State)
	assert.Equal(t, models.StateInProgress, e.getEvent(t, full.ID).State)
	assert.Equal(t, models.StateFullyScheduled, e.getEvent(t, future.ID).State)
}

func TestAutomaton_WindowEndSettlesByActivity(t *testing.T) {
	e := newTestEnv(t, models.TierFree)
	a := newAutomaton(e)

	withSales := e.seedEvent(t, e.today(), models.StateInProgress, nil)
	e.addLine(t, withSales.ID)
	idle := e.seedEvent(t, e.today(), models.StateInProgress, nil)

	// still inside the window at 04:59 the next day
	e.clock.Set(time.Date(2025, 6, 8, 4, 59, 0, 0, e.clock.Zone()))
	require.NoError(t, a.Run(ctx(), e.sess))
	assert.Equal(t, models.StateInProgress, e.getEvent(t, withSales.ID).State)

	e.clock.Set(time.Date(2025, 6, 8, 5, 0, 0, 0, e.clock.Zone()))
	require.NoError(t, a.Run(ctx(), e.sess))

	settled := e.getEvent(t, withSales.ID)
	assert.Equal(t, models.StatePendingReconciliation, settled.State)
	assert.True(t, settled.PendingReconciliation)

	cancelled := e.getEvent(t, idle.ID)
	assert.Equal(t, models.StateCancelled, cancelled.State)
	assert.True(t, cancelled.Active)
}

func TestAutomaton_ElapsedScheduledEventSettlesInOneRun(t *testing.T) {
	e := newTestEnv(t, models.TierFree)
	a := newAutomaton(e)

	// scheduled for a day that fully elapsed while the process was off
	stale := e.seedEvent(t, "2025-06-01", models.StateFullyScheduled, nil)
	require.NoError(t, a.Run(ctx(), e.sess))
	assert.Equal(t, models.StateCancelled, e.getEvent(t, stale.ID).State)
}

func TestAutomaton_Idempotent(t *testing.T) {
	e := newTestEnv(t, models.TierFree)
	a := newAutomaton(e)

	m := e.seedEvent(t, e.today(), models.StatePartiallyScheduled, nil)
	require.NoError(t, a.Run(ctx(), e.sess))
	after := e.getEvent(t, m.ID)
	require.Equal(t, models.StateInProgress, after.State)

	require.NoError(t, a.Run(ctx(), e.sess))
	again := e.getEvent(t, m.ID)
	assert.Equal(t, after.State, again.State)
	assert.Equal(t, after.Version, again.Version)
}

func TestAutomaton_NeverTouchesFrozenStates(t *testing.T) {
	e := newTestEnv(t, models.TierFree)
	a := newAutomaton(e)

	frozen := []*models.MarketEvent{
		e.seedEvent(t, "2025-06-01", models.StatePendingBalanceAssignment, nil),
		e.seedEvent(t, "2025-06-01", models.StateClosed, nil),
		e.seedEvent(t, "2025-06-01", models.StateCancelled, nil),
	}
	require.NoError(t, a.Run(ctx(), e.sess))

	for _, m := range frozen {
		got := e.getEvent(t, m.ID)
		assert.Equal(t, m.State, got.State)
		assert.Equal(t, m.Version, got.Version)
	}
}
