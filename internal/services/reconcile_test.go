package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stallbook/stallbook/internal/common"
	"github.com/stallbook/stallbook/internal/models"
	"github.com/stallbook/stallbook/internal/repositories/balances"
	"github.com/stallbook/stallbook/internal/repositories/expenses"
	"github.com/stallbook/stallbook/internal/repositories/sales"
)

func newEngine(e *testEnv) *Engine {
	return NewEngine(e.db, e.remote, e.hub, e.clock, e.logger)
}

// seedCashActivity plants a cash receipt and a cash expense without going
// through the services, so the event can be in any state.
func (e *testEnv) seedCashActivity(t *testing.T, eventID string, cashSales, cashExpenses int64) {
	t.Helper()
	if cashSales != 0 {
		r := &models.SalesReceipt{
			Envelope:      models.NewEnvelope(e.sess.OwnerID, e.clock.Now()),
			EventID:       eventID,
			ReceiptID:     "100000ESAAAA",
			PaymentMethod: models.PaymentCash,
			TotalAmount:   cashSales,
			Status:        models.ReceiptCompleted,
		}
		require.NoError(t, sales.NewSQLiteRepository(e.db).UpsertReceipt(ctx(), r))
	}
	if cashExpenses != 0 {
		l := &models.ExpenseLine{
			Envelope:      models.NewEnvelope(e.sess.OwnerID, e.clock.Now()),
			EventID:       eventID,
			LineNumber:    "0001",
			Concept:       "pitch fee",
			Amount:        cashExpenses,
			PaymentMethod: models.PaymentCash,
		}
		require.NoError(t, expenses.NewSQLiteRepository(e.db).Upsert(ctx(), l))
	}
}

func TestExpectedCash(t *testing.T) {
	e := newTestEnv(t, models.TierFree)
	eng := newEngine(e)

	event := e.seedEvent(t, "2025-06-01", models.StatePendingReconciliation, func(m *models.MarketEvent) {
		m.OpeningBalance = i64(10000)
	})
	e.seedCashActivity(t, event.ID, 5000, 2000)

	// card sales never enter the cash drawer
	card := &models.SalesReceipt{
		Envelope:      models.NewEnvelope(e.sess.OwnerID, e.clock.Now()),
		EventID:       event.ID,
		ReceiptID:     "100100ESBBBB",
		PaymentMethod: models.PaymentCard,
		TotalAmount:   9999,
		Status:        models.ReceiptCompleted,
	}
	require.NoError(t, sales.NewSQLiteRepository(e.db).UpsertReceipt(ctx(), card))

	expected, err := eng.ExpectedCash(ctx(), e.sess, event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(13000), expected)
}

func TestSessionResult(t *testing.T) {
	e := newTestEnv(t, models.TierFree)
	eng := newEngine(e)

	event := e.seedEvent(t, "2025-06-01", models.StatePendingReconciliation, func(m *models.MarketEvent) {
		m.TotalSales = 14999
		m.TotalExpenses = 2300
		m.SubscriptionFee = 1500
	})

	result, err := eng.SessionResult(ctx(), e.sess, event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(11199), result)
}

func TestConfirmCashCount_FreeTierClosesOutright(t *testing.T) {
	e := newTestEnv(t, models.TierFree)
	eng := newEngine(e)

	event := e.seedEvent(t, "2025-06-01", models.StatePendingReconciliation, func(m *models.MarketEvent) {
		m.OpeningBalance = i64(10000)
		m.PendingReconciliation = true
	})
	e.seedCashActivity(t, event.ID, 5000, 2000)

	got, err := eng.ConfirmCashCount(ctx(), e.sess, event.ID, 13000)
	require.NoError(t, err)
	assert.Equal(t, models.StateClosed, got.State)
	require.NotNil(t, got.CashCountResult)
	assert.Equal(t, int64(13000), *got.CashCountResult)
	require.NotNil(t, got.ClosingBalance)
	assert.Equal(t, int64(13000), *got.ClosingBalance)
	assert.False(t, got.PendingReconciliation)
	assert.False(t, got.PendingBalanceAssignment)
}

func TestConfirmCashCount_PremiumHoldsBalance(t *testing.T) {
	e := newTestEnv(t, models.TierPremium)
	eng := newEngine(e)

	event := e.seedEvent(t, "2025-06-01", models.StatePendingReconciliation, nil)
	got, err := eng.ConfirmCashCount(ctx(), e.sess, event.ID, 13000)
	require.NoError(t, err)
	assert.Equal(t, models.StatePendingBalanceAssignment, got.State)
	assert.True(t, got.PendingBalanceAssignment)
}

func TestConfirmCashCount_StateGuard(t *testing.T) {
	e := newTestEnv(t, models.TierFree)
	eng := newEngine(e)

	event := e.seedEvent(t, e.today(), models.StateInProgress, nil)
	_, err := eng.ConfirmCashCount(ctx(), e.sess, event.ID, 1000)
	assert.ErrorIs(t, err, common.ErrState)

	_, err = eng.ConfirmCashCount(ctx(), e.sess, event.ID, -1)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestAdjustedAmount_ClampsAtZero(t *testing.T) {
	m := &models.MarketEvent{ClosingBalance: i64(5000)}
	assert.Equal(t, int64(3000), AdjustedAmount(m, -2000))
	assert.Equal(t, int64(6500), AdjustedAmount(m, 1500))
	assert.Equal(t, int64(0), AdjustedAmount(m, -9000))
	assert.Equal(t, int64(0), AdjustedAmount(&models.MarketEvent{}, -100))
}

func TestSaveBalance_RequiresConfirmation(t *testing.T) {
	e := newTestEnv(t, models.TierPremium)
	eng := newEngine(e)

	event := e.seedEvent(t, "2025-06-01", models.StatePendingBalanceAssignment, func(m *models.MarketEvent) {
		m.ClosingBalance = i64(13000)
	})

	_, err := eng.SaveBalance(ctx(), e.sess, SaveBalanceInput{EventID: event.ID, AdjustedAmount: 13000})
	assert.ErrorIs(t, err, common.ErrConfirmationRequired)
}

func TestSaveBalance_ClosesSourceAndReplacesPrevious(t *testing.T) {
	e := newTestEnv(t, models.TierPremium)
	eng := newEngine(e)

	first := e.seedEvent(t, "2025-05-01", models.StatePendingBalanceAssignment, func(m *models.MarketEvent) {
		m.ClosingBalance = i64(8000)
	})
	saved, err := eng.SaveBalance(ctx(), e.sess, SaveBalanceInput{EventID: first.ID, AdjustedAmount: 8000, Confirmed: true})
	require.NoError(t, err)
	assert.Equal(t, int64(8000), saved.Amount)
	assert.Equal(t, first.ID, saved.SourceEventID)

	closed := e.getEvent(t, first.ID)
	assert.Equal(t, models.StateClosed, closed.State)
	assert.Equal(t, int64(8000), *closed.ClosingBalance)

	// a second save replaces the first unconsumed balance
	second := e.seedEvent(t, "2025-06-01", models.StatePendingBalanceAssignment, func(m *models.MarketEvent) {
		m.ClosingBalance = i64(13000)
	})
	replacement, err := eng.SaveBalance(ctx(), e.sess, SaveBalanceInput{EventID: second.ID, AdjustedAmount: 12000, Confirmed: true})
	require.NoError(t, err)

	balRepo := balances.NewSQLiteRepository(e.db)
	pending, err := balRepo.GetUnconsumedByOwner(ctx(), e.sess.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, replacement.ID, pending.ID)
	assert.Equal(t, int64(12000), pending.Amount)

	old, err := balRepo.GetByID(ctx(), saved.ID)
	require.NoError(t, err)
	assert.True(t, old.Consumed)
}

func TestSaveBalance_StateGuard(t *testing.T) {
	e := newTestEnv(t, models.TierPremium)
	eng := newEngine(e)

	event := e.seedEvent(t, "2025-06-01", models.StatePendingReconciliation, nil)
	_, err := eng.SaveBalance(ctx(), e.sess, SaveBalanceInput{EventID: event.ID, AdjustedAmount: 100, Confirmed: true})
	assert.ErrorIs(t, err, common.ErrState)
}

func TestAssignBalance_TransfersToFreshTarget(t *testing.T) {
	e := newTestEnv(t, models.TierPremium)
	eng := newEngine(e)

	source := e.seedEvent(t, "2025-06-01", models.StatePendingBalanceAssignment, func(m *models.MarketEvent) {
		m.ClosingBalance = i64(13000)
	})
	target := e.seedEvent(t, "2025-06-14", models.StatePartiallyScheduled, nil)

	err := eng.AssignBalance(ctx(), e.sess, AssignBalanceInput{
		SourceEventID: source.ID, TargetEventID: target.ID, AdjustedAmount: 12500,
	})
	assert.ErrorIs(t, err, common.ErrConfirmationRequired)

	err = eng.AssignBalance(ctx(), e.sess, AssignBalanceInput{
		SourceEventID: source.ID, TargetEventID: target.ID, AdjustedAmount: 12500, Confirmed: true,
	})
	require.NoError(t, err)

	gotTarget := e.getEvent(t, target.ID)
	require.NotNil(t, gotTarget.OpeningBalance)
	assert.Equal(t, int64(12500), *gotTarget.OpeningBalance)
	assert.Equal(t, models.StateFullyScheduled, gotTarget.State)

	gotSource := e.getEvent(t, source.ID)
	assert.Equal(t, models.StateClosed, gotSource.State)
	assert.Equal(t, int64(12500), *gotSource.ClosingBalance)

	// the transfer leaves no balance waiting
	_, err = balances.NewSQLiteRepository(e.db).GetUnconsumedByOwner(ctx(), e.sess.OwnerID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAssignBalance_OverwriteNeedsStrongerConfirmation(t *testing.T) {
	e := newTestEnv(t, models.TierPremium)
	eng := newEngine(e)

	source := e.seedEvent(t, "2025-06-01", models.StatePendingBalanceAssignment, func(m *models.MarketEvent) {
		m.ClosingBalance = i64(13000)
	})
	target := e.seedEvent(t, "2025-06-14", models.StateFullyScheduled, func(m *models.MarketEvent) {
		m.OpeningBalance = i64(4000)
	})

	err := eng.AssignBalance(ctx(), e.sess, AssignBalanceInput{
		SourceEventID: source.ID, TargetEventID: target.ID, AdjustedAmount: 13000, Confirmed: true,
	})
	assert.ErrorIs(t, err, common.ErrConfirmationRequired)

	err = eng.AssignBalance(ctx(), e.sess, AssignBalanceInput{
		SourceEventID: source.ID, TargetEventID: target.ID, AdjustedAmount: 13000,
		Confirmed: true, ConfirmedOverwrite: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(13000), *e.getEvent(t, target.ID).OpeningBalance)
}

func TestApplySavedBalance_ConsumesIntoTarget(t *testing.T) {
	e := newTestEnv(t, models.TierPremium)
	eng := newEngine(e)

	source := e.seedEvent(t, "2025-06-01", models.StatePendingBalanceAssignment, func(m *models.MarketEvent) {
		m.ClosingBalance = i64(9000)
	})
	saved, err := eng.SaveBalance(ctx(), e.sess, SaveBalanceInput{EventID: source.ID, AdjustedAmount: 9000, Confirmed: true})
	require.NoError(t, err)

	target := e.seedEvent(t, "2025-06-14", models.StatePartiallyScheduled, nil)
	require.NoError(t, eng.ApplySavedBalance(ctx(), e.sess, target.ID, false))

	gotTarget := e.getEvent(t, target.ID)
	require.NotNil(t, gotTarget.OpeningBalance)
	assert.Equal(t, int64(9000), *gotTarget.OpeningBalance)
	assert.Equal(t, models.StateFullyScheduled, gotTarget.State)

	consumed, err := balances.NewSQLiteRepository(e.db).GetByID(ctx(), saved.ID)
	require.NoError(t, err)
	assert.True(t, consumed.Consumed)

	_, err = eng.PendingSavedBalance(ctx(), e.sess)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
