package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stallbook/stallbook/internal/common"
	"github.com/stallbook/stallbook/internal/dbx"
	"github.com/stallbook/stallbook/internal/logging"
	"github.com/stallbook/stallbook/internal/models"
	"github.com/stallbook/stallbook/internal/notify"
	"github.com/stallbook/stallbook/internal/remote"
	"github.com/stallbook/stallbook/internal/repositories/balances"
	"github.com/stallbook/stallbook/internal/repositories/events"
	"github.com/stallbook/stallbook/internal/repositories/expenses"
	"github.com/stallbook/stallbook/internal/repositories/sales"
	"github.com/stallbook/stallbook/internal/schedule"
	"github.com/stallbook/stallbook/internal/session"
)

// Engine implements the cash-reconciliation workflow: the cash count that
// closes a session's sales window, and the carryover of its closing balance
// into a future session.
//
// SaveBalance and AssignBalance are not undoable; both demand an explicit
// Confirmed flag and fail with common.ErrConfirmationRequired without it.
type Engine struct {
	db     *sql.DB
	remote remote.Store
	hub    *notify.Hub
	clock  schedule.Clock
	logger logging.Logger
}

func NewEngine(db *sql.DB, rs remote.Store, hub *notify.Hub,
	clock schedule.Clock, logger logging.Logger) *Engine {
	return &Engine{db: db, remote: rs, hub: hub, clock: clock, logger: logger}
}

// ExpectedCash computes the cash the drawer should hold before the count is
// confirmed: opening balance plus cash sales minus cash expenses. Nothing
// is stored; this is the figure the operator compares the physical count
// against.
func (e *Engine) ExpectedCash(ctx context.Context, sess session.Session, eventID string) (int64, error) {
	event, err := e.ownedEvent(ctx, sess, eventID)
	if err != nil {
		return 0, err
	}

	var expected int64
	if event.OpeningBalance != nil {
		expected = *event.OpeningBalance
	}

	receipts, err := sales.NewSQLiteRepository(e.db).ListReceiptsByEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	for _, r := range receipts {
		if r.PaymentMethod == models.PaymentCash {
			expected += r.TotalAmount
		}
	}

	expenseLines, err := expenses.NewSQLiteRepository(e.db).ListByEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	for _, l := range expenseLines {
		if l.PaymentMethod == models.PaymentCash {
			expected -= l.Amount
		}
	}
	return expected, nil
}

// SessionResult computes the session's informational profit figure:
// total sales minus total expenses and the subscription fee. Independent of
// the opening balance.
func (e *Engine) SessionResult(ctx context.Context, sess session.Session, eventID string) (int64, error) {
	event, err := e.ownedEvent(ctx, sess, eventID)
	if err != nil {
		return 0, err
	}
	return event.TotalSales - (event.TotalExpenses + event.SubscriptionFee), nil
}

// ConfirmCashCount persists the counted amount as both cash count result
// and closing balance. A premium owner's event moves to pending balance
// assignment, holding the closing balance for carryover; a free-tier event
// closes outright.
func (e *Engine) ConfirmCashCount(ctx context.Context, sess session.Session, eventID string, countedAmount int64) (*models.MarketEvent, error) {
	if countedAmount < 0 {
		return nil, fmt.Errorf("%w: counted amount must not be negative", common.ErrValidation)
	}

	event, err := e.ownedEvent(ctx, sess, eventID)
	if err != nil {
		return nil, err
	}
	if event.State != models.StatePendingReconciliation {
		return nil, fmt.Errorf("%w: cash count requires a pending-reconciliation event, %s is %s",
			common.ErrState, eventID, event.State)
	}

	event.CashCountResult = &countedAmount
	event.ClosingBalance = &countedAmount
	event.PendingReconciliation = false
	if sess.Premium() {
		event.State = models.StatePendingBalanceAssignment
		event.PendingBalanceAssignment = true
	} else {
		event.State = models.StateClosed
		event.PendingBalanceAssignment = false
	}
	event.Touch(e.clock.Now())

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return events.NewSQLiteRepository(tx).Upsert(ctx, event)
	})
	if err != nil {
		return nil, storageErr(err)
	}

	eventsRepo := events.NewSQLiteRepository(e.db)
	pushRecord(ctx, e.remote, e.logger, string(notify.KindMarketEvents),
		event.ID, event.Version, event.Doc(), eventsRepo.MarkClean)
	e.hub.Publish(notify.KindMarketEvents)
	return event, nil
}

// AdjustedAmount applies an operator-entered withdraw or top-up delta to
// the event's current closing balance, clamped at zero on the low end.
func AdjustedAmount(event *models.MarketEvent, delta int64) int64 {
	var closing int64
	if event.ClosingBalance != nil {
		closing = *event.ClosingBalance
	}
	adjusted := closing + delta
	if adjusted < 0 {
		adjusted = 0
	}
	return adjusted
}

// SaveBalanceInput parameterizes SaveBalance. Confirmed must be set: the
// operation closes the source event for good and, when an unconsumed saved
// balance already exists, replaces it.
type SaveBalanceInput struct {
	EventID        string
	AdjustedAmount int64
	Confirmed      bool
}

// SaveBalance stores the event's adjusted closing balance for a future
// session and closes the event. Any previously saved, still unconsumed
// balance of the owner is invalidated first; at most one unconsumed saved
// balance exists per owner.
func (e *Engine) SaveBalance(ctx context.Context, sess session.Session, in SaveBalanceInput) (*models.SavedBalance, error) {
	if in.AdjustedAmount < 0 {
		return nil, fmt.Errorf("%w: saved balance must not be negative", common.ErrValidation)
	}

	event, err := e.ownedEvent(ctx, sess, in.EventID)
	if err != nil {
		return nil, err
	}
	if event.State != models.StatePendingBalanceAssignment {
		return nil, fmt.Errorf("%w: saving a balance requires state %s, event %s is %s",
			common.ErrState, models.StatePendingBalanceAssignment, in.EventID, event.State)
	}

	previous, err := balances.NewSQLiteRepository(e.db).GetUnconsumedByOwner(ctx, sess.OwnerID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	if !in.Confirmed {
		if previous != nil {
			return nil, fmt.Errorf("%w: saving this balance closes the event for good and replaces the balance saved from event %s",
				common.ErrConfirmationRequired, previous.SourceEventID)
		}
		return nil, fmt.Errorf("%w: saving this balance closes the event for good", common.ErrConfirmationRequired)
	}

	now := e.clock.Now()
	saved := &models.SavedBalance{
		Envelope:      models.NewEnvelope(sess.OwnerID, now),
		Amount:        in.AdjustedAmount,
		SourceEventID: event.ID,
	}
	e.closeSource(event, in.AdjustedAmount, now)

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		balRepo := balances.NewSQLiteRepository(tx)
		if previous != nil {
			previous.Consumed = true
			previous.Touch(now)
			if err := balRepo.Upsert(ctx, previous); err != nil {
				return err
			}
		}
		if err := balRepo.Upsert(ctx, saved); err != nil {
			return err
		}
		return events.NewSQLiteRepository(tx).Upsert(ctx, event)
	})
	if err != nil {
		return nil, storageErr(err)
	}

	balRepo := balances.NewSQLiteRepository(e.db)
	eventsRepo := events.NewSQLiteRepository(e.db)
	if previous != nil {
		pushRecord(ctx, e.remote, e.logger, string(notify.KindSavedBalances),
			previous.ID, previous.Version, previous.Doc(), balRepo.MarkClean)
	}
	pushRecord(ctx, e.remote, e.logger, string(notify.KindSavedBalances),
		saved.ID, saved.Version, saved.Doc(), balRepo.MarkClean)
	pushRecord(ctx, e.remote, e.logger, string(notify.KindMarketEvents),
		event.ID, event.Version, event.Doc(), eventsRepo.MarkClean)
	e.hub.Publish(notify.KindSavedBalances)
	e.hub.Publish(notify.KindMarketEvents)
	return saved, nil
}

// AssignBalanceInput parameterizes AssignBalance. Confirmed acknowledges
// the irreversible close of the source; ConfirmedOverwrite is additionally
// required when the target already carries a non-zero opening balance.
type AssignBalanceInput struct {
	SourceEventID      string
	TargetEventID      string
	AdjustedAmount     int64
	Confirmed          bool
	ConfirmedOverwrite bool
}

// AssignBalance transfers the source event's adjusted closing balance
// directly into a scheduled event's opening balance and closes the source.
// The transfer is recorded as an already-consumed saved balance for audit.
func (e *Engine) AssignBalance(ctx context.Context, sess session.Session, in AssignBalanceInput) error {
	if in.AdjustedAmount < 0 {
		return fmt.Errorf("%w: assigned balance must not be negative", common.ErrValidation)
	}
	if in.SourceEventID == in.TargetEventID {
		return fmt.Errorf("%w: source and target event must differ", common.ErrValidation)
	}

	source, err := e.ownedEvent(ctx, sess, in.SourceEventID)
	if err != nil {
		return err
	}
	if source.State != models.StatePendingBalanceAssignment {
		return fmt.Errorf("%w: assigning a balance requires state %s, event %s is %s",
			common.ErrState, models.StatePendingBalanceAssignment, in.SourceEventID, source.State)
	}
	target, err := e.ownedEvent(ctx, sess, in.TargetEventID)
	if err != nil {
		return err
	}
	if target.State != models.StatePartiallyScheduled && target.State != models.StateFullyScheduled {
		return fmt.Errorf("%w: the target must be a scheduled event, %s is %s",
			common.ErrState, in.TargetEventID, target.State)
	}

	if !in.Confirmed {
		return fmt.Errorf("%w: assigning this balance closes event %s for good",
			common.ErrConfirmationRequired, in.SourceEventID)
	}
	if target.OpeningBalance != nil && *target.OpeningBalance != 0 && !in.ConfirmedOverwrite {
		return fmt.Errorf("%w: event %s already has an opening balance, replacing it cannot be undone",
			common.ErrConfirmationRequired, in.TargetEventID)
	}

	now := e.clock.Now()
	amount := in.AdjustedAmount
	target.OpeningBalance = &amount
	if target.State == models.StatePartiallyScheduled {
		target.State = models.StateFullyScheduled
	}
	target.Touch(now)
	e.closeSource(source, in.AdjustedAmount, now)

	audit := &models.SavedBalance{
		Envelope:      models.NewEnvelope(sess.OwnerID, now),
		Amount:        in.AdjustedAmount,
		SourceEventID: source.ID,
		Consumed:      true,
	}

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		eventsRepo := events.NewSQLiteRepository(tx)
		if err := eventsRepo.Upsert(ctx, target); err != nil {
			return err
		}
		if err := eventsRepo.Upsert(ctx, source); err != nil {
			return err
		}
		return balances.NewSQLiteRepository(tx).Upsert(ctx, audit)
	})
	if err != nil {
		return storageErr(err)
	}

	eventsRepo := events.NewSQLiteRepository(e.db)
	balRepo := balances.NewSQLiteRepository(e.db)
	pushRecord(ctx, e.remote, e.logger, string(notify.KindMarketEvents),
		target.ID, target.Version, target.Doc(), eventsRepo.MarkClean)
	pushRecord(ctx, e.remote, e.logger, string(notify.KindMarketEvents),
		source.ID, source.Version, source.Doc(), eventsRepo.MarkClean)
	pushRecord(ctx, e.remote, e.logger, string(notify.KindSavedBalances),
		audit.ID, audit.Version, audit.Doc(), balRepo.MarkClean)
	e.hub.Publish(notify.KindMarketEvents)
	e.hub.Publish(notify.KindSavedBalances)
	return nil
}

// ApplySavedBalance consumes the owner's pending saved balance into a
// scheduled event's opening balance.
func (e *Engine) ApplySavedBalance(ctx context.Context, sess session.Session, targetEventID string, confirmedOverwrite bool) error {
	saved, err := balances.NewSQLiteRepository(e.db).GetUnconsumedByOwner(ctx, sess.OwnerID)
	if err != nil {
		return err
	}
	target, err := e.ownedEvent(ctx, sess, targetEventID)
	if err != nil {
		return err
	}
	if target.State != models.StatePartiallyScheduled && target.State != models.StateFullyScheduled {
		return fmt.Errorf("%w: the target must be a scheduled event, %s is %s",
			common.ErrState, targetEventID, target.State)
	}
	if target.OpeningBalance != nil && *target.OpeningBalance != 0 && !confirmedOverwrite {
		return fmt.Errorf("%w: event %s already has an opening balance, replacing it cannot be undone",
			common.ErrConfirmationRequired, targetEventID)
	}

	now := e.clock.Now()
	amount := saved.Amount
	target.OpeningBalance = &amount
	if target.State == models.StatePartiallyScheduled {
		target.State = models.StateFullyScheduled
	}
	target.Touch(now)
	saved.Consumed = true
	saved.Touch(now)

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := events.NewSQLiteRepository(tx).Upsert(ctx, target); err != nil {
			return err
		}
		return balances.NewSQLiteRepository(tx).Upsert(ctx, saved)
	})
	if err != nil {
		return storageErr(err)
	}

	eventsRepo := events.NewSQLiteRepository(e.db)
	balRepo := balances.NewSQLiteRepository(e.db)
	pushRecord(ctx, e.remote, e.logger, string(notify.KindMarketEvents),
		target.ID, target.Version, target.Doc(), eventsRepo.MarkClean)
	pushRecord(ctx, e.remote, e.logger, string(notify.KindSavedBalances),
		saved.ID, saved.Version, saved.Doc(), balRepo.MarkClean)
	e.hub.Publish(notify.KindMarketEvents)
	e.hub.Publish(notify.KindSavedBalances)
	return nil
}

// PendingSavedBalance returns the owner's unconsumed saved balance, or
// common.ErrNotFound when none is waiting.
func (e *Engine) PendingSavedBalance(ctx context.Context, sess session.Session) (*models.SavedBalance, error) {
	return balances.NewSQLiteRepository(e.db).GetUnconsumedByOwner(ctx, sess.OwnerID)
}

// closeSource settles a source event with its final closing balance.
func (e *Engine) closeSource(event *models.MarketEvent, closing int64, now time.Time) {
	event.ClosingBalance = &closing
	event.State = models.StateClosed
	event.PendingBalanceAssignment = false
	event.Touch(now)
}

func (e *Engine) ownedEvent(ctx context.Context, sess session.Session, id string) (*models.MarketEvent, error) {
	event, err := events.NewSQLiteRepository(e.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.OwnerID != sess.OwnerID {
		return nil, common.ErrNotFound
	}
	return event, nil
}
