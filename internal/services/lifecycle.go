package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/stallbook/stallbook/internal/dbx"
	"github.com/stallbook/stallbook/internal/logging"
	"github.com/stallbook/stallbook/internal/models"
	"github.com/stallbook/stallbook/internal/notify"
	"github.com/stallbook/stallbook/internal/remote"
	"github.com/stallbook/stallbook/internal/repositories/events"
	"github.com/stallbook/stallbook/internal/repositories/sales"
	"github.com/stallbook/stallbook/internal/schedule"
	"github.com/stallbook/stallbook/internal/session"
)

// Automaton re-evaluates the lifecycle state of every scheduled market
// event of an owner against the current wall-clock instant.
//
// Time-driven transitions only: scheduled events enter progress when their
// day arrives, in-progress events past their window become pending
// reconciliation when they saw sales, or cancelled when they saw none.
// Records at pending-balance-assignment or beyond are frozen here; only the
// explicit reconciliation operations move them.
//
// A run is idempotent and non-reentrant per owner: a second run requested
// while one is still evaluating the same owner's events short-circuits.
type Automaton struct {
	db     *sql.DB
	remote remote.Store
	hub    *notify.Hub
	clock  schedule.Clock
	logger logging.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewAutomaton(db *sql.DB, rs remote.Store, hub *notify.Hub,
	clock schedule.Clock, logger logging.Logger) *Automaton {
	return &Automaton{
		db:       db,
		remote:   rs,
		hub:      hub,
		clock:    clock,
		logger:   logger,
		inFlight: make(map[string]bool),
	}
}

// Run evaluates all of the owner's non-terminal scheduled events once.
// Returns immediately when a run for the same owner is already in flight.
func (a *Automaton) Run(ctx context.Context, sess session.Session) error {
	a.mu.Lock()
	if a.inFlight[sess.OwnerID] {
		a.mu.Unlock()
		a.logger.Debug(ctx, "lifecycle run already in flight, skipping", "owner", sess.OwnerID)
		return nil
	}
	a.inFlight[sess.OwnerID] = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.inFlight, sess.OwnerID)
		a.mu.Unlock()
	}()

	eventsRepo := events.NewSQLiteRepository(a.db)
	candidates, err := eventsRepo.ListByOwnerStates(ctx, sess.OwnerID,
		models.StatePartiallyScheduled, models.StateFullyScheduled, models.StateInProgress)
	if err != nil {
		return err
	}

	now := a.clock.Now().In(a.clock.Zone())
	changed := false
	for _, event := range candidates {
		next, err := a.evaluate(ctx, event, now)
		if err != nil {
			a.logger.Error(ctx, "lifecycle evaluation failed",
				"event", event.ID, "error", err)
			continue
		}
		if next == event.State {
			continue
		}

		a.logger.Info(ctx, "lifecycle transition",
			"event", event.ID, "from", event.State.String(), "to", next.String())
		event.State = next
		event.PendingReconciliation = next == models.StatePendingReconciliation
		event.Touch(a.clock.Now())
		err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return events.NewSQLiteRepository(tx).Upsert(ctx, event)
		})
		if err != nil {
			a.logger.Error(ctx, "lifecycle transition write failed",
				"event", event.ID, "error", err)
			continue
		}
		pushRecord(ctx, a.remote, a.logger, string(notify.KindMarketEvents),
			event.ID, event.Version, event.Doc(), eventsRepo.MarkClean)
		changed = true
	}

	if changed {
		a.hub.Publish(notify.KindMarketEvents)
	}
	return nil
}

// evaluate computes the state an event should hold at instant now. One run
// may carry an event through more than one rule: a scheduled event whose
// window already elapsed while the process was off goes straight to its
// settled state.
func (a *Automaton) evaluate(ctx context.Context, event *models.MarketEvent, now time.Time) (models.MarketEventState, error) {
	windowStart, windowEnd, err := eventWindow(event.Date, a.clock.Zone())
	if err != nil {
		return event.State, err
	}

	state := event.State
	if (state == models.StatePartiallyScheduled || state == models.StateFullyScheduled) &&
		!now.Before(windowStart) {
		state = models.StateInProgress
	}
	if state == models.StateInProgress && !now.Before(windowEnd) {
		n, err := sales.NewSQLiteRepository(a.db).CountLinesByEvent(ctx, event.ID)
		if err != nil {
			return event.State, err
		}
		if n > 0 {
			state = models.StatePendingReconciliation
		} else {
			// no activity at all; the record is auto-cancelled but stays active
			state = models.StateCancelled
		}
	}
	return state, nil
}
