package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stallbook/stallbook/internal/common"
	"github.com/stallbook/stallbook/internal/dbx"
	"github.com/stallbook/stallbook/internal/ids"
	"github.com/stallbook/stallbook/internal/logging"
	"github.com/stallbook/stallbook/internal/models"
	"github.com/stallbook/stallbook/internal/notify"
	"github.com/stallbook/stallbook/internal/remote"
	"github.com/stallbook/stallbook/internal/repositories/events"
	"github.com/stallbook/stallbook/internal/repositories/expenses"
	"github.com/stallbook/stallbook/internal/schedule"
	"github.com/stallbook/stallbook/internal/session"
)

// ExpenseService records expenses against in-progress market events.
type ExpenseService struct {
	db     *sql.DB
	remote remote.Store
	hub    *notify.Hub
	clock  schedule.Clock
	logger logging.Logger
}

func NewExpenseService(db *sql.DB, rs remote.Store, hub *notify.Hub,
	clock schedule.Clock, logger logging.Logger) *ExpenseService {
	return &ExpenseService{db: db, remote: rs, hub: hub, clock: clock, logger: logger}
}

// Add records one expense line against the event, with the next sequential
// line number, and bumps the event's running expense total.
func (s *ExpenseService) Add(ctx context.Context, sess session.Session, eventID, concept string, amount int64, method models.PaymentMethod) (*models.ExpenseLine, error) {
	if concept == "" {
		return nil, fmt.Errorf("%w: expense concept is required", common.ErrValidation)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: expense amount must be positive", common.ErrValidation)
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", common.ErrValidation, method)
	}

	event, err := s.inProgressEvent(ctx, sess, eventID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	line := &models.ExpenseLine{
		Envelope:      models.NewEnvelope(sess.OwnerID, now),
		EventID:       eventID,
		Concept:       concept,
		Amount:        amount,
		PaymentMethod: method,
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		expRepo := expenses.NewSQLiteRepository(tx)
		seq, err := expRepo.NextLineSeq(ctx, eventID)
		if err != nil {
			return err
		}
		line.LineNumber = ids.FormatLineSeq(seq)
		if err := expRepo.Upsert(ctx, line); err != nil {
			return err
		}

		event.TotalExpenses += amount
		event.Touch(now)
		return events.NewSQLiteRepository(tx).Upsert(ctx, event)
	})
	if err != nil {
		return nil, storageErr(err)
	}

	s.push(ctx, line, event)
	return line, nil
}

// Remove soft-deletes an expense line and takes its amount back out of the
// event's running total. The line number is never reused.
func (s *ExpenseService) Remove(ctx context.Context, sess session.Session, id string) error {
	line, err := expenses.NewSQLiteRepository(s.db).GetByID(ctx, id)
	if err != nil {
		return err
	}
	if line.OwnerID != sess.OwnerID {
		return common.ErrNotFound
	}
	if !line.Active {
		return fmt.Errorf("%w: expense line %s is already deleted", common.ErrValidation, id)
	}

	event, err := s.inProgressEvent(ctx, sess, line.EventID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	line.Active = false
	line.Touch(now)
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := expenses.NewSQLiteRepository(tx).Upsert(ctx, line); err != nil {
			return err
		}
		event.TotalExpenses -= line.Amount
		event.Touch(now)
		return events.NewSQLiteRepository(tx).Upsert(ctx, event)
	})
	if err != nil {
		return storageErr(err)
	}

	s.push(ctx, line, event)
	return nil
}

func (s *ExpenseService) ListForEvent(ctx context.Context, sess session.Session, eventID string) ([]*models.ExpenseLine, error) {
	event, err := events.NewSQLiteRepository(s.db).GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OwnerID != sess.OwnerID {
		return nil, common.ErrNotFound
	}
	return expenses.NewSQLiteRepository(s.db).ListByEvent(ctx, eventID)
}

func (s *ExpenseService) inProgressEvent(ctx context.Context, sess session.Session, eventID string) (*models.MarketEvent, error) {
	event, err := events.NewSQLiteRepository(s.db).GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OwnerID != sess.OwnerID {
		return nil, common.ErrNotFound
	}
	if event.State != models.StateInProgress {
		return nil, fmt.Errorf("%w: event %s is %s, expenses are recordable only in progress", common.ErrState, eventID, event.State)
	}
	return event, nil
}

func (s *ExpenseService) push(ctx context.Context, line *models.ExpenseLine, event *models.MarketEvent) {
	expRepo := expenses.NewSQLiteRepository(s.db)
	eventsRepo := events.NewSQLiteRepository(s.db)

	pushRecord(ctx, s.remote, s.logger, string(notify.KindExpenseLines), line.ID, line.Version, line.Doc(), expRepo.MarkClean)
	pushRecord(ctx, s.remote, s.logger, string(notify.KindMarketEvents), event.ID, event.Version, event.Doc(), eventsRepo.MarkClean)

	s.hub.Publish(notify.KindExpenseLines)
	s.hub.Publish(notify.KindMarketEvents)
}
