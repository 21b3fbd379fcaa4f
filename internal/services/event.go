package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stallbook/stallbook/internal/common"
	"github.com/stallbook/stallbook/internal/dbx"
	"github.com/stallbook/stallbook/internal/logging"
	"github.com/stallbook/stallbook/internal/models"
	"github.com/stallbook/stallbook/internal/notify"
	"github.com/stallbook/stallbook/internal/remote"
	"github.com/stallbook/stallbook/internal/repositories/events"
	"github.com/stallbook/stallbook/internal/schedule"
	"github.com/stallbook/stallbook/internal/session"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	// windowCloseHour is the local hour on the day after the event at which
	// its sales window ends and reconciliation becomes due.
	windowCloseHour = 5
)

// eventWindow returns the [start, end) activity window of an event day:
// event-day 00:00 up to next-day 05:00 in the given zone.
func eventWindow(date string, loc *time.Location) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: bad event date %q", common.ErrValidation, date)
	}
	start := day
	end := day.AddDate(0, 0, 1).Add(windowCloseHour * time.Hour)
	return start, end, nil
}

// EventService owns MarketEvent CRUD. Lifecycle transitions driven by the
// clock live in the Automaton; reconciliation operations in the Engine.
type EventService struct {
	db     *sql.DB
	remote remote.Store
	hub    *notify.Hub
	clock  schedule.Clock
	logger logging.Logger
}

func NewEventService(db *sql.DB, rs remote.Store, hub *notify.Hub,
	clock schedule.Clock, logger logging.Logger) *EventService {
	return &EventService{db: db, remote: rs, hub: hub, clock: clock, logger: logger}
}

// EventInput carries the caller-editable scheduling attributes.
type EventInput struct {
	Date            string // "YYYY-MM-DD"
	Place           string
	Organizer       string
	FreeEntry       bool
	SubscriptionFee int64
	StartTime       string // "HH:MM", optional
	EndTime         string // "HH:MM", optional
}

func (in EventInput) validate() error {
	if _, err := time.Parse(dateLayout, in.Date); err != nil {
		return fmt.Errorf("%w: event date must be YYYY-MM-DD, got %q", common.ErrValidation, in.Date)
	}
	if in.Place == "" {
		return fmt.Errorf("%w: event place is required", common.ErrValidation)
	}
	if in.SubscriptionFee < 0 {
		return fmt.Errorf("%w: subscription fee must not be negative", common.ErrValidation)
	}
	if in.FreeEntry && in.SubscriptionFee != 0 {
		return fmt.Errorf("%w: a free-entry event cannot carry a subscription fee", common.ErrValidation)
	}
	for _, tm := range []string{in.StartTime, in.EndTime} {
		if tm == "" {
			continue
		}
		if _, err := time.Parse(timeLayout, tm); err != nil {
			return fmt.Errorf("%w: event time must be HH:MM, got %q", common.ErrValidation, tm)
		}
	}
	return nil
}

// Create schedules a new market event. An event dated today starts directly
// in progress; a future one starts partially scheduled until an opening
// balance is assigned.
func (s *EventService) Create(ctx context.Context, sess session.Session, in EventInput) (*models.MarketEvent, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now().In(s.clock.Zone())
	state := models.StatePartiallyScheduled
	if in.Date == now.Format(dateLayout) {
		state = models.StateInProgress
	}

	m := &models.MarketEvent{
		Envelope:        models.NewEnvelope(sess.OwnerID, s.clock.Now()),
		Date:            in.Date,
		Place:           in.Place,
		Organizer:       in.Organizer,
		FreeEntry:       in.FreeEntry,
		SubscriptionFee: in.SubscriptionFee,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		State:           state,
	}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return events.NewSQLiteRepository(tx).Upsert(ctx, m)
	})
	if err != nil {
		return nil, storageErr(err)
	}

	repo := events.NewSQLiteRepository(s.db)
	pushRecord(ctx, s.remote, s.logger, string(notify.KindMarketEvents), m.ID, m.Version, m.Doc(), repo.MarkClean)
	s.hub.Publish(notify.KindMarketEvents)
	return m, nil
}

// UpdateDetails edits the scheduling attributes of an event that has not
// reached reconciliation yet.
func (s *EventService) UpdateDetails(ctx context.Context, sess session.Session, id string, in EventInput) (*models.MarketEvent, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	m, err := s.ownedEvent(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if m.State != models.StatePartiallyScheduled &&
		m.State != models.StateFullyScheduled &&
		m.State != models.StateInProgress {
		return nil, fmt.Errorf("%w: event %s is %s", common.ErrState, id, m.State)
	}

	m.Date = in.Date
	m.Place = in.Place
	m.Organizer = in.Organizer
	m.FreeEntry = in.FreeEntry
	m.SubscriptionFee = in.SubscriptionFee
	m.StartTime = in.StartTime
	m.EndTime = in.EndTime
	if err := s.save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// SetOpeningBalance assigns the cash float an event starts with. A
// partially scheduled event becomes fully scheduled. Changing the opening
// balance of an event already in progress rewrites the basis of its cash
// count, so it demands an explicit confirmation.
func (s *EventService) SetOpeningBalance(ctx context.Context, sess session.Session, id string, amount int64, confirmed bool) (*models.MarketEvent, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: opening balance must not be negative", common.ErrValidation)
	}

	m, err := s.ownedEvent(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	switch m.State {
	case models.StatePartiallyScheduled, models.StateFullyScheduled:
	case models.StateInProgress:
		if !confirmed {
			return nil, fmt.Errorf("%w: changing the opening balance of an in-progress event", common.ErrConfirmationRequired)
		}
	default:
		return nil, fmt.Errorf("%w: event %s is %s", common.ErrState, id, m.State)
	}

	m.OpeningBalance = &amount
	if m.State == models.StatePartiallyScheduled {
		m.State = models.StateFullyScheduled
	}
	if err := s.save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete soft-deletes an event. Terminal records stay untouched except for
// this flag flip; an event already closed or cancelled keeps its figures.
func (s *EventService) Delete(ctx context.Context, sess session.Session, id string) error {
	m, err := s.ownedEvent(ctx, sess, id)
	if err != nil {
		return err
	}
	m.Active = false
	return s.save(ctx, m)
}

func (s *EventService) Get(ctx context.Context, sess session.Session, id string) (*models.MarketEvent, error) {
	return s.ownedEvent(ctx, sess, id)
}

func (s *EventService) ListForOwner(ctx context.Context, sess session.Session) ([]*models.MarketEvent, error) {
	return events.NewSQLiteRepository(s.db).ListByOwner(ctx, sess.OwnerID)
}

func (s *EventService) ownedEvent(ctx context.Context, sess session.Session, id string) (*models.MarketEvent, error) {
	m, err := events.NewSQLiteRepository(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.OwnerID != sess.OwnerID {
		return nil, common.ErrNotFound
	}
	return m, nil
}

func (s *EventService) save(ctx context.Context, m *models.MarketEvent) error {
	m.Touch(s.clock.Now())
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return events.NewSQLiteRepository(tx).Upsert(ctx, m)
	})
	if err != nil {
		return storageErr(err)
	}

	repo := events.NewSQLiteRepository(s.db)
	pushRecord(ctx, s.remote, s.logger, string(notify.KindMarketEvents), m.ID, m.Version, m.Doc(), repo.MarkClean)
	s.hub.Publish(notify.KindMarketEvents)
	return nil
}
