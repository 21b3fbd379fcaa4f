// Package stallbook is the local-first bookkeeping core for market-stall
// vendors: sessions ("market events") with sales, expenses and a closing
// cash reconciliation, fully usable offline and reconciled opportunistically
// with a remote document store.
//
// The package exposes a library API for an embedding presentation layer:
// entity services for CRUD, the lifecycle automaton, the reconciliation
// engine and the sync coordinator, wired together by App.
package stallbook

import (
	"context"
	"database/sql"

	"github.com/stallbook/stallbook/internal/config"
	"github.com/stallbook/stallbook/internal/connectivity"
	"github.com/stallbook/stallbook/internal/logging"
	"github.com/stallbook/stallbook/internal/models"
	"github.com/stallbook/stallbook/internal/notify"
	"github.com/stallbook/stallbook/internal/remote"
	"github.com/stallbook/stallbook/internal/schedule"
	"github.com/stallbook/stallbook/internal/services"
	"github.com/stallbook/stallbook/internal/session"
	"github.com/stallbook/stallbook/internal/store"
)

// Session re-exports the caller context threaded through every operation.
type Session = session.Session

// Kind re-exports the entity kinds used for change notifications.
type Kind = notify.Kind

const (
	KindCategories    = notify.KindCategories
	KindArticles      = notify.KindArticles
	KindMarketEvents  = notify.KindMarketEvents
	KindSalesReceipts = notify.KindSalesReceipts
	KindSalesLines    = notify.KindSalesLines
	KindExpenseLines  = notify.KindExpenseLines
	KindSavedBalances = notify.KindSavedBalances
)

// App wires the whole core: local store, remote adapter, connectivity
// monitor, entity services, sync coordinator, lifecycle automaton and
// reconciliation engine.
type App struct {
	cfg    *config.Config
	db     *sql.DB
	remote remote.Store
	hub    *notify.Hub
	clock  schedule.Clock
	logger logging.Logger

	monitor     *connectivity.Monitor
	coordinator *services.Coordinator
	automaton   *services.Automaton
	engine      *services.Engine

	Categories *services.CategoryService
	Articles   *services.ArticleService
	Events     *services.EventService
	Sales      *services.SalesService
	Expenses   *services.ExpenseService
}

// New opens the local database, runs migrations and wires every component.
// The remote store is the HTTP/JSON adapter at cfg.RemoteEndpoint.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	rs := remote.NewHTTPStore(cfg.RemoteEndpoint, cfg.RemoteAPIKey, cfg.RemoteTimeout)
	return NewWithRemote(ctx, cfg, rs, logger)
}

// NewWithRemote wires the core around a caller-supplied remote adapter
// (the Postgres adapter, or an in-memory store in tests).
func NewWithRemote(ctx context.Context, cfg *config.Config, rs remote.Store, logger logging.Logger) (*App, error) {
	db, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	clock, err := schedule.NewRealClock(cfg.TimeZone)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	hub := notify.NewHub()
	monitor := connectivity.NewMonitor(rs, cfg.OnlineCheckInterval, logger)

	return &App{
		cfg:         cfg,
		db:          db,
		remote:      rs,
		hub:         hub,
		clock:       clock,
		logger:      logger,
		monitor:     monitor,
		coordinator: services.NewCoordinator(db, rs, monitor, hub, cfg.SyncPushInterval, logger),
		automaton:   services.NewAutomaton(db, rs, hub, clock, logger),
		engine:      services.NewEngine(db, rs, hub, clock, logger),
		Categories:  services.NewCategoryService(db, rs, hub, clock, logger),
		Articles:    services.NewArticleService(db, rs, hub, clock, logger),
		Events:      services.NewEventService(db, rs, hub, clock, logger),
		Sales:       services.NewSalesService(db, rs, hub, clock, logger),
		Expenses:    services.NewExpenseService(db, rs, hub, clock, logger),
	}, nil
}

// SessionFromToken builds a Session from the auth provider's JWT using the
// configured signing key.
func (a *App) SessionFromToken(token string) (Session, error) {
	return session.FromToken(token, a.cfg.AuthSigningKey)
}

// RunLifecycleAutomaton re-evaluates all of the owner's scheduled events
// once. Safe to call at any time; concurrent runs for the same owner
// short-circuit.
func (a *App) RunLifecycleAutomaton(ctx context.Context, sess Session) error {
	return a.automaton.Run(ctx, sess)
}

// ExpectedCash returns the cash the drawer should hold before the count.
func (a *App) ExpectedCash(ctx context.Context, sess Session, eventID string) (int64, error) {
	return a.engine.ExpectedCash(ctx, sess, eventID)
}

// SessionResult returns the session's profit figure.
func (a *App) SessionResult(ctx context.Context, sess Session, eventID string) (int64, error) {
	return a.engine.SessionResult(ctx, sess, eventID)
}

// ConfirmCashCount settles an event's cash count.
func (a *App) ConfirmCashCount(ctx context.Context, sess Session, eventID string, countedAmount int64) (*models.MarketEvent, error) {
	return a.engine.ConfirmCashCount(ctx, sess, eventID, countedAmount)
}

// SaveBalance stores an event's adjusted closing balance for later and
// closes the event.
func (a *App) SaveBalance(ctx context.Context, sess Session, in services.SaveBalanceInput) (*models.SavedBalance, error) {
	return a.engine.SaveBalance(ctx, sess, in)
}

// AssignBalance transfers a closing balance into a scheduled event.
func (a *App) AssignBalance(ctx context.Context, sess Session, in services.AssignBalanceInput) error {
	return a.engine.AssignBalance(ctx, sess, in)
}

// ApplySavedBalance consumes the pending saved balance into a scheduled
// event's opening balance.
func (a *App) ApplySavedBalance(ctx context.Context, sess Session, targetEventID string, confirmedOverwrite bool) error {
	return a.engine.ApplySavedBalance(ctx, sess, targetEventID, confirmedOverwrite)
}

// PendingSavedBalance returns the owner's unconsumed saved balance, if any.
func (a *App) PendingSavedBalance(ctx context.Context, sess Session) (*models.SavedBalance, error) {
	return a.engine.PendingSavedBalance(ctx, sess)
}

// ForceSync bootstraps empty kinds from the remote and flushes all dirty
// records now, instead of waiting for the next connectivity transition.
// Remote failures come back wrapped in common.ErrSync.
func (a *App) ForceSync(ctx context.Context, sess Session) error {
	return a.coordinator.ForceSync(ctx, sess)
}

// Refresh runs the read-path merge for one entity kind.
func (a *App) Refresh(ctx context.Context, sess Session, kind Kind) {
	a.coordinator.Refresh(ctx, sess, kind)
}

// Notifications returns a coalescing signal channel for one entity kind.
func (a *App) Notifications(kind Kind) <-chan struct{} {
	return a.hub.Subscribe(kind)
}

// Online reports the last observed remote reachability.
func (a *App) Online() bool {
	return a.monitor.Online()
}

// StartBackground launches the background tasks for a signed-in owner:
// the connectivity watcher, the online-triggered sync and the daily
// lifecycle triggers. They stop when ctx is cancelled.
func (a *App) StartBackground(ctx context.Context, sess Session) error {
	sched, err := schedule.NewScheduler(a.clock, a.cfg.LifecycleTriggerTimes, func(ctx context.Context) {
		if err := a.automaton.Run(ctx, sess); err != nil {
			a.logger.Error(ctx, "scheduled lifecycle run failed", "error", err)
		}
	}, a.logger)
	if err != nil {
		return err
	}

	go a.monitor.Run(ctx)
	go a.coordinator.Run(ctx, sess)
	go sched.Run(ctx)

	// settle states straight away rather than waiting for the first trigger
	sched.RunNow()
	return nil
}

// Close releases the local database.
func (a *App) Close() error {
	return a.db.Close()
}
