package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/stallbook/stallbook/internal/common"
	"github.com/stallbook/stallbook/internal/connectivity"
	"github.com/stallbook/stallbook/internal/logging"
	"github.com/stallbook/stallbook/internal/models"
	"github.com/stallbook/stallbook/internal/notify"
	"github.com/stallbook/stallbook/internal/remote"
	"github.com/stallbook/stallbook/internal/repositories/articles"
	"github.com/stallbook/stallbook/internal/repositories/balances"
	"github.com/stallbook/stallbook/internal/repositories/categories"
	"github.com/stallbook/stallbook/internal/repositories/events"
	"github.com/stallbook/stallbook/internal/repositories/expenses"
	"github.com/stallbook/stallbook/internal/repositories/sales"
	"github.com/stallbook/stallbook/internal/session"
)

// syncRecord is the kind-independent view of one dirty record awaiting its
// remote push.
type syncRecord struct {
	id      string
	version int64
	doc     map[string]any
}

// kindSyncer adapts one entity kind's repository to the coordinator.
type kindSyncer struct {
	kind notify.Kind

	// count counts all local records of the owner, soft-deleted included;
	// the bootstrap gate keys off it.
	count func(ctx context.Context, ownerID string) (int64, error)

	// dirty lists records awaiting push, oldest last_modified first.
	dirty func(ctx context.Context, ownerID string) ([]syncRecord, error)

	// markClean clears the dirty flag if the local version still matches.
	markClean func(ctx context.Context, id string, version int64) error

	// upsertDoc writes a remote document into the local store as-is.
	upsertDoc func(ctx context.Context, doc map[string]any) error

	// localState reports whether the id exists locally and whether it has
	// pending changes; the refresh merge never overwrites a dirty record.
	localState func(ctx context.Context, id string) (exists, dirty bool, err error)
}

// Coordinator orchestrates the replication between the local store and the
// remote document store: flushing dirty records when connectivity returns,
// the one-time bootstrap pull into an empty local store, and the read-path
// refresh merge. All remote failures degrade to "stay dirty, retry later".
type Coordinator struct {
	remote  remote.Store
	monitor *connectivity.Monitor
	hub     *notify.Hub
	limiter *rate.Limiter
	logger  logging.Logger
	kinds   []kindSyncer
}

// NewCoordinator builds the coordinator over all seven entity kinds.
// pushInterval paces record pushes during a flush.
func NewCoordinator(db *sql.DB, rs remote.Store, monitor *connectivity.Monitor,
	hub *notify.Hub, pushInterval time.Duration, logger logging.Logger) *Coordinator {

	limit := rate.Inf
	if pushInterval > 0 {
		limit = rate.Every(pushInterval)
	}
	return &Coordinator{
		remote:  rs,
		monitor: monitor,
		hub:     hub,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		kinds:   buildKindSyncers(db),
	}
}

// Run reacts to connectivity transitions until ctx is done: every
// transition to online triggers a full sync for the session's owner.
func (c *Coordinator) Run(ctx context.Context, sess session.Session) {
	if c.monitor == nil {
		return
	}
	online := c.monitor.Subscribe()
	for {
		select {
		case up := <-online:
			if !up {
				continue
			}
			c.logger.Info(ctx, "online, syncing", "owner", sess.OwnerID)
			if err := c.ForceSync(ctx, sess); err != nil {
				c.logger.Warn(ctx, "sync incomplete", "owner", sess.OwnerID, "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// ForceSync runs a bootstrap pull for every kind the local store holds no
// records of, then flushes all dirty records. Remote failures come back
// wrapped in common.ErrSync; the next connectivity transition retries
// regardless.
func (c *Coordinator) ForceSync(ctx context.Context, sess session.Session) error {
	return errors.Join(c.Bootstrap(ctx, sess), c.Flush(ctx, sess))
}

// Flush pushes every dirty record of every kind, oldest first within a
// kind. Kinds are flushed concurrently; one kind's failure never cancels
// its siblings, so each task captures its own error and the joined result
// is reported at the end.
func (c *Coordinator) Flush(ctx context.Context, sess session.Session) error {
	g, gctx := errgroup.WithContext(ctx)
	errs := make([]error, len(c.kinds))
	for i, ks := range c.kinds {
		i, ks := i, ks
		g.Go(func() error {
			errs[i] = c.flushKind(gctx, sess.OwnerID, ks)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (c *Coordinator) flushKind(ctx context.Context, ownerID string, ks kindSyncer) error {
	records, err := ks.dirty(ctx, ownerID)
	if err != nil {
		c.logger.Error(ctx, "listing dirty records failed", "kind", ks.kind, "error", err)
		return err
	}
	if len(records) == 0 {
		return nil
	}

	c.logger.Debug(ctx, "flushing dirty records", "kind", ks.kind, "count", len(records))
	var failed error
	for _, rec := range records {
		if err := c.limiter.Wait(ctx); err != nil {
			return failed
		}
		if err := c.remote.Set(ctx, string(ks.kind), rec.id, rec.doc, true); err != nil {
			c.logger.Warn(ctx, "push failed, keeping record dirty",
				"kind", ks.kind, "id", rec.id, "error", err)
			failed = syncErr(err)
			if errors.Is(err, remote.ErrUnavailable) {
				return failed
			}
			continue
		}
		if err := ks.markClean(ctx, rec.id, rec.version); err != nil {
			c.logger.Warn(ctx, "could not clear dirty flag",
				"kind", ks.kind, "id", rec.id, "error", err)
		}
	}
	return failed
}

// Bootstrap bulk-pulls each kind from the remote, but only into an empty
// local store: one existing local record of a kind, however stale, vetoes
// the pull for that kind. Remote failures come back wrapped in
// common.ErrSync.
func (c *Coordinator) Bootstrap(ctx context.Context, sess session.Session) error {
	var errs []error
	for _, ks := range c.kinds {
		n, err := ks.count(ctx, sess.OwnerID)
		if err != nil {
			c.logger.Error(ctx, "bootstrap count failed", "kind", ks.kind, "error", err)
			errs = append(errs, err)
			continue
		}
		if n > 0 {
			continue
		}

		docs, err := c.remote.Query(ctx, string(ks.kind), remote.Filter{Field: "owner_id", Value: sess.OwnerID})
		if err != nil {
			c.logger.Warn(ctx, "bootstrap pull failed", "kind", ks.kind, "error", err)
			errs = append(errs, syncErr(err))
			continue
		}
		if len(docs) == 0 {
			continue
		}

		stored := 0
		for _, doc := range docs {
			if err := ks.upsertDoc(ctx, doc); err != nil {
				c.logger.Error(ctx, "bootstrap write failed", "kind", ks.kind, "error", err)
				continue
			}
			stored++
		}
		c.logger.Info(ctx, "bootstrap pull done", "kind", ks.kind, "records", stored)
		if stored > 0 {
			c.hub.Publish(ks.kind)
		}
	}
	return errors.Join(errs...)
}

// Refresh runs the read-path merge for one kind: with any dirty record
// present the local set stands as-is; otherwise remote documents are merged
// in, winning only for ids absent or clean locally.
func (c *Coordinator) Refresh(ctx context.Context, sess session.Session, kind notify.Kind) {
	var ks *kindSyncer
	for i := range c.kinds {
		if c.kinds[i].kind == kind {
			ks = &c.kinds[i]
			break
		}
	}
	if ks == nil {
		return
	}

	dirty, err := ks.dirty(ctx, sess.OwnerID)
	if err != nil || len(dirty) > 0 {
		return
	}
	if c.monitor != nil && !c.monitor.Online() {
		return
	}

	docs, err := c.remote.Query(ctx, string(kind), remote.Filter{Field: "owner_id", Value: sess.OwnerID})
	if err != nil {
		c.logger.Debug(ctx, "refresh pull failed", "kind", kind, "error", err)
		return
	}

	merged := 0
	for _, doc := range docs {
		id, _ := doc["id"].(string)
		if id == "" {
			continue
		}
		exists, isDirty, err := ks.localState(ctx, id)
		if err != nil {
			c.logger.Error(ctx, "refresh local lookup failed", "kind", kind, "id", id, "error", err)
			continue
		}
		if exists && isDirty {
			continue
		}
		if err := ks.upsertDoc(ctx, doc); err != nil {
			c.logger.Error(ctx, "refresh write failed", "kind", kind, "id", id, "error", err)
			continue
		}
		merged++
	}
	if merged > 0 {
		c.hub.Publish(kind)
	}
}

func buildKindSyncers(db *sql.DB) []kindSyncer {
	catRepo := categories.NewSQLiteRepository(db)
	artRepo := articles.NewSQLiteRepository(db)
	eventRepo := events.NewSQLiteRepository(db)
	salesRepo := sales.NewSQLiteRepository(db)
	expRepo := expenses.NewSQLiteRepository(db)
	balRepo := balances.NewSQLiteRepository(db)

	return []kindSyncer{
		{
			kind:  notify.KindCategories,
			count: catRepo.CountByOwner,
			dirty: func(ctx context.Context, ownerID string) ([]syncRecord, error) {
				list, err := catRepo.ListDirtyByOwner(ctx, ownerID)
				if err != nil {
					return nil, err
				}
				records := make([]syncRecord, 0, len(list))
				for _, c := range list {
					records = append(records, syncRecord{id: c.ID, version: c.Version, doc: c.Doc()})
				}
				return records, nil
			},
			markClean: catRepo.MarkClean,
			upsertDoc: func(ctx context.Context, doc map[string]any) error {
				return catRepo.Upsert(ctx, models.CategoryFromDoc(doc))
			},
			localState: func(ctx context.Context, id string) (bool, bool, error) {
				c, err := catRepo.GetByID(ctx, id)
				if errors.Is(err, common.ErrNotFound) {
					return false, false, nil
				}
				if err != nil {
					return false, false, err
				}
				return true, c.Dirty, nil
			},
		},
		{
			kind:  notify.KindArticles,
			count: artRepo.CountByOwner,
			dirty: func(ctx context.Context, ownerID string) ([]syncRecord, error) {
				list, err := artRepo.ListDirtyByOwner(ctx, ownerID)
				if err != nil {
					return nil, err
				}
				records := make([]syncRecord, 0, len(list))
				for _, a := range list {
					records = append(records, syncRecord{id: a.ID, version: a.Version, doc: a.Doc()})
				}
				return records, nil
			},
			markClean: artRepo.MarkClean,
			upsertDoc: func(ctx context.Context, doc map[string]any) error {
				return artRepo.Upsert(ctx, models.ArticleFromDoc(doc))
			},
			localState: func(ctx context.Context, id string) (bool, bool, error) {
				a, err := artRepo.GetByID(ctx, id)
				if errors.Is(err, common.ErrNotFound) {
					return false, false, nil
				}
				if err != nil {
					return false, false, err
				}
				return true, a.Dirty, nil
			},
		},
		{
			kind:  notify.KindMarketEvents,
			count: eventRepo.CountByOwner,
			dirty: func(ctx context.Context, ownerID string) ([]syncRecord, error) {
				list, err := eventRepo.ListDirtyByOwner(ctx, ownerID)
				if err != nil {
					return nil, err
				}
				records := make([]syncRecord, 0, len(list))
				for _, m := range list {
					records = append(records, syncRecord{id: m.ID, version: m.Version, doc: m.Doc()})
				}
				return records, nil
			},
			markClean: eventRepo.MarkClean,
			upsertDoc: func(ctx context.Context, doc map[string]any) error {
				return eventRepo.Upsert(ctx, models.MarketEventFromDoc(doc))
			},
			localState: func(ctx context.Context, id string) (bool, bool, error) {
				m, err := eventRepo.GetByID(ctx, id)
				if errors.Is(err, common.ErrNotFound) {
					return false, false, nil
				}
				if err != nil {
					return false, false, err
				}
				return true, m.Dirty, nil
			},
		},
		{
			kind:  notify.KindSalesReceipts,
			count: salesRepo.CountReceiptsByOwner,
			dirty: func(ctx context.Context, ownerID string) ([]syncRecord, error) {
				list, err := salesRepo.ListDirtyReceiptsByOwner(ctx, ownerID)
				if err != nil {
					return nil, err
				}
				records := make([]syncRecord, 0, len(list))
				for _, r := range list {
					records = append(records, syncRecord{id: r.ID, version: r.Version, doc: r.Doc()})
				}
				return records, nil
			},
			markClean: salesRepo.MarkReceiptClean,
			upsertDoc: func(ctx context.Context, doc map[string]any) error {
				return salesRepo.UpsertReceipt(ctx, models.SalesReceiptFromDoc(doc))
			},
			localState: func(ctx context.Context, id string) (bool, bool, error) {
				r, err := salesRepo.GetReceiptByID(ctx, id)
				if errors.Is(err, common.ErrNotFound) {
					return false, false, nil
				}
				if err != nil {
					return false, false, err
				}
				return true, r.Dirty, nil
			},
		},
		{
			kind:  notify.KindSalesLines,
			count: salesRepo.CountLinesByOwner,
			dirty: func(ctx context.Context, ownerID string) ([]syncRecord, error) {
				list, err := salesRepo.ListDirtyLinesByOwner(ctx, ownerID)
				if err != nil {
					return nil, err
				}
				records := make([]syncRecord, 0, len(list))
				for _, l := range list {
					records = append(records, syncRecord{id: l.ID, version: l.Version, doc: l.Doc()})
				}
				return records, nil
			},
			markClean: salesRepo.MarkLineClean,
			upsertDoc: func(ctx context.Context, doc map[string]any) error {
				return salesRepo.UpsertLine(ctx, models.SalesLineFromDoc(doc))
			},
			localState: func(ctx context.Context, id string) (bool, bool, error) {
				doc, err := salesRepo.GetLineByID(ctx, id)
				if errors.Is(err, common.ErrNotFound) {
					return false, false, nil
				}
				if err != nil {
					return false, false, err
				}
				return true, doc.Dirty, nil
			},
		},
		{
			kind:  notify.KindExpenseLines,
			count: expRepo.CountByOwner,
			dirty: func(ctx context.Context, ownerID string) ([]syncRecord, error) {
				list, err := expRepo.ListDirtyByOwner(ctx, ownerID)
				if err != nil {
					return nil, err
				}
				records := make([]syncRecord, 0, len(list))
				for _, l := range list {
					records = append(records, syncRecord{id: l.ID, version: l.Version, doc: l.Doc()})
				}
				return records, nil
			},
			markClean: expRepo.MarkClean,
			upsertDoc: func(ctx context.Context, doc map[string]any) error {
				return expRepo.Upsert(ctx, models.ExpenseLineFromDoc(doc))
			},
			localState: func(ctx context.Context, id string) (bool, bool, error) {
				l, err := expRepo.GetByID(ctx, id)
				if errors.Is(err, common.ErrNotFound) {
					return false, false, nil
				}
				if err != nil {
					return false, false, err
				}
				return true, l.Dirty, nil
			},
		},
		{
			kind:  notify.KindSavedBalances,
			count: balRepo.CountByOwner,
			dirty: func(ctx context.Context, ownerID string) ([]syncRecord, error) {
				list, err := balRepo.ListDirtyByOwner(ctx, ownerID)
				if err != nil {
					return nil, err
				}
				records := make([]syncRecord, 0, len(list))
				for _, b := range list {
					records = append(records, syncRecord{id: b.ID, version: b.Version, doc: b.Doc()})
				}
				return records, nil
			},
			markClean: balRepo.MarkClean,
			upsertDoc: func(ctx context.Context, doc map[string]any) error {
				return balRepo.Upsert(ctx, models.SavedBalanceFromDoc(doc))
			},
			localState: func(ctx context.Context, id string) (bool, bool, error) {
				b, err := balRepo.GetByID(ctx, id)
				if errors.Is(err, common.ErrNotFound) {
					return false, false, nil
				}
				if err != nil {
					return false, false, err
				}
				return true, b.Dirty, nil
			},
		},
	}
}
