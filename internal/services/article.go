package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stallbook/stallbook/internal/common"
	"github.com/stallbook/stallbook/internal/dbx"
	"github.com/stallbook/stallbook/internal/logging"
	"github.com/stallbook/stallbook/internal/models"
	"github.com/stallbook/stallbook/internal/notify"
	"github.com/stallbook/stallbook/internal/remote"
	"github.com/stallbook/stallbook/internal/repositories/articles"
	"github.com/stallbook/stallbook/internal/schedule"
	"github.com/stallbook/stallbook/internal/session"
)

// ArticleService owns Article CRUD with sync bookkeeping.
type ArticleService struct {
	db     *sql.DB
	remote remote.Store
	hub    *notify.Hub
	clock  schedule.Clock
	logger logging.Logger
}

func NewArticleService(db *sql.DB, rs remote.Store, hub *notify.Hub,
	clock schedule.Clock, logger logging.Logger) *ArticleService {
	return &ArticleService{db: db, remote: rs, hub: hub, clock: clock, logger: logger}
}

// ArticleInput carries the caller-editable article attributes. CategoryID
// is a weak reference and is not checked for existence.
type ArticleInput struct {
	Name       string
	CategoryID string
	PriceCents int64
	Notes      string
}

func (in ArticleInput) validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: article name is required", common.ErrValidation)
	}
	if in.PriceCents < 0 {
		return fmt.Errorf("%w: article price must not be negative", common.ErrValidation)
	}
	return nil
}

func (s *ArticleService) Create(ctx context.Context, sess session.Session, in ArticleInput) (*models.Article, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	a := &models.Article{
		Envelope:   models.NewEnvelope(sess.OwnerID, s.clock.Now()),
		Name:       in.Name,
		CategoryID: in.CategoryID,
		PriceCents: in.PriceCents,
		Notes:      in.Notes,
	}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return articles.NewSQLiteRepository(tx).Upsert(ctx, a)
	})
	if err != nil {
		return nil, storageErr(err)
	}

	repo := articles.NewSQLiteRepository(s.db)
	pushRecord(ctx, s.remote, s.logger, string(notify.KindArticles), a.ID, a.Version, a.Doc(), repo.MarkClean)
	s.hub.Publish(notify.KindArticles)
	return a, nil
}

func (s *ArticleService) Update(ctx context.Context, sess session.Session, id string, in ArticleInput) (*models.Article, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	repo := articles.NewSQLiteRepository(s.db)
	a, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.OwnerID != sess.OwnerID {
		return nil, common.ErrNotFound
	}

	a.Name = in.Name
	a.CategoryID = in.CategoryID
	a.PriceCents = in.PriceCents
	a.Notes = in.Notes
	a.Touch(s.clock.Now())
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return articles.NewSQLiteRepository(tx).Upsert(ctx, a)
	})
	if err != nil {
		return nil, storageErr(err)
	}

	pushRecord(ctx, s.remote, s.logger, string(notify.KindArticles), a.ID, a.Version, a.Doc(), repo.MarkClean)
	s.hub.Publish(notify.KindArticles)
	return a, nil
}

func (s *ArticleService) Delete(ctx context.Context, sess session.Session, id string) error {
	repo := articles.NewSQLiteRepository(s.db)
	a, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a.OwnerID != sess.OwnerID {
		return common.ErrNotFound
	}

	a.Active = false
	a.Touch(s.clock.Now())
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return articles.NewSQLiteRepository(tx).Upsert(ctx, a)
	})
	if err != nil {
		return storageErr(err)
	}

	pushRecord(ctx, s.remote, s.logger, string(notify.KindArticles), a.ID, a.Version, a.Doc(), repo.MarkClean)
	s.hub.Publish(notify.KindArticles)
	return nil
}

func (s *ArticleService) Get(ctx context.Context, sess session.Session, id string) (*models.Article, error) {
	a, err := articles.NewSQLiteRepository(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.OwnerID != sess.OwnerID {
		return nil, common.ErrNotFound
	}
	return a, nil
}

func (s *ArticleService) ListForOwner(ctx context.Context, sess session.Session) ([]*models.Article, error) {
	return articles.NewSQLiteRepository(s.db).ListByOwner(ctx, sess.OwnerID)
}
