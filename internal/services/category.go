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
	"github.com/stallbook/stallbook/internal/repositories/categories"
	"github.com/stallbook/stallbook/internal/schedule"
	"github.com/stallbook/stallbook/internal/session"
)

// CategoryService owns Category CRUD with sync bookkeeping.
type CategoryService struct {
	db     *sql.DB
	remote remote.Store
	hub    *notify.Hub
	clock  schedule.Clock
	logger logging.Logger
}

func NewCategoryService(db *sql.DB, rs remote.Store, hub *notify.Hub,
	clock schedule.Clock, logger logging.Logger) *CategoryService {
	return &CategoryService{db: db, remote: rs, hub: hub, clock: clock, logger: logger}
}

func (s *CategoryService) validate(name string) error {
	if name == "" {
		return fmt.Errorf("%w: category name is required", common.ErrValidation)
	}
	return nil
}

// Create stores a new category locally and returns it. The remote push is
// best effort.
func (s *CategoryService) Create(ctx context.Context, sess session.Session, name, color string) (*models.Category, error) {
	if err := s.validate(name); err != nil {
		return nil, err
	}

	c := &models.Category{
		Envelope: models.NewEnvelope(sess.OwnerID, s.clock.Now()),
		Name:     name,
		Color:    color,
	}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return categories.NewSQLiteRepository(tx).Upsert(ctx, c)
	})
	if err != nil {
		return nil, storageErr(err)
	}

	repo := categories.NewSQLiteRepository(s.db)
	pushRecord(ctx, s.remote, s.logger, string(notify.KindCategories), c.ID, c.Version, c.Doc(), repo.MarkClean)
	s.hub.Publish(notify.KindCategories)
	return c, nil
}

// Update persists changed attributes of an existing category.
func (s *CategoryService) Update(ctx context.Context, sess session.Session, id, name, color string) (*models.Category, error) {
	if err := s.validate(name); err != nil {
		return nil, err
	}

	repo := categories.NewSQLiteRepository(s.db)
	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != sess.OwnerID {
		return nil, common.ErrNotFound
	}

	c.Name = name
	c.Color = color
	c.Touch(s.clock.Now())
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return categories.NewSQLiteRepository(tx).Upsert(ctx, c)
	})
	if err != nil {
		return nil, storageErr(err)
	}

	pushRecord(ctx, s.remote, s.logger, string(notify.KindCategories), c.ID, c.Version, c.Doc(), repo.MarkClean)
	s.hub.Publish(notify.KindCategories)
	return c, nil
}

// Delete soft-deletes a category. Articles keep their category reference;
// the relation is weak and nothing cascades.
func (s *CategoryService) Delete(ctx context.Context, sess session.Session, id string) error {
	repo := categories.NewSQLiteRepository(s.db)
	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.OwnerID != sess.OwnerID {
		return common.ErrNotFound
	}

	c.Active = false
	c.Touch(s.clock.Now())
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return categories.NewSQLiteRepository(tx).Upsert(ctx, c)
	})
	if err != nil {
		return storageErr(err)
	}

	pushRecord(ctx, s.remote, s.logger, string(notify.KindCategories), c.ID, c.Version, c.Doc(), repo.MarkClean)
	s.hub.Publish(notify.KindCategories)
	return nil
}

func (s *CategoryService) Get(ctx context.Context, sess session.Session, id string) (*models.Category, error) {
	c, err := categories.NewSQLiteRepository(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != sess.OwnerID {
		return nil, common.ErrNotFound
	}
	return c, nil
}

func (s *CategoryService) ListForOwner(ctx context.Context, sess session.Session) ([]*models.Category, error) {
	return categories.NewSQLiteRepository(s.db).ListByOwner(ctx, sess.OwnerID)
}
