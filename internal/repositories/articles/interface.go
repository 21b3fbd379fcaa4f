package articles

import (
	"context"

	"github.com/stallbook/stallbook/internal/models"
)

// Repository describes local-store operations for Article records.
type Repository interface {
	Upsert(ctx context.Context, a *models.Article) error
	GetByID(ctx context.Context, id string) (*models.Article, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Article, error)
	ListDirtyByOwner(ctx context.Context, ownerID string) ([]*models.Article, error)
	MarkClean(ctx context.Context, id string, version int64) error
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
	Delete(ctx context.Context, id string) error
}
