package balances

import (
	"context"

	"github.com/stallbook/stallbook/internal/models"
)

// Repository describes local-store operations for SavedBalance records.
type Repository interface {
	Upsert(ctx context.Context, b *models.SavedBalance) error
	GetByID(ctx context.Context, id string) (*models.SavedBalance, error)

	// GetUnconsumedByOwner returns the owner's single unconsumed balance, or
	// common.ErrNotFound. The invariant "at most one unconsumed per owner"
	// is maintained by the reconciliation engine, not here.
	GetUnconsumedByOwner(ctx context.Context, ownerID string) (*models.SavedBalance, error)

	ListByOwner(ctx context.Context, ownerID string) ([]*models.SavedBalance, error)
	ListDirtyByOwner(ctx context.Context, ownerID string) ([]*models.SavedBalance, error)
	MarkClean(ctx context.Context, id string, version int64) error
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
	Delete(ctx context.Context, id string) error
}
