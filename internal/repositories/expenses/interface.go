package expenses

import (
	"context"

	"github.com/stallbook/stallbook/internal/models"
)

// Repository describes local-store operations for ExpenseLine records.
type Repository interface {
	Upsert(ctx context.Context, e *models.ExpenseLine) error
	GetByID(ctx context.Context, id string) (*models.ExpenseLine, error)
	ListByEvent(ctx context.Context, eventID string) ([]*models.ExpenseLine, error)

	// NextLineSeq returns max(existing line numbers for the event)+1.
	NextLineSeq(ctx context.Context, eventID string) (int64, error)

	ListDirtyByOwner(ctx context.Context, ownerID string) ([]*models.ExpenseLine, error)
	MarkClean(ctx context.Context, id string, version int64) error
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
	Delete(ctx context.Context, id string) error
}
