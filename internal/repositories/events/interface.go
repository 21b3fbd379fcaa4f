package events

import (
	"context"

	"github.com/stallbook/stallbook/internal/models"
)

// Repository describes local-store operations for MarketEvent records.
type Repository interface {
	Upsert(ctx context.Context, m *models.MarketEvent) error
	GetByID(ctx context.Context, id string) (*models.MarketEvent, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.MarketEvent, error)

	// ListByOwnerStates returns active events in any of the given states,
	// ordered by date. The lifecycle automaton evaluates states 1..4 only.
	ListByOwnerStates(ctx context.Context, ownerID string, states ...models.MarketEventState) ([]*models.MarketEvent, error)

	ListDirtyByOwner(ctx context.Context, ownerID string) ([]*models.MarketEvent, error)
	MarkClean(ctx context.Context, id string, version int64) error
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
	Delete(ctx context.Context, id string) error
}
