package categories

import (
	"context"

	"github.com/stallbook/stallbook/internal/models"
)

// Repository describes local-store operations for Category records.
// Implementations are backed by the local SQLite database; mutation methods
// persist whatever envelope state the caller prepared (services own the
// version/dirty bookkeeping).
type Repository interface {
	// Upsert inserts or replaces a category row by id.
	Upsert(ctx context.Context, c *models.Category) error

	// GetByID returns a category or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Category, error)

	// ListByOwner returns all active categories of an owner.
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Category, error)

	// ListDirtyByOwner returns records awaiting remote push, oldest
	// last_modified first. Soft-deleted records are included so their
	// deactivation also reaches the remote.
	ListDirtyByOwner(ctx context.Context, ownerID string) ([]*models.Category, error)

	// MarkClean clears the dirty flag, but only while the stored version
	// still matches the pushed one; a newer local edit stays dirty.
	MarkClean(ctx context.Context, id string, version int64) error

	// CountByOwner counts all records of the owner, soft-deleted included.
	// The sync coordinator's bootstrap-pull gate relies on this.
	CountByOwner(ctx context.Context, ownerID string) (int64, error)

	// Delete removes the row from the local store (used after the remote
	// delete has been attempted).
	Delete(ctx context.Context, id string) error
}
