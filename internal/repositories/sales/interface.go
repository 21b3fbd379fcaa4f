package sales

import (
	"context"

	"github.com/stallbook/stallbook/internal/models"
)

// Repository describes local-store operations for SalesReceipt and
// SalesLine records. Lines live in their own table but are always written
// in the same transaction as their receipt.
type Repository interface {
	UpsertReceipt(ctx context.Context, r *models.SalesReceipt) error
	GetReceiptByID(ctx context.Context, id string) (*models.SalesReceipt, error)
	ListReceiptsByEvent(ctx context.Context, eventID string) ([]*models.SalesReceipt, error)
	ListDirtyReceiptsByOwner(ctx context.Context, ownerID string) ([]*models.SalesReceipt, error)
	MarkReceiptClean(ctx context.Context, id string, version int64) error
	CountReceiptsByOwner(ctx context.Context, ownerID string) (int64, error)
	DeleteReceipt(ctx context.Context, id string) error

	UpsertLine(ctx context.Context, l *models.SalesLine) error
	GetLineByID(ctx context.Context, id string) (*models.SalesLine, error)
	GetLineByEventLineID(ctx context.Context, eventID, lineID string) (*models.SalesLine, error)
	ListLinesByEvent(ctx context.Context, eventID string) ([]*models.SalesLine, error)
	ListLinesByReceipt(ctx context.Context, receiptDocID string) ([]*models.SalesLine, error)
	CountLinesByEvent(ctx context.Context, eventID string) (int64, error)

	// NextLineSeq returns max(existing line ids for the event)+1, computed
	// at write time. Sequences restart at 1 per event and are never reused.
	NextLineSeq(ctx context.Context, eventID string) (int64, error)

	ListDirtyLinesByOwner(ctx context.Context, ownerID string) ([]*models.SalesLine, error)
	MarkLineClean(ctx context.Context, id string, version int64) error
	CountLinesByOwner(ctx context.Context, ownerID string) (int64, error)
}
