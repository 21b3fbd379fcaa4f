package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stallbook/stallbook/internal/common"
	"github.com/stallbook/stallbook/internal/dbx"
	"github.com/stallbook/stallbook/internal/ids"
	"github.com/stallbook/stallbook/internal/logging"
	"github.com/stallbook/stallbook/internal/models"
	"github.com/stallbook/stallbook/internal/notify"
	"github.com/stallbook/stallbook/internal/remote"
	"github.com/stallbook/stallbook/internal/repositories/events"
	"github.com/stallbook/stallbook/internal/repositories/sales"
	"github.com/stallbook/stallbook/internal/schedule"
	"github.com/stallbook/stallbook/internal/session"
)

// SalesService records sales against in-progress market events: receipts
// with their lines, refunds and voids. Refunds and voids never delete or
// renumber anything; they append balance-reversing lines with fresh ids.
type SalesService struct {
	db     *sql.DB
	remote remote.Store
	hub    *notify.Hub
	clock  schedule.Clock
	logger logging.Logger
}

func NewSalesService(db *sql.DB, rs remote.Store, hub *notify.Hub,
	clock schedule.Clock, logger logging.Logger) *SalesService {
	return &SalesService{db: db, remote: rs, hub: hub, clock: clock, logger: logger}
}

// ReceiptLineInput is one line of a sale being recorded.
type ReceiptLineInput struct {
	ArticleID   string
	Description string
	Quantity    int64
	UnitPrice   int64 // cents
}

// ReceiptInput is a complete sale transaction.
type ReceiptInput struct {
	EventID       string
	PaymentMethod models.PaymentMethod
	Lines         []ReceiptLineInput
}

func (in ReceiptInput) validate() error {
	if !in.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", common.ErrValidation, in.PaymentMethod)
	}
	if len(in.Lines) == 0 {
		return fmt.Errorf("%w: a receipt needs at least one line", common.ErrValidation)
	}
	for i, l := range in.Lines {
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: line %d: quantity must be positive", common.ErrValidation, i+1)
		}
		if l.UnitPrice < 0 {
			return fmt.Errorf("%w: line %d: unit price must not be negative", common.ErrValidation, i+1)
		}
	}
	return nil
}

// CreateReceipt records one completed sale: the receipt, its lines with
// per-event sequential ids, and the event's running sales total, all in one
// local transaction. Line ids continue from the event's current maximum.
func (s *SalesService) CreateReceipt(ctx context.Context, sess session.Session, in ReceiptInput) (*models.SalesReceipt, []*models.SalesLine, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}

	event, err := s.inProgressEvent(ctx, sess, in.EventID)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now()
	var total int64
	for _, l := range in.Lines {
		total += l.Quantity * l.UnitPrice
	}

	receipt := &models.SalesReceipt{
		Envelope:      models.NewEnvelope(sess.OwnerID, now),
		EventID:       event.ID,
		ReceiptID:     ids.NewReceiptID(now.In(s.clock.Zone()), sess.Locale),
		PaymentMethod: in.PaymentMethod,
		TotalAmount:   total,
		Status:        models.ReceiptCompleted,
	}

	var lines []*models.SalesLine
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		salesRepo := sales.NewSQLiteRepository(tx)
		seq, err := salesRepo.NextLineSeq(ctx, event.ID)
		if err != nil {
			return err
		}
		if err := salesRepo.UpsertReceipt(ctx, receipt); err != nil {
			return err
		}
		for i, l := range in.Lines {
			line := &models.SalesLine{
				Envelope:     models.NewEnvelope(sess.OwnerID, now),
				EventID:      event.ID,
				ReceiptDocID: receipt.ID,
				LineID:       ids.FormatLineSeq(seq + int64(i)),
				ArticleID:    l.ArticleID,
				Description:  l.Description,
				Quantity:     l.Quantity,
				UnitPrice:    l.UnitPrice,
				Subtotal:     l.Quantity * l.UnitPrice,
			}
			if err := salesRepo.UpsertLine(ctx, line); err != nil {
				return err
			}
			lines = append(lines, line)
		}

		event.TotalSales += total
		event.Touch(now)
		return events.NewSQLiteRepository(tx).Upsert(ctx, event)
	})
	if err != nil {
		return nil, nil, storageErr(err)
	}

	s.pushSale(ctx, receipt, lines, event)
	return receipt, lines, nil
}

// RefundLine reverses one sold line: a new line with the next sequential id,
// negated quantity and subtotal, and a back-reference to the original. The
// original line is never touched.
func (s *SalesService) RefundLine(ctx context.Context, sess session.Session, eventID, lineID string) (*models.SalesLine, error) {
	event, err := s.inProgressEvent(ctx, sess, eventID)
	if err != nil {
		return nil, err
	}

	readRepo := sales.NewSQLiteRepository(s.db)
	original, err := readRepo.GetLineByEventLineID(ctx, eventID, lineID)
	if err != nil {
		return nil, err
	}
	if original.RefundedLineID != "" {
		return nil, fmt.Errorf("%w: line %s is itself a refund", common.ErrValidation, lineID)
	}
	existing, err := readRepo.ListLinesByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	for _, l := range existing {
		if l.RefundedLineID == lineID {
			return nil, fmt.Errorf("%w: line %s is already refunded", common.ErrValidation, lineID)
		}
	}

	now := s.clock.Now()
	refund := &models.SalesLine{
		Envelope:       models.NewEnvelope(sess.OwnerID, now),
		EventID:        eventID,
		ReceiptDocID:   original.ReceiptDocID,
		ArticleID:      original.ArticleID,
		Description:    original.Description,
		Quantity:       -original.Quantity,
		UnitPrice:      original.UnitPrice,
		Subtotal:       -original.Subtotal,
		RefundedLineID: lineID,
	}

	var receipt *models.SalesReceipt
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		salesRepo := sales.NewSQLiteRepository(tx)
		seq, err := salesRepo.NextLineSeq(ctx, eventID)
		if err != nil {
			return err
		}
		refund.LineID = ids.FormatLineSeq(seq)
		if err := salesRepo.UpsertLine(ctx, refund); err != nil {
			return err
		}

		receipt, err = salesRepo.GetReceiptByID(ctx, original.ReceiptDocID)
		if err != nil {
			return err
		}
		receipt.TotalAmount -= original.Subtotal
		receipt.Touch(now)
		if err := salesRepo.UpsertReceipt(ctx, receipt); err != nil {
			return err
		}

		event.TotalSales -= original.Subtotal
		event.Touch(now)
		return events.NewSQLiteRepository(tx).Upsert(ctx, event)
	})
	if err != nil {
		return nil, storageErr(err)
	}

	s.pushSale(ctx, receipt, []*models.SalesLine{refund}, event)
	return refund, nil
}

// VoidReceipt reverses every remaining line of a receipt and marks it
// voided. The content stays as balance-reversing new lines, not deletions.
func (s *SalesService) VoidReceipt(ctx context.Context, sess session.Session, receiptDocID string) error {
	readRepo := sales.NewSQLiteRepository(s.db)
	receipt, err := readRepo.GetReceiptByID(ctx, receiptDocID)
	if err != nil {
		return err
	}
	if receipt.OwnerID != sess.OwnerID {
		return common.ErrNotFound
	}
	if receipt.Status == models.ReceiptVoided {
		return fmt.Errorf("%w: receipt %s is already voided", common.ErrValidation, receiptDocID)
	}

	event, err := s.inProgressEvent(ctx, sess, receipt.EventID)
	if err != nil {
		return err
	}

	receiptLines, err := readRepo.ListLinesByReceipt(ctx, receiptDocID)
	if err != nil {
		return err
	}
	eventLines, err := readRepo.ListLinesByEvent(ctx, event.ID)
	if err != nil {
		return err
	}
	refunded := make(map[string]bool)
	for _, l := range eventLines {
		if l.RefundedLineID != "" {
			refunded[l.RefundedLineID] = true
		}
	}

	now := s.clock.Now()
	var reversals []*models.SalesLine
	var reversedTotal int64
	for _, l := range receiptLines {
		if l.RefundedLineID != "" || refunded[l.LineID] {
			continue
		}
		reversals = append(reversals, &models.SalesLine{
			Envelope:       models.NewEnvelope(sess.OwnerID, now),
			EventID:        event.ID,
			ReceiptDocID:   receiptDocID,
			ArticleID:      l.ArticleID,
			Description:    l.Description,
			Quantity:       -l.Quantity,
			UnitPrice:      l.UnitPrice,
			Subtotal:       -l.Subtotal,
			RefundedLineID: l.LineID,
		})
		reversedTotal += l.Subtotal
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		salesRepo := sales.NewSQLiteRepository(tx)
		seq, err := salesRepo.NextLineSeq(ctx, event.ID)
		if err != nil {
			return err
		}
		for i, r := range reversals {
			r.LineID = ids.FormatLineSeq(seq + int64(i))
			if err := salesRepo.UpsertLine(ctx, r); err != nil {
				return err
			}
		}

		receipt.TotalAmount -= reversedTotal
		receipt.Status = models.ReceiptVoided
		receipt.Touch(now)
		if err := salesRepo.UpsertReceipt(ctx, receipt); err != nil {
			return err
		}

		event.TotalSales -= reversedTotal
		event.Touch(now)
		return events.NewSQLiteRepository(tx).Upsert(ctx, event)
	})
	if err != nil {
		return storageErr(err)
	}

	s.pushSale(ctx, receipt, reversals, event)
	return nil
}

func (s *SalesService) ListReceipts(ctx context.Context, sess session.Session, eventID string) ([]*models.SalesReceipt, error) {
	if _, err := s.ownedEvent(ctx, sess, eventID); err != nil {
		return nil, err
	}
	return sales.NewSQLiteRepository(s.db).ListReceiptsByEvent(ctx, eventID)
}

func (s *SalesService) ListLines(ctx context.Context, sess session.Session, eventID string) ([]*models.SalesLine, error) {
	if _, err := s.ownedEvent(ctx, sess, eventID); err != nil {
		return nil, err
	}
	return sales.NewSQLiteRepository(s.db).ListLinesByEvent(ctx, eventID)
}

func (s *SalesService) ownedEvent(ctx context.Context, sess session.Session, eventID string) (*models.MarketEvent, error) {
	event, err := events.NewSQLiteRepository(s.db).GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OwnerID != sess.OwnerID {
		return nil, common.ErrNotFound
	}
	return event, nil
}

func (s *SalesService) inProgressEvent(ctx context.Context, sess session.Session, eventID string) (*models.MarketEvent, error) {
	event, err := s.ownedEvent(ctx, sess, eventID)
	if err != nil {
		return nil, err
	}
	if event.State != models.StateInProgress {
		return nil, fmt.Errorf("%w: event %s is %s, sales are recordable only in progress", common.ErrState, eventID, event.State)
	}
	return event, nil
}

// pushSale flushes a committed sale mutation opportunistically: the receipt,
// its new lines and the owning event.
func (s *SalesService) pushSale(ctx context.Context, receipt *models.SalesReceipt, lines []*models.SalesLine, event *models.MarketEvent) {
	salesRepo := sales.NewSQLiteRepository(s.db)
	eventsRepo := events.NewSQLiteRepository(s.db)

	pushRecord(ctx, s.remote, s.logger, string(notify.KindSalesReceipts), receipt.ID, receipt.Version, receipt.Doc(), salesRepo.MarkReceiptClean)
	for _, l := range lines {
		pushRecord(ctx, s.remote, s.logger, string(notify.KindSalesLines), l.ID, l.Version, l.Doc(), salesRepo.MarkLineClean)
	}
	pushRecord(ctx, s.remote, s.logger, string(notify.KindMarketEvents), event.ID, event.Version, event.Doc(), eventsRepo.MarkClean)

	s.hub.Publish(notify.KindSalesReceipts)
	s.hub.Publish(notify.KindSalesLines)
	s.hub.Publish(notify.KindMarketEvents)
}
