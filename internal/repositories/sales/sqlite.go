// Package sales provides the SQLite-backed repository for sales receipts
// and their lines.
package sales

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stallbook/stallbook/internal/common"
	"github.com/stallbook/stallbook/internal/dbx"
	"github.com/stallbook/stallbook/internal/models"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const receiptColumns = `id, owner_id, event_id, receipt_id, payment_method, total_amount, status,
	version, last_modified, is_dirty, is_active`

const lineColumns = `id, owner_id, event_id, receipt_doc_id, line_id, article_id, description,
	quantity, unit_price, subtotal, refunded_line_id,
	version, last_modified, is_dirty, is_active`

func scanReceipt(row interface{ Scan(...any) error }) (*models.SalesReceipt, error) {
	r := &models.SalesReceipt{}
	err := row.Scan(&r.ID, &r.OwnerID, &r.EventID, &r.ReceiptID, &r.PaymentMethod,
		&r.TotalAmount, &r.Status, &r.Version, &r.LastModified, &r.Dirty, &r.Active)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func scanLine(row interface{ Scan(...any) error }) (*models.SalesLine, error) {
	l := &models.SalesLine{}
	err := row.Scan(&l.ID, &l.OwnerID, &l.EventID, &l.ReceiptDocID, &l.LineID,
		&l.ArticleID, &l.Description, &l.Quantity, &l.UnitPrice, &l.Subtotal,
		&l.RefundedLineID, &l.Version, &l.LastModified, &l.Dirty, &l.Active)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *SQLiteRepository) UpsertReceipt(ctx context.Context, r *models.SalesReceipt) error {
	query := `INSERT INTO sales_receipts (` + receiptColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payment_method = excluded.payment_method,
			total_amount = excluded.total_amount,
			status = excluded.status,
			version = excluded.version,
			last_modified = excluded.last_modified,
			is_dirty = excluded.is_dirty,
			is_active = excluded.is_active`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.OwnerID, r.EventID, r.ReceiptID, r.PaymentMethod, r.TotalAmount, r.Status,
		r.Version, r.LastModified, r.Dirty, r.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert sales receipt: %w", err)
	}
	return nil
}

func (s *SQLiteRepository) GetReceiptByID(ctx context.Context, id string) (*models.SalesReceipt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+receiptColumns+` FROM sales_receipts WHERE id=?`, id)
	r, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sales receipt: %w", err)
	}
	return r, nil
}

func (s *SQLiteRepository) ListReceiptsByEvent(ctx context.Context, eventID string) ([]*models.SalesReceipt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+receiptColumns+` FROM sales_receipts WHERE event_id=? AND is_active=1 ORDER BY last_modified`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to select sales receipts: %w", err)
	}
	return collectReceipts(rows)
}

func (s *SQLiteRepository) ListDirtyReceiptsByOwner(ctx context.Context, ownerID string) ([]*models.SalesReceipt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+receiptColumns+` FROM sales_receipts WHERE owner_id=? AND is_dirty=1 ORDER BY last_modified`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select dirty sales receipts: %w", err)
	}
	return collectReceipts(rows)
}

func (s *SQLiteRepository) MarkReceiptClean(ctx context.Context, id string, version int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sales_receipts SET is_dirty=0 WHERE id=? AND version=?`, id, version)
	if err != nil {
		return fmt.Errorf("failed to mark sales receipt clean: %w", err)
	}
	return nil
}

func (s *SQLiteRepository) CountReceiptsByOwner(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sales_receipts WHERE owner_id=?`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sales receipts: %w", err)
	}
	return n, nil
}

func (s *SQLiteRepository) DeleteReceipt(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sales_receipts WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sales receipt: %w", err)
	}
	return nil
}

func (s *SQLiteRepository) UpsertLine(ctx context.Context, l *models.SalesLine) error {
	query := `INSERT INTO sales_lines (` + lineColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			quantity = excluded.quantity,
			unit_price = excluded.unit_price,
			subtotal = excluded.subtotal,
			refunded_line_id = excluded.refunded_line_id,
			version = excluded.version,
			last_modified = excluded.last_modified,
			is_dirty = excluded.is_dirty,
			is_active = excluded.is_active`
	_, err := s.db.ExecContext(ctx, query,
		l.ID, l.OwnerID, l.EventID, l.ReceiptDocID, l.LineID, l.ArticleID, l.Description,
		l.Quantity, l.UnitPrice, l.Subtotal, l.RefundedLineID,
		l.Version, l.LastModified, l.Dirty, l.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert sales line: %w", err)
	}
	return nil
}

func (s *SQLiteRepository) GetLineByID(ctx context.Context, id string) (*models.SalesLine, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+lineColumns+` FROM sales_lines WHERE id=?`, id)
	l, err := scanLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sales line: %w", err)
	}
	return l, nil
}

func (s *SQLiteRepository) GetLineByEventLineID(ctx context.Context, eventID, lineID string) (*models.SalesLine, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+lineColumns+` FROM sales_lines WHERE event_id=? AND line_id=?`, eventID, lineID)
	l, err := scanLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sales line: %w", err)
	}
	return l, nil
}

func (s *SQLiteRepository) ListLinesByEvent(ctx context.Context, eventID string) ([]*models.SalesLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+lineColumns+` FROM sales_lines WHERE event_id=? AND is_active=1 ORDER BY line_id`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to select sales lines: %w", err)
	}
	return collectLines(rows)
}

func (s *SQLiteRepository) ListLinesByReceipt(ctx context.Context, receiptDocID string) ([]*models.SalesLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+lineColumns+` FROM sales_lines WHERE receipt_doc_id=? AND is_active=1 ORDER BY line_id`,
		receiptDocID)
	if err != nil {
		return nil, fmt.Errorf("failed to select sales lines: %w", err)
	}
	return collectLines(rows)
}

func (s *SQLiteRepository) CountLinesByEvent(ctx context.Context, eventID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sales_lines WHERE event_id=?`, eventID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sales lines: %w", err)
	}
	return n, nil
}

func (s *SQLiteRepository) NextLineSeq(ctx context.Context, eventID string) (int64, error) {
	// line_id is zero-padded text; cast for a numeric max. Voided and
	// refunded lines still occupy their number.
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(CAST(line_id AS INTEGER)) FROM sales_lines WHERE event_id=?`, eventID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next line sequence: %w", err)
	}
	return max.Int64 + 1, nil
}

func (s *SQLiteRepository) ListDirtyLinesByOwner(ctx context.Context, ownerID string) ([]*models.SalesLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+lineColumns+` FROM sales_lines WHERE owner_id=? AND is_dirty=1 ORDER BY last_modified`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select dirty sales lines: %w", err)
	}
	return collectLines(rows)
}

func (s *SQLiteRepository) MarkLineClean(ctx context.Context, id string, version int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sales_lines SET is_dirty=0 WHERE id=? AND version=?`, id, version)
	if err != nil {
		return fmt.Errorf("failed to mark sales line clean: %w", err)
	}
	return nil
}

func (s *SQLiteRepository) CountLinesByOwner(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sales_lines WHERE owner_id=?`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sales lines: %w", err)
	}
	return n, nil
}

func collectReceipts(rows *sql.Rows) ([]*models.SalesReceipt, error) {
	defer rows.Close()
	var result []*models.SalesReceipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func collectLines(rows *sql.Rows) ([]*models.SalesLine, error) {
	defer rows.Close()
	var result []*models.SalesLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
