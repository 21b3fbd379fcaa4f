// Package expenses provides the SQLite-backed repository for ExpenseLine
// records.
package expenses

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

const expenseColumns = `id, owner_id, event_id, line_number, concept, amount, payment_method,
	version, last_modified, is_dirty, is_active`

func scanExpense(row interface{ Scan(...any) error }) (*models.ExpenseLine, error) {
	e := &models.ExpenseLine{}
	err := row.Scan(&e.ID, &e.OwnerID, &e.EventID, &e.LineNumber, &e.Concept,
		&e.Amount, &e.PaymentMethod, &e.Version, &e.LastModified, &e.Dirty, &e.Active)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, e *models.ExpenseLine) error {
	query := `INSERT INTO expense_lines (` + expenseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			concept = excluded.concept,
			amount = excluded.amount,
			payment_method = excluded.payment_method,
			version = excluded.version,
			last_modified = excluded.last_modified,
			is_dirty = excluded.is_dirty,
			is_active = excluded.is_active`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.OwnerID, e.EventID, e.LineNumber, e.Concept, e.Amount, e.PaymentMethod,
		e.Version, e.LastModified, e.Dirty, e.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert expense line: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.ExpenseLine, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expense_lines WHERE id=?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense line: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) ListByEvent(ctx context.Context, eventID string) ([]*models.ExpenseLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expense_lines WHERE event_id=? AND is_active=1 ORDER BY line_number`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to select expense lines: %w", err)
	}
	return collectExpenses(rows)
}

func (r *SQLiteRepository) NextLineSeq(ctx context.Context, eventID string) (int64, error) {
	var max sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(CAST(line_number AS INTEGER)) FROM expense_lines WHERE event_id=?`, eventID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next expense sequence: %w", err)
	}
	return max.Int64 + 1, nil
}

func (r *SQLiteRepository) ListDirtyByOwner(ctx context.Context, ownerID string) ([]*models.ExpenseLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expense_lines WHERE owner_id=? AND is_dirty=1 ORDER BY last_modified`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select dirty expense lines: %w", err)
	}
	return collectExpenses(rows)
}

func (r *SQLiteRepository) MarkClean(ctx context.Context, id string, version int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE expense_lines SET is_dirty=0 WHERE id=? AND version=?`, id, version)
	if err != nil {
		return fmt.Errorf("failed to mark expense line clean: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM expense_lines WHERE owner_id=?`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count expense lines: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM expense_lines WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense line: %w", err)
	}
	return nil
}

func collectExpenses(rows *sql.Rows) ([]*models.ExpenseLine, error) {
	defer rows.Close()
	var result []*models.ExpenseLine
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
