// Package balances provides the SQLite-backed repository for SavedBalance
// records.
package balances

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

const balanceColumns = `id, owner_id, amount, source_event_id, consumed,
	version, last_modified, is_dirty, is_active`

func scanBalance(row interface{ Scan(...any) error }) (*models.SavedBalance, error) {
	b := &models.SavedBalance{}
	err := row.Scan(&b.ID, &b.OwnerID, &b.Amount, &b.SourceEventID, &b.Consumed,
		&b.Version, &b.LastModified, &b.Dirty, &b.Active)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, b *models.SavedBalance) error {
	query := `INSERT INTO saved_balances (` + balanceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			consumed = excluded.consumed,
			version = excluded.version,
			last_modified = excluded.last_modified,
			is_dirty = excluded.is_dirty,
			is_active = excluded.is_active`
	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.OwnerID, b.Amount, b.SourceEventID, b.Consumed,
		b.Version, b.LastModified, b.Dirty, b.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert saved balance: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.SavedBalance, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+balanceColumns+` FROM saved_balances WHERE id=?`, id)
	b, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get saved balance: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) GetUnconsumedByOwner(ctx context.Context, ownerID string) (*models.SavedBalance, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+balanceColumns+` FROM saved_balances
		 WHERE owner_id=? AND consumed=0 AND is_active=1
		 ORDER BY last_modified DESC LIMIT 1`, ownerID)
	b, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get unconsumed balance: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.SavedBalance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+balanceColumns+` FROM saved_balances WHERE owner_id=? AND is_active=1 ORDER BY last_modified DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select saved balances: %w", err)
	}
	return collectBalances(rows)
}

func (r *SQLiteRepository) ListDirtyByOwner(ctx context.Context, ownerID string) ([]*models.SavedBalance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+balanceColumns+` FROM saved_balances WHERE owner_id=? AND is_dirty=1 ORDER BY last_modified`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select dirty saved balances: %w", err)
	}
	return collectBalances(rows)
}

func (r *SQLiteRepository) MarkClean(ctx context.Context, id string, version int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE saved_balances SET is_dirty=0 WHERE id=? AND version=?`, id, version)
	if err != nil {
		return fmt.Errorf("failed to mark saved balance clean: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM saved_balances WHERE owner_id=?`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count saved balances: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM saved_balances WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete saved balance: %w", err)
	}
	return nil
}

func collectBalances(rows *sql.Rows) ([]*models.SavedBalance, error) {
	defer rows.Close()
	var result []*models.SavedBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
