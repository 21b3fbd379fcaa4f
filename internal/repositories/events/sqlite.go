// Package events provides the SQLite-backed repository for MarketEvent
// records, the session aggregate of the system.
package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

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

const eventColumns = `id, owner_id, date, place, organizer, free_entry, subscription_fee,
	start_time, end_time, state, opening_balance, closing_balance, cash_count_result,
	total_sales, total_expenses, pending_reconciliation, pending_balance_assignment,
	version, last_modified, is_dirty, is_active`

func scanEvent(row interface{ Scan(...any) error }) (*models.MarketEvent, error) {
	m := &models.MarketEvent{}
	var opening, closing, counted sql.NullInt64
	err := row.Scan(&m.ID, &m.OwnerID, &m.Date, &m.Place, &m.Organizer,
		&m.FreeEntry, &m.SubscriptionFee, &m.StartTime, &m.EndTime, &m.State,
		&opening, &closing, &counted,
		&m.TotalSales, &m.TotalExpenses, &m.PendingReconciliation, &m.PendingBalanceAssignment,
		&m.Version, &m.LastModified, &m.Dirty, &m.Active)
	if err != nil {
		return nil, err
	}
	if opening.Valid {
		m.OpeningBalance = &opening.Int64
	}
	if closing.Valid {
		m.ClosingBalance = &closing.Int64
	}
	if counted.Valid {
		m.CashCountResult = &counted.Int64
	}
	return m, nil
}

func nullable(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func (r *SQLiteRepository) Upsert(ctx context.Context, m *models.MarketEvent) error {
	query := `INSERT INTO market_events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			place = excluded.place,
			organizer = excluded.organizer,
			free_entry = excluded.free_entry,
			subscription_fee = excluded.subscription_fee,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			state = excluded.state,
			opening_balance = excluded.opening_balance,
			closing_balance = excluded.closing_balance,
			cash_count_result = excluded.cash_count_result,
			total_sales = excluded.total_sales,
			total_expenses = excluded.total_expenses,
			pending_reconciliation = excluded.pending_reconciliation,
			pending_balance_assignment = excluded.pending_balance_assignment,
			version = excluded.version,
			last_modified = excluded.last_modified,
			is_dirty = excluded.is_dirty,
			is_active = excluded.is_active`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.OwnerID, m.Date, m.Place, m.Organizer, m.FreeEntry, m.SubscriptionFee,
		m.StartTime, m.EndTime, m.State,
		nullable(m.OpeningBalance), nullable(m.ClosingBalance), nullable(m.CashCountResult),
		m.TotalSales, m.TotalExpenses, m.PendingReconciliation, m.PendingBalanceAssignment,
		m.Version, m.LastModified, m.Dirty, m.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert market event: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.MarketEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM market_events WHERE id=?`, id)
	m, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market event: %w", err)
	}
	return m, nil
}

func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.MarketEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM market_events WHERE owner_id=? AND is_active=1 ORDER BY date DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select market events: %w", err)
	}
	return collectEvents(rows)
}

func (r *SQLiteRepository) ListByOwnerStates(ctx context.Context, ownerID string, states ...models.MarketEventState) ([]*models.MarketEvent, error) {
	if len(states) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(states)), ",")
	args := []any{ownerID}
	for _, s := range states {
		args = append(args, int64(s))
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM market_events
		 WHERE owner_id=? AND is_active=1 AND state IN (`+placeholders+`) ORDER BY date`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select market events by state: %w", err)
	}
	return collectEvents(rows)
}

func (r *SQLiteRepository) ListDirtyByOwner(ctx context.Context, ownerID string) ([]*models.MarketEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM market_events WHERE owner_id=? AND is_dirty=1 ORDER BY last_modified`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select dirty market events: %w", err)
	}
	return collectEvents(rows)
}

func (r *SQLiteRepository) MarkClean(ctx context.Context, id string, version int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE market_events SET is_dirty=0 WHERE id=? AND version=?`, id, version)
	if err != nil {
		return fmt.Errorf("failed to mark market event clean: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM market_events WHERE owner_id=?`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count market events: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM market_events WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete market event: %w", err)
	}
	return nil
}

func collectEvents(rows *sql.Rows) ([]*models.MarketEvent, error) {
	defer rows.Close()
	var result []*models.MarketEvent
	for rows.Next() {
		m, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
