// Package categories provides the SQLite-backed repository for Category
// records.
package categories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stallbook/stallbook/internal/common"
	"github.com/stallbook/stallbook/internal/dbx"
	"github.com/stallbook/stallbook/internal/models"
)

// SQLiteRepository implements Repository over a DBTX (*sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const categoryColumns = `id, owner_id, name, color, version, last_modified, is_dirty, is_active`

func scanCategory(row interface{ Scan(...any) error }) (*models.Category, error) {
	c := &models.Category{}
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Color,
		&c.Version, &c.LastModified, &c.Dirty, &c.Active)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, c *models.Category) error {
	query := `INSERT INTO categories (` + categoryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			color = excluded.color,
			version = excluded.version,
			last_modified = excluded.last_modified,
			is_dirty = excluded.is_dirty,
			is_active = excluded.is_active`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.OwnerID, c.Name, c.Color, c.Version, c.LastModified, c.Dirty, c.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id=?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE owner_id=? AND is_active=1 ORDER BY name`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select categories: %w", err)
	}
	return collectCategories(rows)
}

func (r *SQLiteRepository) ListDirtyByOwner(ctx context.Context, ownerID string) ([]*models.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE owner_id=? AND is_dirty=1 ORDER BY last_modified`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select dirty categories: %w", err)
	}
	return collectCategories(rows)
}

func (r *SQLiteRepository) MarkClean(ctx context.Context, id string, version int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE categories SET is_dirty=0 WHERE id=? AND version=?`, id, version)
	if err != nil {
		return fmt.Errorf("failed to mark category clean: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE owner_id=?`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count categories: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

func collectCategories(rows *sql.Rows) ([]*models.Category, error) {
	defer rows.Close()
	var result []*models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
