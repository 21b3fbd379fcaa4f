// Package articles provides the SQLite-backed repository for Article records.
package articles

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

const articleColumns = `id, owner_id, name, category_id, price, notes, version, last_modified, is_dirty, is_active`

func scanArticle(row interface{ Scan(...any) error }) (*models.Article, error) {
	a := &models.Article{}
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.CategoryID, &a.PriceCents, &a.Notes,
		&a.Version, &a.LastModified, &a.Dirty, &a.Active)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, a *models.Article) error {
	query := `INSERT INTO articles (` + articleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category_id = excluded.category_id,
			price = excluded.price,
			notes = excluded.notes,
			version = excluded.version,
			last_modified = excluded.last_modified,
			is_dirty = excluded.is_dirty,
			is_active = excluded.is_active`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.OwnerID, a.Name, a.CategoryID, a.PriceCents, a.Notes,
		a.Version, a.LastModified, a.Dirty, a.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert article: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Article, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id=?`, id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Article, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE owner_id=? AND is_active=1 ORDER BY name`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select articles: %w", err)
	}
	return collectArticles(rows)
}

func (r *SQLiteRepository) ListDirtyByOwner(ctx context.Context, ownerID string) ([]*models.Article, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE owner_id=? AND is_dirty=1 ORDER BY last_modified`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select dirty articles: %w", err)
	}
	return collectArticles(rows)
}

func (r *SQLiteRepository) MarkClean(ctx context.Context, id string, version int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE articles SET is_dirty=0 WHERE id=? AND version=?`, id, version)
	if err != nil {
		return fmt.Errorf("failed to mark article clean: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles WHERE owner_id=?`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	return nil
}

func collectArticles(rows *sql.Rows) ([]*models.Article, error) {
	defer rows.Close()
	var result []*models.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
