package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store over a Postgres documents table, for
// self-hosted deployments that want the "remote" replica on their own
// infrastructure instead of a hosted document service.
//
// Schema:
//
//	CREATE TABLE IF NOT EXISTS documents (
//	    collection TEXT NOT NULL,
//	    doc_id     TEXT NOT NULL,
//	    fields     JSONB NOT NULL,
//	    PRIMARY KEY (collection, doc_id)
//	);
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects via the pgx stdlib driver and ensures the documents
// table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an existing connection (tests, pooling done by the
// caller). The documents table must already exist.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			doc_id     TEXT NOT NULL,
			fields     JSONB NOT NULL,
			PRIMARY KEY (collection, doc_id)
		)`)
	if err != nil {
		return fmt.Errorf("%w: init schema: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Set(ctx context.Context, collection, docID string, fields map[string]any, merge bool) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO documents (collection, doc_id, fields)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, doc_id)
		DO UPDATE SET fields = EXCLUDED.fields`
	if merge {
		query = `
		INSERT INTO documents (collection, doc_id, fields)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, doc_id)
		DO UPDATE SET fields = documents.fields || EXCLUDED.fields`
	}

	if _, err := s.db.ExecContext(ctx, query, collection, docID, body); err != nil {
		return fmt.Errorf("%w: set %s/%s: %v", ErrUnavailable, collection, docID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, docID string) (map[string]any, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection=$1 AND doc_id=$2`,
		collection, docID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s/%s: %v", ErrUnavailable, collection, docID, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *PostgresStore) Query(ctx context.Context, collection string, filters ...Filter) ([]map[string]any, error) {
	query := `SELECT fields FROM documents WHERE collection=$1`
	args := []any{collection}
	for _, f := range filters {
		args = append(args, f.Field, fmt.Sprint(f.Value))
		query += fmt.Sprintf(" AND fields->>$%d = $%d", len(args)-1, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", ErrUnavailable, collection, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var doc map[string]any
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", ErrUnavailable, collection, err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, docID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection=$1 AND doc_id=$2`,
		collection, docID); err != nil {
		return fmt.Errorf("%w: delete %s/%s: %v", ErrUnavailable, collection, docID, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
