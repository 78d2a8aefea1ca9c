package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists pages in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pages (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			version BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'draft',
			slug TEXT,
			published_url TEXT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_pages_slug ON pages (slug) WHERE slug IS NOT NULL;`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (PageRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, title, body, version, status, COALESCE(slug, ''), COALESCE(published_url, ''), updated_at
		 FROM pages WHERE id=$1`, id)

	var rec PageRecord
	err := row.Scan(&rec.ID, &rec.Title, &rec.Body, &rec.Version, &rec.Status, &rec.Slug, &rec.PublishedURL, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PageRecord{}, ErrNotFound
	}
	if err != nil {
		return PageRecord{}, fmt.Errorf("get page: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Save(ctx context.Context, id, title, body string, version int64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO pages (id, title, body, version, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET title=EXCLUDED.title, body=EXCLUDED.body, version=EXCLUDED.version, updated_at=EXCLUDED.updated_at
		 WHERE pages.version <= EXCLUDED.version`,
		id, title, body, version, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("save page: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrVersionConflict
	}
	return version, nil
}

// Publish updates slug, status, and URL inside one transaction so a page is
// never observable half-published.
func (s *PostgresStore) Publish(ctx context.Context, id, slug, publishedURL string) (PageRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return PageRecord{}, fmt.Errorf("begin publish: %w", err)
	}
	defer tx.Rollback(ctx)

	var owner string
	err = tx.QueryRow(ctx, `SELECT id FROM pages WHERE slug=$1 FOR UPDATE`, slug).Scan(&owner)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return PageRecord{}, fmt.Errorf("check slug: %w", err)
	}
	if err == nil && owner != id {
		return PageRecord{}, ErrSlugTaken
	}

	row := tx.QueryRow(ctx,
		`UPDATE pages
		 SET slug=$2, status=$3, published_url=$4, updated_at=$5
		 WHERE id=$1
		 RETURNING id, title, body, version, status, COALESCE(slug, ''), COALESCE(published_url, ''), updated_at`,
		id, slug, StatusPublished, publishedURL, time.Now().UTC())

	var rec PageRecord
	err = row.Scan(&rec.ID, &rec.Title, &rec.Body, &rec.Version, &rec.Status, &rec.Slug, &rec.PublishedURL, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PageRecord{}, ErrNotFound
	}
	if err != nil {
		return PageRecord{}, fmt.Errorf("publish page: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return PageRecord{}, fmt.Errorf("commit publish: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
