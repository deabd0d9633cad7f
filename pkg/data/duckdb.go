package data

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS chapters (
	number        INTEGER PRIMARY KEY,
	title         VARCHAR NOT NULL,
	pages         INTEGER NOT NULL,
	published_at  TIMESTAMP,
	package_path  VARCHAR NOT NULL,
	downloaded_at TIMESTAMP NOT NULL,
	available     BOOLEAN NOT NULL DEFAULT TRUE
)`

// IndexedChapter is a row of the optional chapter index.
type IndexedChapter struct {
	Number       int
	Title        string
	Pages        int
	PublishedAt  time.Time
	PackagePath  string
	DownloadedAt time.Time
	Available    bool
}

// ListOptions controls the ordering of ListChapters.
type ListOptions struct {
	ByDate bool
	Limit  int
}

// InitDuckDB opens (creating if needed) the index database at path and
// applies the schema.
func InitDuckDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.WithStack(err)
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply index schema")
	}
	return db, nil
}

// Repository is the optional relational index of downloaded chapters. The
// acquisition pipeline works without it.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// OpenRepository opens the index database at path.
func OpenRepository(path string) (*Repository, error) {
	db, err := InitDuckDB(path)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// RecordDownload upserts a completed download. The catalog entry is optional
// and only contributes the publication date.
func (r *Repository) RecordDownload(ctx context.Context, chapter *DownloadedChapter, entry *ChapterEntry) error {
	var published sql.NullTime
	available := true
	if entry != nil {
		available = entry.Available
		if !entry.PublishedAt.IsZero() {
			published = sql.NullTime{Time: entry.PublishedAt, Valid: true}
		}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chapters (number, title, pages, published_at, package_path, downloaded_at, available)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (number) DO UPDATE SET
			title = excluded.title,
			pages = excluded.pages,
			published_at = excluded.published_at,
			package_path = excluded.package_path,
			downloaded_at = excluded.downloaded_at,
			available = excluded.available`,
		chapter.Number, chapter.Title, len(chapter.Pages), published,
		chapter.PackagePath, chapter.DownloadedAt, available,
	)
	return errors.Wrapf(err, "index chapter %d", chapter.Number)
}

func (r *Repository) GetChapter(ctx context.Context, number int) (*IndexedChapter, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT number, title, pages, published_at, package_path, downloaded_at, available
		FROM chapters WHERE number = ?`, number)
	c, err := scanChapter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "chapter %d", number)
	}
	return c, err
}

// ListChapters returns indexed chapters ordered by number, or by publication
// date (newest first) when opts.ByDate is set.
func (r *Repository) ListChapters(ctx context.Context, opts ListOptions) ([]*IndexedChapter, error) {
	query := `SELECT number, title, pages, published_at, package_path, downloaded_at, available FROM chapters`
	if opts.ByDate {
		query += ` ORDER BY published_at DESC NULLS LAST, number DESC`
	} else {
		query += ` ORDER BY number`
	}
	args := []interface{}{}
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	var out []*IndexedChapter
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, errors.WithStack(rows.Err())
}

func (r *Repository) DeleteChapter(ctx context.Context, number int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chapters WHERE number = ?`, number)
	return errors.Wrapf(err, "delete chapter %d from index", number)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanChapter(s scanner) (*IndexedChapter, error) {
	var c IndexedChapter
	var published sql.NullTime
	if err := s.Scan(&c.Number, &c.Title, &c.Pages, &published, &c.PackagePath, &c.DownloadedAt, &c.Available); err != nil {
		return nil, err
	}
	if published.Valid {
		c.PublishedAt = published.Time
	}
	return &c, nil
}
