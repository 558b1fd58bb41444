// Package sqlite provides a single-file SQLite backend for the frontier and index.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	// Registers the pure-Go "sqlite" database/sql driver.
	_ "modernc.org/sqlite"

	"github.com/JakeFAU/websearch/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS sitemap_urls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL UNIQUE,
	added_at DATETIME NOT NULL,
	last_crawled DATETIME,
	crawl_status TEXT NOT NULL DEFAULT 'pending'
		CHECK (crawl_status IN ('pending', 'crawled', 'error')),
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS crawled_urls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL UNIQUE,
	discovered_at DATETIME NOT NULL,
	indexed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS webpages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL DEFAULT '',
	snippet TEXT NOT NULL DEFAULT '',
	indexed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS postings (
	term TEXT NOT NULL,
	webpage_id INTEGER NOT NULL REFERENCES webpages(id) ON DELETE CASCADE,
	frequency INTEGER NOT NULL CHECK (frequency > 0),
	PRIMARY KEY (term, webpage_id)
);

CREATE INDEX IF NOT EXISTS idx_postings_webpage ON postings(webpage_id);
`

// Store implements store.Store with sqlx over the modernc SQLite driver.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the database at path. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("storage.sqlite.path is required")
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serialises writers anyway; one connection also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate creates the schema when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type sitemapRow struct {
	ID          int64        `db:"id"`
	URL         string       `db:"url"`
	AddedAt     time.Time    `db:"added_at"`
	LastCrawled sql.NullTime `db:"last_crawled"`
	Status      string       `db:"crawl_status"`
	Active      bool         `db:"active"`
}

func (r sitemapRow) entry() store.SitemapEntry {
	entry := store.SitemapEntry{
		ID:      r.ID,
		URL:     r.URL,
		AddedAt: r.AddedAt,
		Status:  store.CrawlStatus(r.Status),
		Active:  r.Active,
	}
	if r.LastCrawled.Valid {
		ts := r.LastCrawled.Time
		entry.LastCrawled = &ts
	}
	return entry
}

type discoveredRow struct {
	ID           int64     `db:"id"`
	URL          string    `db:"url"`
	DiscoveredAt time.Time `db:"discovered_at"`
	Indexed      bool      `db:"indexed"`
}

type webpageRow struct {
	ID        int64     `db:"id"`
	URL       string    `db:"url"`
	Title     string    `db:"title"`
	Snippet   string    `db:"snippet"`
	IndexedAt time.Time `db:"indexed_at"`
}

type postingRow struct {
	Term      string `db:"term"`
	WebpageID int64  `db:"webpage_id"`
	Frequency int    `db:"frequency"`
}

func utc(t time.Time) time.Time { return t.UTC() }
