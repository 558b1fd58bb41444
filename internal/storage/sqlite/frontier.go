package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/websearch/internal/store"
)

const sitemapColumns = `id, url, added_at, last_crawled, crawl_status, active`

// AddSitemapURL inserts url, or reactivates it with a pending status when it was removed.
func (s *Store) AddSitemapURL(ctx context.Context, url string, at time.Time) (store.SitemapEntry, error) {
	if url == "" {
		return store.SitemapEntry{}, store.ErrInvalidURL
	}
	query := `
		INSERT INTO sitemap_urls (url, added_at, crawl_status, active)
		VALUES (?, ?, ?, 1)
		ON CONFLICT (url) DO UPDATE
		SET crawl_status = CASE WHEN sitemap_urls.active THEN sitemap_urls.crawl_status ELSE excluded.crawl_status END,
			active = 1
		RETURNING ` + sitemapColumns
	var row sitemapRow
	if err := s.db.GetContext(ctx, &row, query, url, utc(at), string(store.StatusPending)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = store.ErrNotFound
		}
		return store.SitemapEntry{}, fmt.Errorf("add sitemap url: %w", err)
	}
	return row.entry(), nil
}

// RemoveSitemapURL soft-deletes url.
func (s *Store) RemoveSitemapURL(ctx context.Context, url string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sitemap_urls SET active = 0 WHERE url = ?`, url)
	if err != nil {
		return fmt.Errorf("remove sitemap url: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove sitemap url: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("remove sitemap url %q: %w", url, store.ErrNotFound)
	}
	return nil
}

// ListSitemap returns entries matching filter ordered by id.
func (s *Store) ListSitemap(ctx context.Context, filter store.SitemapFilter) ([]store.SitemapEntry, error) {
	query := `
		SELECT ` + sitemapColumns + `
		FROM sitemap_urls
		WHERE (? = 0 OR active = 1)
			AND (? = '' OR crawl_status = ?)
		ORDER BY id`
	status := string(filter.Status)
	var rows []sitemapRow
	if err := s.db.SelectContext(ctx, &rows, query, filter.ActiveOnly, status, status); err != nil {
		return nil, fmt.Errorf("list sitemap: %w", err)
	}
	entries := make([]store.SitemapEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.entry())
	}
	return entries, nil
}

// UpdateCrawlStatus records a crawl outcome; last_crawled is only stamped on success.
func (s *Store) UpdateCrawlStatus(ctx context.Context, url string, status store.CrawlStatus, at time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("unknown crawl status %q", status)
	}
	var err error
	if status == store.StatusCrawled {
		_, err = s.db.ExecContext(ctx,
			`UPDATE sitemap_urls SET crawl_status = ?, last_crawled = ? WHERE url = ?`,
			string(status), utc(at), url)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE sitemap_urls SET crawl_status = ? WHERE url = ?`,
			string(status), url)
	}
	if err != nil {
		return fmt.Errorf("update crawl status: %w", err)
	}
	return nil
}

// SaveDiscovered inserts urls into crawled_urls and returns how many were new.
func (s *Store) SaveDiscovered(ctx context.Context, urls []string, at time.Time) (inserted int, err error) {
	if len(urls) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save discovered: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO crawled_urls (url, discovered_at) VALUES (?, ?) ON CONFLICT (url) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare save discovered: %w", err)
	}
	defer stmt.Close()

	for _, u := range urls {
		if u == "" {
			continue
		}
		res, execErr := stmt.ExecContext(ctx, u, utc(at))
		if execErr != nil {
			err = fmt.Errorf("insert discovered url: %w", execErr)
			return 0, err
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save discovered: %w", err)
	}
	return inserted, nil
}

// ListDiscovered returns discovered URLs ordered by id.
func (s *Store) ListDiscovered(ctx context.Context, filter store.DiscoveredFilter) ([]store.DiscoveredURL, error) {
	limit := -1
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	var rows []discoveredRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, url, discovered_at, indexed
		FROM crawled_urls
		WHERE (? = 0 OR indexed = 0)
		ORDER BY id
		LIMIT ?`, filter.UnindexedOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list discovered urls: %w", err)
	}
	out := make([]store.DiscoveredURL, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.DiscoveredURL{ID: r.ID, URL: r.URL, DiscoveredAt: r.DiscoveredAt, Indexed: r.Indexed})
	}
	return out, nil
}
