package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

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
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (url) DO UPDATE
		SET crawl_status = CASE WHEN sitemap_urls.active THEN sitemap_urls.crawl_status ELSE EXCLUDED.crawl_status END,
			active = TRUE
		RETURNING ` + sitemapColumns
	entry, err := scanSitemap(s.pool.QueryRow(ctx, query, url, at, string(store.StatusPending)))
	if err != nil {
		return store.SitemapEntry{}, fmt.Errorf("add sitemap url: %w", err)
	}
	return entry, nil
}

// RemoveSitemapURL soft-deletes url.
func (s *Store) RemoveSitemapURL(ctx context.Context, url string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE sitemap_urls SET active = FALSE WHERE url = $1`, url)
	if err != nil {
		return fmt.Errorf("remove sitemap url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("remove sitemap url %q: %w", url, store.ErrNotFound)
	}
	return nil
}

// ListSitemap returns entries matching filter ordered by id.
func (s *Store) ListSitemap(ctx context.Context, filter store.SitemapFilter) ([]store.SitemapEntry, error) {
	query := `
		SELECT ` + sitemapColumns + `
		FROM sitemap_urls
		WHERE ($1::boolean = FALSE OR active)
			AND ($2::text = '' OR crawl_status = $2)
		ORDER BY id`
	rows, err := s.pool.Query(ctx, query, filter.ActiveOnly, string(filter.Status))
	if err != nil {
		return nil, fmt.Errorf("list sitemap: %w", err)
	}
	defer rows.Close()

	var entries []store.SitemapEntry
	for rows.Next() {
		entry, err := scanSitemap(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sitemap row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sitemap: %w", err)
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
		_, err = s.pool.Exec(ctx,
			`UPDATE sitemap_urls SET crawl_status = $2, last_crawled = $3 WHERE url = $1`,
			url, string(status), at)
	} else {
		_, err = s.pool.Exec(ctx,
			`UPDATE sitemap_urls SET crawl_status = $2 WHERE url = $1`,
			url, string(status))
	}
	if err != nil {
		return fmt.Errorf("update crawl status: %w", err)
	}
	return nil
}

// SaveDiscovered inserts urls into crawled_urls and returns how many were new.
func (s *Store) SaveDiscovered(ctx context.Context, urls []string, at time.Time) (int, error) {
	unique := dedupe(urls)
	if len(unique) == 0 {
		return 0, nil
	}
	query := `
		INSERT INTO crawled_urls (url, discovered_at)
		SELECT u, $2 FROM unnest($1::text[]) AS u
		ON CONFLICT (url) DO NOTHING`
	tag, err := s.pool.Exec(ctx, query, unique, at)
	if err != nil {
		return 0, fmt.Errorf("save discovered urls: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListDiscovered returns discovered URLs ordered by id.
func (s *Store) ListDiscovered(ctx context.Context, filter store.DiscoveredFilter) ([]store.DiscoveredURL, error) {
	query := `
		SELECT id, url, discovered_at, indexed
		FROM crawled_urls
		WHERE ($1::boolean = FALSE OR NOT indexed)
		ORDER BY id
		LIMIT NULLIF($2::bigint, 0)`
	rows, err := s.pool.Query(ctx, query, filter.UnindexedOnly, int64(filter.Limit))
	if err != nil {
		return nil, fmt.Errorf("list discovered urls: %w", err)
	}
	defer rows.Close()

	var out []store.DiscoveredURL
	for rows.Next() {
		var d store.DiscoveredURL
		if err := rows.Scan(&d.ID, &d.URL, &d.DiscoveredAt, &d.Indexed); err != nil {
			return nil, fmt.Errorf("scan discovered row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list discovered urls: %w", err)
	}
	return out, nil
}

func scanSitemap(row pgx.Row) (store.SitemapEntry, error) {
	var (
		entry  store.SitemapEntry
		status string
	)
	err := row.Scan(&entry.ID, &entry.URL, &entry.AddedAt, &entry.LastCrawled, &status, &entry.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.SitemapEntry{}, store.ErrNotFound
		}
		return store.SitemapEntry{}, err
	}
	entry.Status = store.CrawlStatus(status)
	return entry, nil
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
