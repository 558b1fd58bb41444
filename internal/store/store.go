// Package store declares the persistent model shared by the crawler, indexer and
// search engine, plus the repository interfaces every storage backend implements.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound signals that the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidURL is returned when a URL cannot be registered.
	ErrInvalidURL = errors.New("invalid url")
)

// CrawlStatus mirrors the sitemap_urls.crawl_status column.
type CrawlStatus string

// Crawl statuses persisted in sitemap_urls.crawl_status.
const (
	StatusPending CrawlStatus = "pending"
	StatusCrawled CrawlStatus = "crawled"
	StatusError   CrawlStatus = "error"
)

// Valid reports whether s is one of the known statuses.
func (s CrawlStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCrawled, StatusError:
		return true
	default:
		return false
	}
}

// SitemapEntry models a row of sitemap_urls.
type SitemapEntry struct {
	ID      int64
	URL     string
	AddedAt time.Time
	// LastCrawled is nil until the first crawl attempt succeeds.
	LastCrawled *time.Time
	Status      CrawlStatus
	// Active is false once the entry has been removed. Rows are never deleted.
	Active bool
}

// DiscoveredURL models a row of crawled_urls.
type DiscoveredURL struct {
	ID           int64
	URL          string
	DiscoveredAt time.Time
	Indexed      bool
}

// Document models a row of webpages.
type Document struct {
	ID        int64
	URL       string
	Title     string
	Snippet   string
	IndexedAt time.Time
}

// Posting is one (term, document) entry of the inverted index.
type Posting struct {
	Term       string
	DocumentID int64
	Frequency  int
}

// SitemapFilter narrows ListSitemap results.
type SitemapFilter struct {
	ActiveOnly bool
	// Status restricts results to a single crawl status when non-empty.
	Status CrawlStatus
}

// DiscoveredFilter narrows ListDiscovered results.
type DiscoveredFilter struct {
	UnindexedOnly bool
	// Limit caps the number of rows returned; zero means no limit.
	Limit int
}

// FrontierStore persists the sitemap and the URLs discovered while crawling.
type FrontierStore interface {
	// AddSitemapURL registers a URL, reactivating it when it was previously removed.
	AddSitemapURL(ctx context.Context, url string, at time.Time) (SitemapEntry, error)
	// RemoveSitemapURL soft-deletes a URL. Unknown URLs return ErrNotFound.
	RemoveSitemapURL(ctx context.Context, url string) error
	// ListSitemap returns entries ordered by id.
	ListSitemap(ctx context.Context, filter SitemapFilter) ([]SitemapEntry, error)
	// UpdateCrawlStatus records the outcome of a crawl attempt. last_crawled is
	// only stamped for StatusCrawled.
	UpdateCrawlStatus(ctx context.Context, url string, status CrawlStatus, at time.Time) error
	// SaveDiscovered inserts URLs into crawled_urls, ignoring duplicates, and
	// returns how many rows were new.
	SaveDiscovered(ctx context.Context, urls []string, at time.Time) (int, error)
	// ListDiscovered returns discovered URLs ordered by id.
	ListDiscovered(ctx context.Context, filter DiscoveredFilter) ([]DiscoveredURL, error)
}

// IndexStore persists documents and the inverted index.
type IndexStore interface {
	// SaveDocument writes one document and its term frequencies atomically:
	// the webpages row is upserted by URL (keeping its id), each term's posting is
	// upserted with the given frequency, postings for terms no longer present are
	// removed, and the matching crawled_urls row is marked indexed.
	SaveDocument(ctx context.Context, doc Document, frequencies map[string]int) (int64, error)
	// Postings returns the postings of every requested term, keyed by term.
	Postings(ctx context.Context, terms []string) (map[string][]Posting, error)
	// Documents loads documents by id. Missing ids are absent from the result.
	Documents(ctx context.Context, ids []int64) (map[int64]Document, error)
}

// Store is implemented by every backend; all four tables live in one database.
type Store interface {
	FrontierStore
	IndexStore
	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error
	Close() error
}
