package crawler

import (
	"context"
	"time"

	"github.com/JakeFAU/websearch/internal/fetcher"
	"github.com/JakeFAU/websearch/internal/store"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher = fetcher.Fetcher

// RobotsPolicy decides whether a URL may be fetched.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// DelayPolicy pauses before each request.
type DelayPolicy interface {
	Wait(ctx context.Context, rawURL string) error
}

// FrontierStore is the part of the store the crawler reads and writes.
type FrontierStore interface {
	ListSitemap(ctx context.Context, filter store.SitemapFilter) ([]store.SitemapEntry, error)
	UpdateCrawlStatus(ctx context.Context, url string, status store.CrawlStatus, at time.Time) error
	SaveDiscovered(ctx context.Context, urls []string, at time.Time) (int, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
