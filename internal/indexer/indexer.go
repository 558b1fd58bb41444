// Package indexer turns fetched pages into documents and postings.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/websearch/internal/logging"
	"github.com/JakeFAU/websearch/internal/metrics"
	"github.com/JakeFAU/websearch/internal/politeness"
	"github.com/JakeFAU/websearch/internal/store"
	"github.com/JakeFAU/websearch/internal/text"
)

// DefaultMaxPages caps a batch when Options.MaxPages is not positive.
const DefaultMaxPages = 10

// Index outcomes reported to metrics.
const (
	outcomeIndexed = "indexed"
	outcomeEmpty   = "empty"
	outcomeSkipped = "disallowed"
	outcomeFailed  = "failed"
)

// Options tune a batch.
type Options struct {
	MaxPages int
	// Delay replaces the configured politeness range when set; a zero range disables the pause.
	Delay *politeness.DelayRange
}

// Extractor produces the text of a page.
type Extractor interface {
	Extract(ctx context.Context, url string) text.Extraction
}

// Store is the part of the store the indexer needs.
type Store interface {
	SaveDocument(ctx context.Context, doc store.Document, frequencies map[string]int) (int64, error)
	ListDiscovered(ctx context.Context, filter store.DiscoveredFilter) ([]store.DiscoveredURL, error)
}

// RobotsPolicy decides whether a URL may be fetched.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Indexer fetches pages, analyzes their text and stores the postings.
type Indexer struct {
	extractor Extractor
	analyzer  *text.Analyzer
	store     Store
	delay     *politeness.DelayPolicy
	clock     Clock
	robots    RobotsPolicy
	logger    *zap.Logger

	// attempted holds URLs whose last Index call stored nothing. IndexPending
	// passes over them so they cannot starve newer discoveries.
	mu        sync.Mutex
	attempted map[string]struct{}
}

// Option customizes an Indexer.
type Option func(*Indexer)

// WithRobots skips URLs that robots.txt disallows.
func WithRobots(r RobotsPolicy) Option {
	return func(ix *Indexer) { ix.robots = r }
}

// New wires an Indexer.
func New(
	extractor Extractor,
	analyzer *text.Analyzer,
	st Store,
	delay *politeness.DelayPolicy,
	clock Clock,
	logger *zap.Logger,
	opts ...Option,
) *Indexer {
	ix := &Indexer{
		extractor: extractor,
		analyzer:  analyzer,
		store:     st,
		delay:     delay,
		clock:     clock,
		logger:    logging.OrNop(logger),
		attempted: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Index extracts url and stores it. It reports false with a nil error when the
// page is disallowed or yields no text. Text without indexable terms still
// stores the document, with no postings.
func (ix *Indexer) Index(ctx context.Context, url string) (bool, error) {
	ok, err := ix.index(ctx, url)
	if ctx.Err() == nil {
		ix.markAttempt(url, ok)
	}
	return ok, err
}

func (ix *Indexer) index(ctx context.Context, url string) (bool, error) {
	if ix.robots != nil && !ix.robots.Allowed(ctx, url) {
		metrics.ObserveIndexed(outcomeSkipped)
		ix.logger.Info("disallowed by robots.txt", zap.String("url", url))
		return false, nil
	}
	ex := ix.extractor.Extract(ctx, url)
	if ex.Empty() {
		metrics.ObserveIndexed(outcomeEmpty)
		ix.logger.Info("nothing to index", zap.String("url", url))
		return false, nil
	}
	terms := ix.analyzer.Terms(ex.Text)
	if len(terms) == 0 {
		ix.logger.Info("no indexable terms", zap.String("url", url))
	}

	doc := store.Document{
		URL:       url,
		Title:     ex.Title,
		Snippet:   ex.Snippet,
		IndexedAt: ix.clock.Now(),
	}
	id, err := ix.store.SaveDocument(ctx, doc, text.Frequencies(terms))
	if err != nil {
		metrics.ObserveIndexed(outcomeFailed)
		return false, fmt.Errorf("index %s: %w", url, err)
	}
	metrics.ObserveIndexed(outcomeIndexed)
	ix.logger.Debug("indexed page",
		zap.String("url", url), zap.Int64("document_id", id), zap.Int("terms", len(terms)))
	return true, nil
}

// BatchIndex indexes at most opts.MaxPages of urls, pausing before each fetch.
// Per-URL failures are logged and skipped; only cancellation aborts the batch.
func (ix *Indexer) BatchIndex(ctx context.Context, urls []string, opts Options) (int, error) {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if len(urls) > maxPages {
		urls = urls[:maxPages]
	}
	delay := ix.delay
	if opts.Delay != nil {
		delay = delay.WithRange(*opts.Delay)
	}

	indexed := 0
	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return indexed, fmt.Errorf("index batch canceled: %w", err)
		}
		if err := delay.Wait(ctx, url); err != nil {
			return indexed, fmt.Errorf("index batch canceled: %w", err)
		}
		ok, err := ix.Index(ctx, url)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return indexed, err
			}
			ix.logger.Warn("index failed", zap.String("url", url), zap.Error(err))
			continue
		}
		if ok {
			indexed++
		}
	}
	ix.logger.Info("index batch finished", zap.Int("requested", len(urls)), zap.Int("indexed", indexed))
	return indexed, nil
}

// IndexPending indexes the oldest discovered URLs that are not indexed yet.
// URLs this Indexer already tried without storing anything are passed over.
func (ix *Indexer) IndexPending(ctx context.Context, opts Options) (int, error) {
	limit := opts.MaxPages
	if limit <= 0 {
		limit = DefaultMaxPages
	}
	ix.mu.Lock()
	skipped := len(ix.attempted)
	ix.mu.Unlock()

	// Every passed-over URL can occupy at most one row of the listing.
	pending, err := ix.store.ListDiscovered(ctx, store.DiscoveredFilter{UnindexedOnly: true, Limit: limit + skipped})
	if err != nil {
		return 0, fmt.Errorf("load pending urls: %w", err)
	}
	urls := make([]string, 0, limit)
	for _, d := range pending {
		if len(urls) == limit {
			break
		}
		if ix.wasAttempted(d.URL) {
			continue
		}
		urls = append(urls, d.URL)
	}
	opts.MaxPages = limit
	return ix.BatchIndex(ctx, urls, opts)
}

func (ix *Indexer) markAttempt(url string, stored bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if stored {
		delete(ix.attempted, url)
		return
	}
	ix.attempted[url] = struct{}{}
}

func (ix *Indexer) wasAttempted(url string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	_, ok := ix.attempted[url]
	return ok
}
