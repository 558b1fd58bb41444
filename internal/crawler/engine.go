package crawler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/websearch/internal/logging"
	"github.com/JakeFAU/websearch/internal/politeness"
	"github.com/JakeFAU/websearch/internal/store"
)

// DefaultMaxPages caps a run when Options.MaxPages is not positive.
const DefaultMaxPages = 10

// Options tune a single crawl run.
type Options struct {
	// MaxPages caps successful fetches.
	MaxPages int
	// Delay replaces the configured politeness range for this run when set.
	// A zero range disables the pause; per-host overrides still apply.
	Delay *politeness.DelayRange
}

// Result summarizes a crawl run.
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	// Discovered holds every link found during the run, sorted.
	Discovered []string
	// Stored counts links that were new to the frontier store.
	Stored     int
	Fetched    int
	Failed     int
	Disallowed int
}

// Engine runs crawls. Its VisitedSet persists across runs of the same Engine.
type Engine struct {
	fetcher  Fetcher
	robots   RobotsPolicy
	delay    *politeness.DelayPolicy
	frontier FrontierStore
	clock    Clock
	ids      IDGenerator
	logger   *zap.Logger
	visited  *VisitedSet
}

// NewEngine wires an Engine.
func NewEngine(
	fetcher Fetcher,
	robots RobotsPolicy,
	delay *politeness.DelayPolicy,
	frontier FrontierStore,
	clock Clock,
	ids IDGenerator,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		fetcher:  fetcher,
		robots:   robots,
		delay:    delay,
		frontier: frontier,
		clock:    clock,
		ids:      ids,
		logger:   logging.OrNop(logger),
		visited:  NewVisitedSet(),
	}
}

// Visited exposes the engine's visited set.
func (e *Engine) Visited() *VisitedSet { return e.visited }

// Crawl walks outward from seeds.
func (e *Engine) Crawl(ctx context.Context, seeds []string, opts Options) (Result, error) {
	return e.run(ctx, seeds, nil, opts)
}

// CrawlSitemap crawls the active sitemap entries: pending ones normally, all of them
// when force is set. Each entry's crawl_status is updated with the outcome.
func (e *Engine) CrawlSitemap(ctx context.Context, force bool, opts Options) (Result, error) {
	filter := store.SitemapFilter{ActiveOnly: true}
	if !force {
		filter.Status = store.StatusPending
	}
	entries, err := e.frontier.ListSitemap(ctx, filter)
	if err != nil {
		return Result{}, fmt.Errorf("load sitemap: %w", err)
	}
	seeds := make([]string, 0, len(entries))
	tracked := make(map[string]string, len(entries))
	for _, entry := range entries {
		seeds = append(seeds, entry.URL)
		tracked[entry.URL] = entry.URL
	}
	return e.run(ctx, seeds, tracked, opts)
}

// run is the crawl loop. tracked maps frontier URLs to the sitemap rows whose
// status must be recorded.
func (e *Engine) run(ctx context.Context, seeds []string, tracked map[string]string, opts Options) (Result, error) {
	res := Result{StartedAt: e.clock.Now()}
	runID, err := e.ids.NewID()
	if err != nil {
		return res, fmt.Errorf("new run id: %w", err)
	}
	res.RunID = runID
	logger := e.logger.With(zap.String("run_id", runID))

	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	delay := e.delay
	if opts.Delay != nil {
		delay = delay.WithRange(*opts.Delay)
	}

	frontier := newQueue(nil)
	for _, seed := range seeds {
		normalized, err := NormalizeURL(seed)
		if err != nil {
			logger.Warn("skipping invalid seed", zap.String("url", seed), zap.Error(err))
			res.Failed++
			e.markStatus(ctx, tracked, seed, store.StatusError)
			continue
		}
		if row, ok := tracked[seed]; ok {
			tracked[normalized] = row
		}
		frontier.push(normalized)
	}
	logger.Info("crawl started", zap.Int("seeds", frontier.size()), zap.Int("max_pages", maxPages))

	discovered := make(map[string]struct{})
	for res.Fetched < maxPages {
		if err := ctx.Err(); err != nil {
			res.FinishedAt = e.clock.Now()
			return res, fmt.Errorf("crawl canceled: %w", err)
		}
		url, ok := frontier.pop()
		if !ok {
			break
		}
		if e.visited.Contains(url) {
			continue
		}
		if !e.robots.Allowed(ctx, url) {
			logger.Info("disallowed by robots.txt", zap.String("url", url))
			res.Disallowed++
			e.markStatus(ctx, tracked, url, store.StatusError)
			continue
		}
		if err := delay.Wait(ctx, url); err != nil {
			res.FinishedAt = e.clock.Now()
			return res, fmt.Errorf("crawl canceled: %w", err)
		}
		page, err := e.fetcher.Fetch(ctx, url)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				res.FinishedAt = e.clock.Now()
				return res, fmt.Errorf("crawl canceled: %w", err)
			}
			logger.Warn("fetch failed", zap.String("url", url), zap.Error(err))
			res.Failed++
			e.markStatus(ctx, tracked, url, store.StatusError)
			continue
		}

		e.visited.Add(url)
		res.Fetched++
		e.markStatus(ctx, tracked, url, store.StatusCrawled)

		if !page.IsHTML() {
			continue
		}
		base := page.FinalURL
		if base == "" {
			base = url
		}
		links, err := ExtractLinks(base, page.Body)
		if err != nil {
			logger.Warn("link extraction failed", zap.String("url", url), zap.Error(err))
			continue
		}
		for _, link := range links {
			discovered[link] = struct{}{}
			frontier.push(link)
		}
		logger.Debug("page crawled", zap.String("url", url), zap.Int("links", len(links)))
	}

	res.Discovered = make([]string, 0, len(discovered))
	for link := range discovered {
		res.Discovered = append(res.Discovered, link)
	}
	sort.Strings(res.Discovered)

	stored, err := e.frontier.SaveDiscovered(ctx, res.Discovered, e.clock.Now())
	res.FinishedAt = e.clock.Now()
	if err != nil {
		return res, fmt.Errorf("save discovered urls: %w", err)
	}
	res.Stored = stored

	logger.Info("crawl finished",
		zap.Int("fetched", res.Fetched),
		zap.Int("failed", res.Failed),
		zap.Int("disallowed", res.Disallowed),
		zap.Int("discovered", len(res.Discovered)),
		zap.Int("stored", res.Stored),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)))
	return res, nil
}

// markStatus records a crawl outcome for sitemap URLs. Storage failures are logged only.
func (e *Engine) markStatus(ctx context.Context, tracked map[string]string, url string, status store.CrawlStatus) {
	row, ok := tracked[url]
	if !ok {
		return
	}
	if err := e.frontier.UpdateCrawlStatus(ctx, row, status, e.clock.Now()); err != nil {
		e.logger.Warn("update crawl status failed",
			zap.String("url", row), zap.String("status", string(status)), zap.Error(err))
	}
}
