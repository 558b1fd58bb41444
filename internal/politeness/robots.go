// Package politeness decides whether and when the crawler may hit a URL:
// robots.txt exclusion plus a randomized inter-request delay.
package politeness

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/JakeFAU/websearch/internal/logging"
	"github.com/JakeFAU/websearch/internal/metrics"
)

// DefaultUserAgent identifies the crawler to robots.txt and page servers.
const DefaultUserAgent = "WebsearchBot/1.0"

const (
	defaultRobotsTimeout = 10 * time.Second
	maxRobotsBytes       = 1 << 20
)

// RobotsConfig controls robots.txt retrieval.
type RobotsConfig struct {
	UserAgent string
	Timeout   time.Duration
	// Client overrides the HTTP client; Timeout is ignored when set.
	Client *http.Client
}

// robotsEntry is the cached rule set for one scheme+host. A nil group allows everything.
type robotsEntry struct {
	group *robotstxt.Group
}

// Robots enforces robots.txt per scheme+host. Rules are fetched once per host
// and kept for the lifetime of the Robots value; failures are cached as allow-all.
type Robots struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger

	mu    sync.Mutex
	cache map[string]robotsEntry
}

// NewRobots builds a Robots checker.
func NewRobots(cfg RobotsConfig, logger *zap.Logger) *Robots {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultRobotsTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &Robots{
		client:    client,
		userAgent: ua,
		logger:    logging.OrNop(logger),
		cache:     make(map[string]robotsEntry),
	}
}

// Allowed reports whether the configured user agent may fetch rawURL.
// Unparseable and non-http(s) URLs are never allowed.
func (r *Robots) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	entry := r.load(ctx, scheme, parsed.Host)
	allowed := entry.group == nil || entry.group.Test(parsed.RequestURI())
	metrics.ObserveRobotsDecision(rawURL, allowed)
	return allowed
}

// CrawlDelay returns the Crawl-delay advertised for rawURL's host, or zero when
// unknown. It never fetches; call Allowed first.
func (r *Robots) CrawlDelay(rawURL string) time.Duration {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	r.mu.Lock()
	entry, ok := r.cache[cacheKey(strings.ToLower(parsed.Scheme), parsed.Host)]
	r.mu.Unlock()
	if !ok || entry.group == nil {
		return 0
	}
	return entry.group.CrawlDelay
}

func (r *Robots) load(ctx context.Context, scheme, host string) robotsEntry {
	key := cacheKey(scheme, host)
	r.mu.Lock()
	entry, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return entry
	}

	data, err := r.fetch(ctx, key+"/robots.txt")
	if err != nil && ctx.Err() != nil {
		// Canceled runs must not poison the cache.
		return robotsEntry{}
	}
	if err != nil {
		r.logger.Warn("robots fetch failed; allowing access", zap.String("host", host), zap.Error(err))
	} else if data != nil {
		entry.group = data.FindGroup(r.userAgent)
	}

	r.mu.Lock()
	r.cache[key] = entry
	r.mu.Unlock()
	return entry
}

// fetch returns nil data without error when the server has no usable robots.txt.
func (r *Robots) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Debug("Failed to close robots response body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.logger.Debug("robots.txt unavailable; allowing access",
			zap.String("url", robotsURL), zap.Int("status", resp.StatusCode))
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	return data, nil
}

func cacheKey(scheme, host string) string {
	return scheme + "://" + strings.ToLower(host)
}
