// Package metrics exposes Prometheus collectors for crawling, indexing and search.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerPagesTotal      *prometheus.CounterVec
	crawlerBytesTotal      *prometheus.CounterVec
	robotsDecisionsTotal   *prometheus.CounterVec
	politenessDelaySeconds prometheus.Histogram
	rateLimitDelaySeconds  *prometheus.HistogramVec
	indexerDocumentsTotal  *prometheus.CounterVec
	searchQueriesTotal     *prometheus.CounterVec
	searchResultsReturned  prometheus.Histogram
	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websearch_crawler_pages_total",
				Help: "Total number of pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websearch_crawler_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		robotsDecisionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websearch_robots_decisions_total",
				Help: "robots.txt decisions, labeled by site and outcome.",
			},
			[]string{"site", "decision"},
		)

		politenessDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "websearch_politeness_delay_seconds",
				Help:    "Histogram of politeness sleeps between requests.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "websearch_rate_limit_delay_seconds",
				Help:    "Histogram of per-domain rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		indexerDocumentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websearch_indexer_documents_total",
				Help: "Documents processed by the indexer, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		searchQueriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websearch_search_queries_total",
				Help: "Search queries served, labeled by whether any result matched.",
			},
			[]string{"outcome"},
		)

		searchResultsReturned = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "websearch_search_results_returned",
				Help:    "Number of results returned per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websearch_http_requests_total",
				Help: "Requests served by the ops server, labeled by method, route and status.",
			},
			[]string{"method", "route", "status"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "websearch_http_request_duration_seconds",
				Help:    "Histogram of ops server request latencies.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCrawl increments the crawler metrics.
func ObserveCrawl(site string, status string, bytesFetched int) {
	if crawlerPagesTotal == nil {
		return
	}
	sanitizedSite := SanitizeSite(site)
	crawlerPagesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveRobotsDecision counts an allow/disallow decision for site.
func ObserveRobotsDecision(site string, allowed bool) {
	if robotsDecisionsTotal == nil {
		return
	}
	decision := "disallow"
	if allowed {
		decision = "allow"
	}
	robotsDecisionsTotal.WithLabelValues(SanitizeSite(site), decision).Inc()
}

// ObservePolitenessDelay records one politeness sleep.
func ObservePolitenessDelay(duration time.Duration) {
	if politenessDelaySeconds == nil {
		return
	}
	politenessDelaySeconds.Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	if rateLimitDelaySeconds == nil {
		return
	}
	rateLimitDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveIndexed counts an indexer outcome: "indexed", "empty" or "error".
func ObserveIndexed(outcome string) {
	if indexerDocumentsTotal == nil {
		return
	}
	indexerDocumentsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSearch records a served query and how many results it returned.
func ObserveSearch(results int) {
	if searchQueriesTotal == nil {
		return
	}
	outcome := "hit"
	if results == 0 {
		outcome = "miss"
	}
	searchQueriesTotal.WithLabelValues(outcome).Inc()
	searchResultsReturned.Observe(float64(results))
}

// ObserveHTTPRequest records one request served by the ops server.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
