package crawler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/websearch/internal/fetcher"
	"github.com/JakeFAU/websearch/internal/politeness"
	"github.com/JakeFAU/websearch/internal/store"
)

// MockFetcher is a mock implementation of the Fetcher interface.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, rawURL string) (fetcher.Page, error) {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(fetcher.Page), args.Error(1)
}

// MockRobotsPolicy is a mock implementation of the RobotsPolicy interface.
type MockRobotsPolicy struct {
	mock.Mock
}

func (m *MockRobotsPolicy) Allowed(ctx context.Context, rawURL string) bool {
	args := m.Called(ctx, rawURL)
	return args.Bool(0)
}

// MockFrontierStore is a mock implementation of the FrontierStore interface.
type MockFrontierStore struct {
	mock.Mock
}

func (m *MockFrontierStore) ListSitemap(ctx context.Context, filter store.SitemapFilter) ([]store.SitemapEntry, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]store.SitemapEntry), args.Error(1)
}

func (m *MockFrontierStore) UpdateCrawlStatus(ctx context.Context, url string, status store.CrawlStatus, at time.Time) error {
	args := m.Called(ctx, url, status, at)
	return args.Error(0)
}

func (m *MockFrontierStore) SaveDiscovered(ctx context.Context, urls []string, at time.Time) (int, error) {
	args := m.Called(ctx, urls, at)
	return args.Int(0), args.Error(1)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return "run-" + strconv.Itoa(s.n), nil
}

type recordingSleeper struct {
	slept []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return nil
}

var testNow = time.Unix(1700000000, 0).UTC()

type harness struct {
	fetcher  *MockFetcher
	robots   *MockRobotsPolicy
	frontier *MockFrontierStore
	sleeper  *recordingSleeper
	engine   *Engine
}

func newHarness() *harness {
	h := &harness{
		fetcher:  new(MockFetcher),
		robots:   new(MockRobotsPolicy),
		frontier: new(MockFrontierStore),
		sleeper:  &recordingSleeper{},
	}
	delay := politeness.NewDelayPolicy(politeness.DelayRange{Min: time.Second, Max: time.Second}, h.sleeper)
	h.engine = NewEngine(h.fetcher, h.robots, delay, h.frontier, fixedClock{now: testNow}, &seqIDs{}, nil)
	return h
}

func htmlPage(url, body string) fetcher.Page {
	return fetcher.Page{
		URL:         url,
		FinalURL:    url,
		StatusCode:  http.StatusOK,
		ContentType: "text/html",
		Body:        []byte(body),
	}
}

func fetchedURLs(m *MockFetcher) []string {
	var urls []string
	for _, call := range m.Calls {
		if call.Method == "Fetch" {
			urls = append(urls, call.Arguments.String(1))
		}
	}
	return urls
}

func TestEngine_Crawl(t *testing.T) {
	t.Run("follows links in FIFO order", func(t *testing.T) {
		// Arrange
		h := newHarness()
		h.robots.On("Allowed", mock.Anything, mock.Anything).Return(true)
		h.fetcher.On("Fetch", mock.Anything, "http://example.com/").Return(htmlPage("http://example.com/",
			`<a href="/b">B</a><a href="/a">A</a><a href="mailto:x@example.com">mail</a>`), nil)
		h.fetcher.On("Fetch", mock.Anything, "http://example.com/b").Return(htmlPage("http://example.com/b",
			`<a href="https://other.example/c#frag">C</a><a href="/">home</a>`), nil)
		h.fetcher.On("Fetch", mock.Anything, "http://example.com/a").Return(htmlPage("http://example.com/a", ``), nil)
		h.fetcher.On("Fetch", mock.Anything, "https://other.example/c").Return(htmlPage("https://other.example/c", ``), nil)
		want := []string{"http://example.com/", "http://example.com/a", "http://example.com/b", "https://other.example/c"}
		h.frontier.On("SaveDiscovered", mock.Anything, want, testNow).Return(4, nil)

		// Act
		res, err := h.engine.Crawl(context.Background(), []string{"http://Example.com"}, Options{MaxPages: 10})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []string{
			"http://example.com/",
			"http://example.com/b",
			"http://example.com/a",
			"https://other.example/c",
		}, fetchedURLs(h.fetcher))
		assert.Equal(t, want, res.Discovered)
		assert.Equal(t, 4, res.Fetched)
		assert.Equal(t, 4, res.Stored)
		assert.Equal(t, "run-1", res.RunID)
		assert.Len(t, h.sleeper.slept, 4, "one politeness pause per fetch")
		h.frontier.AssertExpectations(t)
	})

	t.Run("frontier cap limits successful fetches", func(t *testing.T) {
		h := newHarness()
		h.robots.On("Allowed", mock.Anything, mock.Anything).Return(true)
		h.fetcher.On("Fetch", mock.Anything, "http://example.com/").Return(htmlPage("http://example.com/",
			`<a href="/1">1</a><a href="/2">2</a><a href="/3">3</a><a href="/4">4</a><a href="/5">5</a>`), nil)
		h.fetcher.On("Fetch", mock.Anything, mock.Anything).Return(htmlPage("", `<a href="/deeper">d</a>`), nil)
		h.frontier.On("SaveDiscovered", mock.Anything, mock.Anything, testNow).Return(0, nil)

		res, err := h.engine.Crawl(context.Background(), []string{"http://example.com/"}, Options{MaxPages: 2})

		require.NoError(t, err)
		assert.Equal(t, 2, res.Fetched)
		assert.Len(t, fetchedURLs(h.fetcher), 2)
	})

	t.Run("robots disallow skips fetch", func(t *testing.T) {
		h := newHarness()
		h.robots.On("Allowed", mock.Anything, "http://example.com/").Return(false)
		h.frontier.On("SaveDiscovered", mock.Anything, []string{}, testNow).Return(0, nil)

		res, err := h.engine.Crawl(context.Background(), []string{"http://example.com/"}, Options{})

		require.NoError(t, err)
		assert.Equal(t, 1, res.Disallowed)
		h.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
		h.frontier.AssertNotCalled(t, "UpdateCrawlStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.Empty(t, h.sleeper.slept, "no pause is taken for a disallowed URL")
	})

	t.Run("fetch failure is counted and skipped", func(t *testing.T) {
		h := newHarness()
		h.robots.On("Allowed", mock.Anything, mock.Anything).Return(true)
		h.fetcher.On("Fetch", mock.Anything, "http://down.example/").
			Return(fetcher.Page{}, &fetcher.StatusError{URL: "http://down.example/", StatusCode: 503})
		h.fetcher.On("Fetch", mock.Anything, "http://up.example/").Return(htmlPage("http://up.example/", ``), nil)
		h.frontier.On("SaveDiscovered", mock.Anything, []string{}, testNow).Return(0, nil)

		res, err := h.engine.Crawl(context.Background(),
			[]string{"http://down.example/", "not a url", "http://up.example/"}, Options{})

		require.NoError(t, err)
		assert.Equal(t, 2, res.Failed)
		assert.Equal(t, 1, res.Fetched)
		assert.False(t, h.engine.Visited().Contains("http://down.example/"))
		assert.True(t, h.engine.Visited().Contains("http://up.example/"))
	})

	t.Run("visited URLs are not refetched by later runs", func(t *testing.T) {
		h := newHarness()
		h.robots.On("Allowed", mock.Anything, mock.Anything).Return(true)
		h.fetcher.On("Fetch", mock.Anything, "http://example.com/").Return(htmlPage("http://example.com/", ``), nil).Once()
		h.frontier.On("SaveDiscovered", mock.Anything, mock.Anything, testNow).Return(0, nil)

		_, err := h.engine.Crawl(context.Background(), []string{"http://example.com/"}, Options{})
		require.NoError(t, err)
		res, err := h.engine.Crawl(context.Background(), []string{"http://example.com/"}, Options{})
		require.NoError(t, err)

		assert.Zero(t, res.Fetched)
		assert.Equal(t, "run-2", res.RunID)
		h.fetcher.AssertNumberOfCalls(t, "Fetch", 1)
	})

	t.Run("run delay range overrides the default", func(t *testing.T) {
		h := newHarness()
		h.robots.On("Allowed", mock.Anything, mock.Anything).Return(true)
		h.fetcher.On("Fetch", mock.Anything, mock.Anything).Return(htmlPage("http://example.com/", ``), nil)
		h.frontier.On("SaveDiscovered", mock.Anything, mock.Anything, testNow).Return(0, nil)

		_, err := h.engine.Crawl(context.Background(), []string{"http://example.com/"},
			Options{Delay: &politeness.DelayRange{Min: 3 * time.Second, Max: 3 * time.Second}})

		require.NoError(t, err)
		assert.Equal(t, []time.Duration{3 * time.Second}, h.sleeper.slept)
	})

	t.Run("explicit zero delay range never sleeps", func(t *testing.T) {
		h := newHarness()
		h.robots.On("Allowed", mock.Anything, mock.Anything).Return(true)
		h.fetcher.On("Fetch", mock.Anything, "http://example.com/").
			Return(htmlPage("http://example.com/", `<a href="/next">n</a>`), nil)
		h.fetcher.On("Fetch", mock.Anything, "http://example.com/next").
			Return(htmlPage("http://example.com/next", ``), nil)
		h.frontier.On("SaveDiscovered", mock.Anything, mock.Anything, testNow).Return(1, nil)

		res, err := h.engine.Crawl(context.Background(), []string{"http://example.com/"},
			Options{Delay: &politeness.DelayRange{}})

		require.NoError(t, err)
		assert.Equal(t, 2, res.Fetched)
		assert.Empty(t, h.sleeper.slept)
	})

	t.Run("storage failure returns partial result", func(t *testing.T) {
		h := newHarness()
		h.robots.On("Allowed", mock.Anything, mock.Anything).Return(true)
		h.fetcher.On("Fetch", mock.Anything, "http://example.com/").
			Return(htmlPage("http://example.com/", `<a href="/next">n</a>`), nil)
		h.fetcher.On("Fetch", mock.Anything, "http://example.com/next").
			Return(htmlPage("http://example.com/next", ``), nil)
		h.frontier.On("SaveDiscovered", mock.Anything, mock.Anything, testNow).Return(0, errors.New("db down"))

		res, err := h.engine.Crawl(context.Background(), []string{"http://example.com/"}, Options{})

		require.ErrorContains(t, err, "db down")
		assert.Equal(t, 2, res.Fetched)
		assert.Equal(t, []string{"http://example.com/next"}, res.Discovered)
	})

	t.Run("canceled context stops the loop", func(t *testing.T) {
		h := newHarness()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := h.engine.Crawl(ctx, []string{"http://example.com/"}, Options{})

		require.ErrorIs(t, err, context.Canceled)
		h.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	})
}

func TestEngine_CrawlSitemap(t *testing.T) {
	t.Run("marks outcomes on sitemap rows", func(t *testing.T) {
		h := newHarness()
		h.frontier.On("ListSitemap", mock.Anything, store.SitemapFilter{ActiveOnly: true, Status: store.StatusPending}).
			Return([]store.SitemapEntry{
				{ID: 1, URL: "http://ok.example/", Status: store.StatusPending, Active: true},
				{ID: 2, URL: "http://private.example/", Status: store.StatusPending, Active: true},
				{ID: 3, URL: "http://broken.example/", Status: store.StatusPending, Active: true},
			}, nil)
		h.robots.On("Allowed", mock.Anything, "http://private.example/").Return(false)
		h.robots.On("Allowed", mock.Anything, mock.Anything).Return(true)
		h.fetcher.On("Fetch", mock.Anything, "http://ok.example/").
			Return(htmlPage("http://ok.example/", `<a href="/child">c</a>`), nil)
		h.fetcher.On("Fetch", mock.Anything, "http://broken.example/").
			Return(fetcher.Page{}, errors.New("connection reset"))
		h.fetcher.On("Fetch", mock.Anything, "http://ok.example/child").
			Return(htmlPage("http://ok.example/child", ``), nil)
		h.frontier.On("UpdateCrawlStatus", mock.Anything, "http://ok.example/", store.StatusCrawled, testNow).Return(nil)
		h.frontier.On("UpdateCrawlStatus", mock.Anything, "http://private.example/", store.StatusError, testNow).Return(nil)
		h.frontier.On("UpdateCrawlStatus", mock.Anything, "http://broken.example/", store.StatusError, testNow).Return(nil)
		h.frontier.On("SaveDiscovered", mock.Anything, []string{"http://ok.example/child"}, testNow).Return(1, nil)

		res, err := h.engine.CrawlSitemap(context.Background(), false, Options{})

		require.NoError(t, err)
		assert.Equal(t, 2, res.Fetched)
		assert.Equal(t, 1, res.Failed)
		assert.Equal(t, 1, res.Disallowed)
		h.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, "http://private.example/")
		h.frontier.AssertExpectations(t)
		h.frontier.AssertNumberOfCalls(t, "UpdateCrawlStatus", 3)
	})

	t.Run("force selects every active row", func(t *testing.T) {
		h := newHarness()
		h.frontier.On("ListSitemap", mock.Anything, store.SitemapFilter{ActiveOnly: true}).
			Return([]store.SitemapEntry{}, nil)
		h.frontier.On("SaveDiscovered", mock.Anything, []string{}, testNow).Return(0, nil)

		res, err := h.engine.CrawlSitemap(context.Background(), true, Options{})

		require.NoError(t, err)
		assert.Zero(t, res.Fetched)
		h.frontier.AssertExpectations(t)
	})

	t.Run("sitemap load failure", func(t *testing.T) {
		h := newHarness()
		h.frontier.On("ListSitemap", mock.Anything, mock.Anything).
			Return([]store.SitemapEntry(nil), errors.New("db down"))

		_, err := h.engine.CrawlSitemap(context.Background(), false, Options{})
		require.ErrorContains(t, err, "db down")
	})
}
