// Package memory keeps the frontier and index in process memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/websearch/internal/store"
)

// Store provides an in-memory implementation of store.Store for development/testing.
// It keeps the same identity rules as the SQL backends: ids are never reused and
// re-saving a document keeps its id.
type Store struct {
	mu sync.RWMutex

	nextSitemapID    int64
	nextDiscoveredID int64
	nextDocumentID   int64

	sitemap    map[string]store.SitemapEntry
	discovered map[string]store.DiscoveredURL
	documents  map[int64]store.Document
	docByURL   map[string]int64
	// postings maps term -> document id -> frequency.
	postings map[string]map[int64]int
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		sitemap:    make(map[string]store.SitemapEntry),
		discovered: make(map[string]store.DiscoveredURL),
		documents:  make(map[int64]store.Document),
		docByURL:   make(map[string]int64),
		postings:   make(map[string]map[int64]int),
	}
}

// Migrate is a no-op; the maps are ready after NewStore.
func (s *Store) Migrate(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// AddSitemapURL registers url or reactivates a removed entry.
func (s *Store) AddSitemapURL(_ context.Context, url string, at time.Time) (store.SitemapEntry, error) {
	if url == "" {
		return store.SitemapEntry{}, store.ErrInvalidURL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.sitemap[url]; ok {
		if !entry.Active {
			entry.Active = true
			entry.Status = store.StatusPending
			s.sitemap[url] = entry
		}
		return copyEntry(entry), nil
	}
	s.nextSitemapID++
	entry := store.SitemapEntry{
		ID:      s.nextSitemapID,
		URL:     url,
		AddedAt: at,
		Status:  store.StatusPending,
		Active:  true,
	}
	s.sitemap[url] = entry
	return entry, nil
}

// RemoveSitemapURL flips the active flag off.
func (s *Store) RemoveSitemapURL(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sitemap[url]
	if !ok {
		return fmt.Errorf("remove sitemap url %q: %w", url, store.ErrNotFound)
	}
	entry.Active = false
	s.sitemap[url] = entry
	return nil
}

// ListSitemap returns matching entries ordered by id.
func (s *Store) ListSitemap(_ context.Context, filter store.SitemapFilter) ([]store.SitemapEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.SitemapEntry, 0, len(s.sitemap))
	for _, entry := range s.sitemap {
		if filter.ActiveOnly && !entry.Active {
			continue
		}
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		out = append(out, copyEntry(entry))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateCrawlStatus records a crawl outcome. URLs outside the sitemap are ignored.
func (s *Store) UpdateCrawlStatus(_ context.Context, url string, status store.CrawlStatus, at time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("unknown crawl status %q", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sitemap[url]
	if !ok {
		return nil
	}
	entry.Status = status
	if status == store.StatusCrawled {
		ts := at
		entry.LastCrawled = &ts
	}
	s.sitemap[url] = entry
	return nil
}

// SaveDiscovered inserts new URLs and ignores known ones.
func (s *Store) SaveDiscovered(_ context.Context, urls []string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := s.discovered[u]; ok {
			continue
		}
		s.nextDiscoveredID++
		s.discovered[u] = store.DiscoveredURL{ID: s.nextDiscoveredID, URL: u, DiscoveredAt: at}
		inserted++
	}
	return inserted, nil
}

// ListDiscovered returns discovered URLs ordered by id.
func (s *Store) ListDiscovered(_ context.Context, filter store.DiscoveredFilter) ([]store.DiscoveredURL, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.DiscoveredURL, 0, len(s.discovered))
	for _, d := range s.discovered {
		if filter.UnindexedOnly && d.Indexed {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// SaveDocument upserts the document and replaces its postings.
func (s *Store) SaveDocument(_ context.Context, doc store.Document, frequencies map[string]int) (int64, error) {
	if doc.URL == "" {
		return 0, store.ErrInvalidURL
	}
	for term, freq := range frequencies {
		if term == "" || freq <= 0 {
			return 0, fmt.Errorf("invalid posting %q=%d", term, freq)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.docByURL[doc.URL]
	if !ok {
		s.nextDocumentID++
		id = s.nextDocumentID
		s.docByURL[doc.URL] = id
	}
	doc.ID = id
	s.documents[id] = doc

	for term, docs := range s.postings {
		if _, keep := frequencies[term]; keep {
			continue
		}
		delete(docs, id)
		if len(docs) == 0 {
			delete(s.postings, term)
		}
	}
	for term, freq := range frequencies {
		docs, ok := s.postings[term]
		if !ok {
			docs = make(map[int64]int)
			s.postings[term] = docs
		}
		docs[id] = freq
	}

	if d, ok := s.discovered[doc.URL]; ok {
		d.Indexed = true
		s.discovered[doc.URL] = d
	}
	return id, nil
}

// Postings returns the postings for each known term, ordered by document id.
func (s *Store) Postings(_ context.Context, terms []string) (map[string][]store.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]store.Posting, len(terms))
	for _, term := range terms {
		docs, ok := s.postings[term]
		if !ok {
			continue
		}
		list := make([]store.Posting, 0, len(docs))
		for id, freq := range docs {
			list = append(list, store.Posting{Term: term, DocumentID: id, Frequency: freq})
		}
		sort.Slice(list, func(i, j int) bool { return list[i].DocumentID < list[j].DocumentID })
		out[term] = list
	}
	return out, nil
}

// Documents loads documents by id.
func (s *Store) Documents(_ context.Context, ids []int64) (map[int64]store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]store.Document, len(ids))
	for _, id := range ids {
		if doc, ok := s.documents[id]; ok {
			out[id] = doc
		}
	}
	return out, nil
}

func copyEntry(e store.SitemapEntry) store.SitemapEntry {
	if e.LastCrawled != nil {
		ts := *e.LastCrawled
		e.LastCrawled = &ts
	}
	return e
}
