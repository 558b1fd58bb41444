// Package search ranks indexed documents against a free-text query.
package search

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/JakeFAU/websearch/internal/logging"
	"github.com/JakeFAU/websearch/internal/metrics"
	"github.com/JakeFAU/websearch/internal/store"
	"github.com/JakeFAU/websearch/internal/text"
)

// DefaultMaxResults is used by callers that have no configured limit.
const DefaultMaxResults = 10

// Result is one ranked hit.
type Result struct {
	DocumentID    int64
	URL           string
	Title         string
	Snippet       string
	MatchingTerms int
	// RelevanceScore is the summed frequency of every matching term.
	RelevanceScore int
}

// Store is the read side of the index.
type Store interface {
	Postings(ctx context.Context, terms []string) (map[string][]store.Posting, error)
	Documents(ctx context.Context, ids []int64) (map[int64]store.Document, error)
}

// Engine answers queries.
type Engine struct {
	store    Store
	analyzer *text.Analyzer
	logger   *zap.Logger
}

// NewEngine wires an Engine. The analyzer must match the one used at index time.
func NewEngine(st Store, analyzer *text.Analyzer, logger *zap.Logger) *Engine {
	return &Engine{store: st, analyzer: analyzer, logger: logging.OrNop(logger)}
}

type score struct {
	id        int64
	matching  int
	frequency int
}

// Search returns up to maxResults documents ordered by matching terms, then total
// frequency, then document id. Queries with no indexable terms return no results.
func (e *Engine) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		return []Result{}, nil
	}
	terms := text.Distinct(e.analyzer.Terms(query))
	if len(terms) == 0 {
		metrics.ObserveSearch(0)
		return []Result{}, nil
	}

	postings, err := e.store.Postings(ctx, terms)
	if err != nil {
		return nil, fmt.Errorf("load postings: %w", err)
	}
	scores := make(map[int64]*score)
	for _, term := range terms {
		for _, p := range postings[term] {
			s, ok := scores[p.DocumentID]
			if !ok {
				s = &score{id: p.DocumentID}
				scores[p.DocumentID] = s
			}
			s.matching++
			s.frequency += p.Frequency
		}
	}

	ranked := make([]*score, 0, len(scores))
	for _, s := range scores {
		ranked = append(ranked, s)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.matching != b.matching {
			return a.matching > b.matching
		}
		if a.frequency != b.frequency {
			return a.frequency > b.frequency
		}
		return a.id < b.id
	})
	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}
	if len(ranked) == 0 {
		metrics.ObserveSearch(0)
		return []Result{}, nil
	}

	ids := make([]int64, len(ranked))
	for i, s := range ranked {
		ids[i] = s.id
	}
	docs, err := e.store.Documents(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	results := make([]Result, 0, len(ranked))
	for _, s := range ranked {
		doc, ok := docs[s.id]
		if !ok {
			e.logger.Debug("document vanished between reads", zap.Int64("document_id", s.id))
			continue
		}
		results = append(results, Result{
			DocumentID:     doc.ID,
			URL:            doc.URL,
			Title:          doc.Title,
			Snippet:        doc.Snippet,
			MatchingTerms:  s.matching,
			RelevanceScore: s.frequency,
		})
	}
	metrics.ObserveSearch(len(results))
	e.logger.Debug("search served", zap.String("query", query),
		zap.Strings("terms", terms), zap.Int("results", len(results)))
	return results, nil
}
