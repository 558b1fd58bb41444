package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/JakeFAU/websearch/internal/store"
)

// SaveDocument upserts doc by URL and replaces its postings in one transaction.
func (s *Store) SaveDocument(ctx context.Context, doc store.Document, frequencies map[string]int) (id int64, err error) {
	if doc.URL == "" {
		return 0, store.ErrInvalidURL
	}
	terms, freqs, err := flatten(frequencies)
	if err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin save document: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
		INSERT INTO webpages (url, title, snippet, indexed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (url) DO UPDATE
		SET title = EXCLUDED.title, snippet = EXCLUDED.snippet, indexed_at = EXCLUDED.indexed_at
		RETURNING id`,
		doc.URL, doc.Title, doc.Snippet, doc.IndexedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert webpage: %w", err)
	}

	if len(terms) > 0 {
		_, err = tx.Exec(ctx, `
			INSERT INTO postings (term, webpage_id, frequency)
			SELECT t, $1, f FROM unnest($2::text[], $3::int[]) AS p(t, f)
			ON CONFLICT (term, webpage_id) DO UPDATE SET frequency = EXCLUDED.frequency`,
			id, terms, freqs)
		if err != nil {
			return 0, fmt.Errorf("upsert postings: %w", err)
		}
	}
	_, err = tx.Exec(ctx,
		`DELETE FROM postings WHERE webpage_id = $1 AND NOT (term = ANY($2::text[]))`,
		id, terms)
	if err != nil {
		return 0, fmt.Errorf("prune postings: %w", err)
	}
	_, err = tx.Exec(ctx, `UPDATE crawled_urls SET indexed = TRUE WHERE url = $1`, doc.URL)
	if err != nil {
		return 0, fmt.Errorf("mark indexed: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit save document: %w", err)
	}
	return id, nil
}

// Postings returns the postings for each requested term, ordered by document id.
func (s *Store) Postings(ctx context.Context, terms []string) (map[string][]store.Posting, error) {
	out := make(map[string][]store.Posting, len(terms))
	if len(terms) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT term, webpage_id, frequency
		FROM postings
		WHERE term = ANY($1::text[])
		ORDER BY term, webpage_id`, terms)
	if err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p    store.Posting
			freq int32
		)
		if err := rows.Scan(&p.Term, &p.DocumentID, &freq); err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		p.Frequency = int(freq)
		out[p.Term] = append(out[p.Term], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	return out, nil
}

// Documents loads webpages by id.
func (s *Store) Documents(ctx context.Context, ids []int64) (map[int64]store.Document, error) {
	out := make(map[int64]store.Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, url, title, snippet, indexed_at
		FROM webpages
		WHERE id = ANY($1::bigint[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("query webpages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var doc store.Document
		if err := rows.Scan(&doc.ID, &doc.URL, &doc.Title, &doc.Snippet, &doc.IndexedAt); err != nil {
			return nil, fmt.Errorf("scan webpage: %w", err)
		}
		out[doc.ID] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query webpages: %w", err)
	}
	return out, nil
}

// flatten turns the frequency map into parallel arrays sorted by term.
func flatten(frequencies map[string]int) ([]string, []int32, error) {
	terms := make([]string, 0, len(frequencies))
	for term, freq := range frequencies {
		if term == "" || freq <= 0 {
			return nil, nil, fmt.Errorf("invalid posting %q=%d", term, freq)
		}
		terms = append(terms, term)
	}
	sort.Strings(terms)
	freqs := make([]int32, len(terms))
	for i, term := range terms {
		freqs[i] = int32(frequencies[term])
	}
	return terms, freqs, nil
}
