package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/JakeFAU/websearch/internal/store"
)

// SaveDocument upserts doc by URL and rewrites its postings in one transaction.
func (s *Store) SaveDocument(ctx context.Context, doc store.Document, frequencies map[string]int) (id int64, err error) {
	if doc.URL == "" {
		return 0, store.ErrInvalidURL
	}
	for term, freq := range frequencies {
		if term == "" || freq <= 0 {
			return 0, fmt.Errorf("invalid posting %q=%d", term, freq)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save document: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = tx.GetContext(ctx, &id, `
		INSERT INTO webpages (url, title, snippet, indexed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (url) DO UPDATE
		SET title = excluded.title, snippet = excluded.snippet, indexed_at = excluded.indexed_at
		RETURNING id`,
		doc.URL, doc.Title, doc.Snippet, utc(doc.IndexedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert webpage: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM postings WHERE webpage_id = ?`, id); err != nil {
		return 0, fmt.Errorf("clear postings: %w", err)
	}
	if len(frequencies) > 0 {
		stmt, prepErr := tx.PrepareContext(ctx,
			`INSERT INTO postings (term, webpage_id, frequency) VALUES (?, ?, ?)`)
		if prepErr != nil {
			err = fmt.Errorf("prepare postings: %w", prepErr)
			return 0, err
		}
		defer stmt.Close()
		for term, freq := range frequencies {
			if _, err = stmt.ExecContext(ctx, term, id, freq); err != nil {
				return 0, fmt.Errorf("insert posting %q: %w", term, err)
			}
		}
	}
	if _, err = tx.ExecContext(ctx, `UPDATE crawled_urls SET indexed = 1 WHERE url = ?`, doc.URL); err != nil {
		return 0, fmt.Errorf("mark indexed: %w", err)
	}
	if err = tx.Commit(); err != nil {
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
	query, args, err := sqlx.In(
		`SELECT term, webpage_id, frequency FROM postings WHERE term IN (?) ORDER BY term, webpage_id`, terms)
	if err != nil {
		return nil, fmt.Errorf("expand postings query: %w", err)
	}
	var rows []postingRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	for _, r := range rows {
		out[r.Term] = append(out[r.Term], store.Posting{Term: r.Term, DocumentID: r.WebpageID, Frequency: r.Frequency})
	}
	return out, nil
}

// Documents loads webpages by id.
func (s *Store) Documents(ctx context.Context, ids []int64) (map[int64]store.Document, error) {
	out := make(map[int64]store.Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(
		`SELECT id, url, title, snippet, indexed_at FROM webpages WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("expand webpages query: %w", err)
	}
	var rows []webpageRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query webpages: %w", err)
	}
	for _, r := range rows {
		out[r.ID] = store.Document{ID: r.ID, URL: r.URL, Title: r.Title, Snippet: r.Snippet, IndexedAt: r.IndexedAt}
	}
	return out, nil
}
