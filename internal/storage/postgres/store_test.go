package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/websearch/internal/store"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s, err := NewWithPool(mock)
	require.NoError(t, err)
	return s, mock
}

func TestMigrateCreatesSchema(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	for range schema {
		mock.ExpectExec("CREATE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSitemapURLReturnsRow(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("INSERT INTO sitemap_urls").
		WithArgs("https://example.com/", now, "pending").
		WillReturnRows(pgxmock.NewRows([]string{"id", "url", "added_at", "last_crawled", "crawl_status", "active"}).
			AddRow(int64(4), "https://example.com/", now, (*time.Time)(nil), "pending", true))

	entry, err := s.AddSitemapURL(context.Background(), "https://example.com/", now)
	require.NoError(t, err)
	require.Equal(t, int64(4), entry.ID)
	require.Equal(t, store.StatusPending, entry.Status)
	require.True(t, entry.Active)
	require.Nil(t, entry.LastCrawled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveSitemapURLUnknown(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectExec("UPDATE sitemap_urls SET active = FALSE").
		WithArgs("https://missing.example/").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.RemoveSitemapURL(context.Background(), "https://missing.example/")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCrawlStatusStampsOnlyOnSuccess(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("last_crawled").
		WithArgs("https://a.example/", "crawled", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE sitemap_urls SET crawl_status").
		WithArgs("https://b.example/", "error").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ctx := context.Background()
	require.NoError(t, s.UpdateCrawlStatus(ctx, "https://a.example/", store.StatusCrawled, now))
	require.NoError(t, s.UpdateCrawlStatus(ctx, "https://b.example/", store.StatusError, now))
	require.Error(t, s.UpdateCrawlStatus(ctx, "https://b.example/", "bogus", now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveDiscoveredDedupes(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("INSERT INTO crawled_urls").
		WithArgs([]string{"https://example.com/a", "https://example.com/b"}, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := s.SaveDiscovered(context.Background(),
		[]string{"https://example.com/a", "", "https://example.com/b", "https://example.com/a"}, now)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveDocumentCommitsPostings(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()
	doc := store.Document{URL: "https://example.com/a", Title: "A", Snippet: "about gophers", IndexedAt: now}
	terms := []string{"burrow", "gopher"}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO webpages").
		WithArgs(doc.URL, doc.Title, doc.Snippet, doc.IndexedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("INSERT INTO postings").
		WithArgs(int64(7), terms, []int32{1, 3}).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec("DELETE FROM postings").
		WithArgs(int64(7), terms).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("UPDATE crawled_urls SET indexed").
		WithArgs(doc.URL).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	id, err := s.SaveDocument(context.Background(), doc, map[string]int{"gopher": 3, "burrow": 1})
	require.NoError(t, err)
	require.Equal(t, int64(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveDocumentRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()
	doc := store.Document{URL: "https://example.com/a", IndexedAt: now}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO webpages").
		WithArgs(doc.URL, doc.Title, doc.Snippet, doc.IndexedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("INSERT INTO postings").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.SaveDocument(context.Background(), doc, map[string]int{"gopher": 1})
	require.ErrorContains(t, err, "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveDocumentRejectsZeroFrequency(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	_, err := s.SaveDocument(context.Background(),
		store.Document{URL: "https://example.com/a"}, map[string]int{"gopher": 0})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostingsGroupsByTerm(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT term, webpage_id, frequency").
		WithArgs([]string{"gopher", "burrow"}).
		WillReturnRows(pgxmock.NewRows([]string{"term", "webpage_id", "frequency"}).
			AddRow("burrow", int64(2), int32(1)).
			AddRow("gopher", int64(1), int32(4)).
			AddRow("gopher", int64(2), int32(2)))

	got, err := s.Postings(context.Background(), []string{"gopher", "burrow"})
	require.NoError(t, err)
	require.Len(t, got["gopher"], 2)
	require.Equal(t, 4, got["gopher"][0].Frequency)
	require.Equal(t, int64(2), got["burrow"][0].DocumentID)
	require.NoError(t, mock.ExpectationsWereMet())
}
