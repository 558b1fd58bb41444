package postgres

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sitemap_urls (
	id BIGSERIAL PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	added_at TIMESTAMPTZ NOT NULL,
	last_crawled TIMESTAMPTZ,
	crawl_status TEXT NOT NULL DEFAULT 'pending'
		CHECK (crawl_status IN ('pending', 'crawled', 'error')),
	active BOOLEAN NOT NULL DEFAULT TRUE
)`,
	`CREATE TABLE IF NOT EXISTS crawled_urls (
	id BIGSERIAL PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	discovered_at TIMESTAMPTZ NOT NULL,
	indexed BOOLEAN NOT NULL DEFAULT FALSE
)`,
	`CREATE TABLE IF NOT EXISTS webpages (
	id BIGSERIAL PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL DEFAULT '',
	snippet TEXT NOT NULL DEFAULT '',
	indexed_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS postings (
	term TEXT NOT NULL,
	webpage_id BIGINT NOT NULL REFERENCES webpages(id) ON DELETE CASCADE,
	frequency INTEGER NOT NULL CHECK (frequency > 0),
	PRIMARY KEY (term, webpage_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_postings_webpage ON postings (webpage_id)`,
	`CREATE INDEX IF NOT EXISTS idx_crawled_urls_unindexed ON crawled_urls (id) WHERE NOT indexed`,
}
