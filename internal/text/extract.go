package text

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/websearch/internal/fetcher"
	"github.com/JakeFAU/websearch/internal/logging"
)

const (
	bodySelector = "p, h1, h2, h3, h4, h5, h6"
	// minBlockWords is the word count a block must exceed to count as body text.
	minBlockWords = 3
)

var controlWhitespaceRE = regexp.MustCompile(`[\n\r\t]+`)

// Extraction is what the pipeline keeps from one page.
type Extraction struct {
	URL     string
	Title   string
	Text    string
	Snippet string
}

// Empty reports whether there is no body text to index.
func (e Extraction) Empty() bool { return e.Text == "" }

// ParseHTML pulls the title and body text out of an HTML document.
func ParseHTML(body []byte) (Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Extraction{}, err
	}
	var blocks []string
	doc.Find(bodySelector).Each(func(_ int, s *goquery.Selection) {
		block := strings.TrimSpace(s.Text())
		if len(strings.Fields(block)) > minBlockWords {
			blocks = append(blocks, block)
		}
	})
	text := controlWhitespaceRE.ReplaceAllString(strings.Join(blocks, " "), " ")
	return Extraction{
		Title: CleanTitle(doc.Find("title").First().Text()),
		Text:  strings.Join(strings.Fields(text), " "),
	}, nil
}

// CleanTitle strips markup and collapses whitespace; case is kept.
func CleanTitle(s string) string {
	return strings.Join(strings.Fields(markupRE.ReplaceAllString(s, "")), " ")
}

// Extractor fetches a page and runs ParseHTML on it.
type Extractor struct {
	fetcher       fetcher.Fetcher
	logger        *zap.Logger
	snippetLength int
}

// NewExtractor builds an Extractor. snippetLength <= 0 selects DefaultSnippetLength.
func NewExtractor(f fetcher.Fetcher, snippetLength int, logger *zap.Logger) *Extractor {
	if snippetLength <= 0 {
		snippetLength = DefaultSnippetLength
	}
	return &Extractor{fetcher: f, logger: logging.OrNop(logger), snippetLength: snippetLength}
}

// Extract fetches url and returns its title, text and snippet. Any failure is
// logged and yields an empty Extraction.
func (e *Extractor) Extract(ctx context.Context, url string) Extraction {
	page, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		e.logger.Warn("extract: fetch failed", zap.String("url", url), zap.Error(err))
		return Extraction{URL: url}
	}
	if !page.IsHTML() {
		e.logger.Info("extract: skipping non-HTML page",
			zap.String("url", url), zap.String("content_type", page.ContentType))
		return Extraction{URL: url}
	}
	ex, err := ParseHTML(page.Body)
	if err != nil {
		e.logger.Warn("extract: parse failed", zap.String("url", url), zap.Error(err))
		return Extraction{URL: url}
	}
	ex.URL = url
	if ex.Text != "" {
		ex.Snippet = Snippet(ex.Text, e.snippetLength)
	}
	return ex
}
