// Package fetcher defines the page retrieval contract shared by the crawler and
// the text pipeline.
package fetcher

import (
	"context"
	"fmt"
	"mime"
	"strings"
)

// Page is a successfully retrieved document.
type Page struct {
	// URL is the address that was requested.
	URL string
	// FinalURL is the address after redirects; links resolve against it.
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// IsHTML reports whether the page declares an HTML content type. A missing
// header counts as HTML.
func (p Page) IsHTML() bool {
	if p.ContentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(p.ContentType)
	if err != nil {
		return strings.Contains(strings.ToLower(p.ContentType), "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// Fetcher retrieves one page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}
