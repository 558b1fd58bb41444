package fetcher

import (
	"errors"
	"testing"
)

func TestPageIsHTML(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"":                         true,
		"text/html":                true,
		"text/html; charset=utf-8": true,
		"application/xhtml+xml":    true,
		"application/json":         false,
		"image/png":                false,
		"TEXT/HTML;;broken=":       true,
	}
	for ct, want := range cases {
		if got := (Page{ContentType: ct}).IsHTML(); got != want {
			t.Errorf("IsHTML(%q) = %v; want %v", ct, got, want)
		}
	}
}

func TestStatusErrorAs(t *testing.T) {
	t.Parallel()

	var err error = &StatusError{URL: "https://example.com/", StatusCode: 404}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 404 {
		t.Fatalf("expected StatusError, got %v", err)
	}
}
