// Package text turns HTML into titles, body text, snippets and stemmed index terms.
// The same Analyzer runs at index time and at query time so both sides agree on terms.
package text

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kljensen/snowball/english"
)

var (
	markupRE  = regexp.MustCompile(`<[^>]+>`)
	nonWordRE = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	digitsRE  = regexp.MustCompile(`\p{Nd}+`)
)

// Analyzer normalizes, filters and stems text.
type Analyzer struct {
	stopwords map[string]struct{}
}

// NewAnalyzer builds an Analyzer. A nil stopword set selects DefaultStopwords.
func NewAnalyzer(stopwords map[string]struct{}) *Analyzer {
	if stopwords == nil {
		stopwords = DefaultStopwords()
	}
	return &Analyzer{stopwords: stopwords}
}

// Clean strips markup, punctuation and digits, collapses whitespace and lowercases.
func (a *Analyzer) Clean(s string) string {
	s = markupRE.ReplaceAllString(s, "")
	s = nonWordRE.ReplaceAllString(s, " ")
	s = digitsRE.ReplaceAllString(s, "")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Terms cleans s, drops stopwords and one-character tokens, and stems the rest.
// Order and duplicates are preserved.
func (a *Analyzer) Terms(s string) []string {
	words := strings.Fields(a.Clean(s))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := a.stopwords[w]; stop {
			continue
		}
		if utf8.RuneCountInString(w) <= 1 {
			continue
		}
		terms = append(terms, english.Stem(w, true))
	}
	return terms
}

// Frequencies counts each term.
func Frequencies(terms []string) map[string]int {
	freq := make(map[string]int, len(terms))
	for _, t := range terms {
		freq[t]++
	}
	return freq
}

// Distinct returns terms without duplicates, in first-seen order.
func Distinct(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
