package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzerClean(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(nil)
	cases := map[string]string{
		"Hello, <b>World</b>! 42 times":  "hello world times",
		"  Tabs\tand\nnewlines  ":        "tabs and newlines",
		"snake_case stays; dashes-split": "snake_case stays dashes split",
		"Café déjà vu":                   "café déjà vu",
		"abc123def":                      "abcdef",
		"":                               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, a.Clean(in), in)
	}
}

func TestAnalyzerTermsDropsStopwordsAndShortTokens(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(nil)
	got := a.Terms("The gophers are running through a tunnel, and I x y z dig!")
	require.Equal(t, []string{"gopher", "run", "tunnel", "dig"}, got)
}

func TestAnalyzerStemmingSymmetry(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(nil)
	indexed := Frequencies(a.Terms("Running runs quickly. The runner was running."))
	query := a.Terms("running")
	require.Len(t, query, 1)
	assert.Equal(t, 3, indexed[query[0]], "every inflection of run should share a stem")

	assert.Equal(t, a.Terms("Connections"), a.Terms("connection"))
}

func TestAnalyzerUsesPorter2Stems(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(nil)
	// The classic Porter stemmer gives "ti", "ski" and "dy" here.
	assert.Equal(t, []string{"tie", "sky", "die"}, a.Terms("ties skies dying"))
}

func TestAnalyzerCustomStopwords(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(map[string]struct{}{"gopher": {}})
	assert.Equal(t, []string{"the", "burrow"}, a.Terms("the gopher burrow"))
}

func TestFrequenciesAndDistinct(t *testing.T) {
	t.Parallel()

	terms := []string{"b", "a", "b", "c", "a", "b"}
	assert.Equal(t, map[string]int{"a": 2, "b": 3, "c": 1}, Frequencies(terms))
	assert.Equal(t, []string{"b", "a", "c"}, Distinct(terms))
}
