package text

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnippetShortTextUnchanged(t *testing.T) {
	t.Parallel()

	text := "Gophers dig long tunnels under the garden. They rarely come out."
	assert.Equal(t, "Gophers dig long tunnels under the garden.", Snippet(text, 250),
		"only sentences with more than five words are preferred")
}

func TestSnippetFallsBackToFirstSentence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Short one.", Snippet("Short one. Tiny two!", 250))
	assert.Equal(t, "", Snippet("   ", 250))
}

func TestSnippetKeepsAtMostThreeSentences(t *testing.T) {
	t.Parallel()

	s1 := "The first sentence has plenty of words in it."
	s2 := "The second sentence also has plenty of words."
	s3 := "The third sentence is long enough to count too!"
	s4 := "A fourth sentence would be one too many here?"
	got := Snippet(strings.Join([]string{s1, s2, s3, s4}, " "), 1000)
	assert.Equal(t, s1+" "+s2+" "+s3, got)
}

func TestSnippetWordFillsOverflowingSentence(t *testing.T) {
	t.Parallel()

	s1 := "Gophers are small burrowing rodents found across North America."
	s2 := "They spend most of their lives underground digging elaborate tunnel systems with many chambers and exits."
	got := Snippet(s1+" "+s2, 100)

	require.True(t, strings.HasPrefix(got, s1+" They spend"), got)
	require.True(t, strings.HasSuffix(got, "..."), got)
	require.LessOrEqual(t, utf8.RuneCountInString(got), 100)
	body := strings.TrimSuffix(got, "...")
	assert.False(t, strings.HasSuffix(body, " "), "words are joined without a trailing space")
}

func TestSnippetSkipsFillWhenLittleBudgetRemains(t *testing.T) {
	t.Parallel()

	s1 := "This opening sentence is deliberately written to be fairly long."
	s2 := "The following sentence cannot possibly fit into what remains."
	budget := utf8.RuneCountInString(s1) + 10
	got := Snippet(s1+" "+s2, budget)
	assert.Equal(t, s1+"...", got)
}

func TestSnippetTruncatesLongFirstSentence(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 100) + "end."
	got := Snippet(long, 60)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 60)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.True(t, strings.HasPrefix(got, "word word"))
}

func TestSnippetNeverExceedsBudget(t *testing.T) {
	t.Parallel()

	texts := []string{
		strings.Repeat("Ünïcödé wörds fill this sentence quite nicely indeed. ", 20),
		"One two three four five six. " + strings.Repeat("x", 400) + " seven eight nine ten eleven twelve.",
		strings.Repeat("abcdefghij", 60),
		"Tiny. " + strings.Repeat("Another reasonably sized sentence sits right here. ", 5),
	}
	for _, budget := range []int{1, 5, 24, 25, 50, 120, 250} {
		for _, text := range texts {
			got := Snippet(text, budget)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), budget, "budget %d text %.20q", budget, text)
			assert.True(t, utf8.ValidString(got))
		}
	}
}

func TestSnippetDefaultBudget(t *testing.T) {
	t.Parallel()

	got := Snippet(strings.Repeat("Plenty of words live inside this sentence. ", 30), 0)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), DefaultSnippetLength)
	assert.True(t, strings.HasSuffix(got, "..."))
}
