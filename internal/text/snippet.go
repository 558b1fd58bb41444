package text

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultSnippetLength is the snippet budget in runes.
const DefaultSnippetLength = 250

const (
	ellipsis = "..."
	// minFill is the budget that must remain before an overflowing sentence is
	// added word by word.
	minFill = 20
	// maxSnippetSentences caps how many substantial sentences are considered.
	maxSnippetSentences = 3
	// substantialWords is the word count a sentence must exceed to be preferred.
	substantialWords = 5
)

var sentenceEndRE = regexp.MustCompile(`[.!?]\s+`)

// Snippet builds a summary of at most maxLen runes from the leading substantial
// sentences of text, ending in "..." when anything was cut.
func Snippet(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultSnippetLength
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}

	var best []string
	for _, s := range sentences {
		if len(strings.Fields(s)) > substantialWords {
			best = append(best, s)
			if len(best) == maxSnippetSentences {
				break
			}
		}
	}
	if len(best) == 0 {
		best = sentences[:1]
	}

	snippet := ""
	for _, s := range best {
		candidate := joinSpace(snippet, s)
		if runeLen(candidate) <= maxLen {
			snippet = candidate
			continue
		}
		if maxLen-runeLen(snippet)-len(" "+ellipsis) > minFill {
			for _, w := range strings.Fields(s) {
				next := joinSpace(snippet, w)
				if runeLen(next) > maxLen-len(ellipsis) {
					break
				}
				snippet = next
			}
		}
		break
	}

	if runeLen(snippet) >= runeLen(strings.Join(best, " ")) {
		return snippet
	}
	return fitEllipsis(snippet, best[0], maxLen)
}

// fitEllipsis appends "..." while keeping the result within maxLen runes.
func fitEllipsis(snippet, first string, maxLen int) string {
	budget := maxLen - len(ellipsis)
	if budget <= 0 {
		return truncateRunes(ellipsis, maxLen)
	}
	for runeLen(snippet) > budget {
		cut := strings.LastIndex(snippet, " ")
		if cut <= 0 {
			snippet = truncateRunes(snippet, budget)
			break
		}
		snippet = snippet[:cut]
	}
	if snippet == "" {
		snippet = truncateRunes(first, budget)
	}
	return snippet + ellipsis
}

// splitSentences splits after terminal punctuation followed by whitespace.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []string
	prev := 0
	for _, m := range sentenceEndRE.FindAllStringIndex(text, -1) {
		out = append(out, strings.TrimSpace(text[prev:m[0]+1]))
		prev = m[1]
	}
	if prev < len(text) {
		out = append(out, strings.TrimSpace(text[prev:]))
	}
	return out
}

func joinSpace(a, b string) string {
	if a == "" {
		return b
	}
	return a + " " + b
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
