package search

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/NotDonCitron/birdsearch/internal/models"
)

const ellipsis = "..."

// buildSnippet extracts a window of at most maxLen bytes from content,
// centered on the first occurrence of any term, and returns it together with
// the highlight spans of term matches inside the window. Matching is
// case-insensitive but all offsets are byte offsets into the returned snippet
// itself, so spans always lie within [0, len(snippet)). The returned snippet
// is at most maxLen plus the ellipsis in length. Empty content yields an
// empty snippet.
func buildSnippet(content string, terms []string, maxLen int) (string, []models.HighlightSpan) {
	content = strings.TrimSpace(content)
	if content == "" || maxLen <= 0 {
		return "", nil
	}

	first := -1
	for _, term := range terms {
		if term == "" {
			continue
		}
		if idx, _ := foldIndex(content, term, 0); idx >= 0 && (first < 0 || idx < first) {
			first = idx
		}
	}

	start := 0
	if len(content) > maxLen && first > 0 {
		start = first - maxLen/2
		if start < 0 {
			start = 0
		}
		if start > len(content)-maxLen {
			start = len(content) - maxLen
		}
	}
	start = alignRuneStart(content, start)
	end := start + maxLen
	if end >= len(content) {
		end = len(content)
	} else {
		end = alignRuneStart(content, end)
	}

	window := content[start:end]
	spans := highlightSpans(window, terms)
	if end < len(content) {
		window += ellipsis
	}
	return window, spans
}

// alignRuneStart moves i backwards until it sits on a rune boundary of s.
func alignRuneStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// foldIndex returns the byte offset in s of the first case-insensitive
// occurrence of term at or after from, together with the byte length of the
// matched text in s. The matched length can differ from len(term) when case
// folding changes rune widths (e.g. the Kelvin sign folding to "k").
// Returns -1, 0 when absent.
func foldIndex(s, term string, from int) (int, int) {
	if term == "" || from >= len(s) {
		return -1, 0
	}
	for i := from; i < len(s); {
		if n := matchFold(s[i:], term); n > 0 {
			return i, n
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1, 0
}

// matchFold returns the byte length of the prefix of s matching term rune by
// rune under simple case folding, or 0 when s does not start with term.
func matchFold(s, term string) int {
	n := 0
	for _, tr := range term {
		r, size := utf8.DecodeRuneInString(s[n:])
		if size == 0 {
			return 0
		}
		if unicode.ToLower(r) != unicode.ToLower(tr) {
			return 0
		}
		n += size
	}
	return n
}

// highlightSpans finds non-overlapping term matches in the window. Spans are
// sorted by start offset; a match overlapping an earlier one is dropped.
func highlightSpans(window string, terms []string) []models.HighlightSpan {
	var spans []models.HighlightSpan
	for _, term := range terms {
		if term == "" {
			continue
		}
		from := 0
		for {
			idx, n := foldIndex(window, term, from)
			if idx < 0 {
				break
			}
			spans = append(spans, models.HighlightSpan{Start: idx, End: idx + n})
			from = idx + n
		}
	}
	if len(spans) == 0 {
		return nil
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})
	out := spans[:1]
	for _, s := range spans[1:] {
		if s.Start >= out[len(out)-1].End {
			out = append(out, s)
		}
	}
	return out
}
