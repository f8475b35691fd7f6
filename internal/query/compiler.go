// Package query compiles raw query strings into normalized expressions
// executable against the search index.
package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/NotDonCitron/birdsearch/internal/models"
	"github.com/NotDonCitron/birdsearch/pkg/utils"
)

// ErrTooShort is returned when a query is shorter than the configured minimum
// after normalization.
var ErrTooShort = errors.New("query too short")

// disallowed matches every character outside word characters, whitespace,
// hyphen, double-quote, and asterisk.
var disallowed = regexp.MustCompile(`[^\p{L}\p{N}_\s\-"*]+`)

// Occur is the boolean role of a clause.
type Occur int

const (
	// OccurMust requires the clause to match.
	OccurMust Occur = iota
	// OccurShould makes the clause optional (OR semantics).
	OccurShould
	// OccurMustNot excludes documents matching the clause.
	OccurMustNot
)

// Term is a single matchable unit of a compiled query.
type Term struct {
	Text   string
	Prefix bool // trailing-wildcard prefix match
	Phrase bool // exact token-adjacency phrase match
}

// Clause pairs a term with its boolean role. Only boolean-mode queries
// produce clauses.
type Clause struct {
	Occur Occur
	Term  Term
}

// CompiledQuery is the normalized, executable form of a user query.
// It is transient; nothing persists it.
type CompiledQuery struct {
	Mode       models.MatchMode
	Raw        string
	Normalized string
	// Terms holds the expression for exact/phrase/fuzzy/wildcard modes.
	// Fuzzy and wildcard terms are OR-combined by the executor.
	Terms []Term
	// Clauses holds the expression for boolean mode.
	Clauses []Clause
}

// Normalize strips disallowed characters, collapses whitespace, and trims.
func Normalize(raw string) string {
	return utils.CollapseWhitespace(disallowed.ReplaceAllString(raw, " "))
}

// Compile translates a raw query plus match mode into a CompiledQuery.
// minLength is the minimum normalized query length; shorter queries return
// ErrTooShort. The caller is expected to short-circuit empty queries before
// compiling.
func Compile(raw string, mode models.MatchMode, minLength int) (*CompiledQuery, error) {
	if !models.ValidMatchMode(mode) {
		return nil, fmt.Errorf("invalid match mode %q", mode)
	}
	normalized := Normalize(raw)
	if len([]rune(normalized)) < minLength {
		return nil, fmt.Errorf("%w: %q", ErrTooShort, normalized)
	}

	cq := &CompiledQuery{Mode: mode, Raw: raw, Normalized: normalized}
	switch mode {
	case models.MatchExact, models.MatchPhrase:
		cq.Terms = []Term{{Text: stripQuotes(normalized), Phrase: true}}
	case models.MatchWildcard:
		for _, tok := range strings.Fields(normalized) {
			if text := trimWildcards(tok); text != "" {
				cq.Terms = append(cq.Terms, Term{Text: text, Prefix: true})
			}
		}
	case models.MatchBoolean:
		cq.Clauses = compileBoolean(normalized)
	default: // fuzzy
		for _, tok := range strings.Fields(normalized) {
			if text := trimWildcards(stripQuotes(tok)); text != "" {
				cq.Terms = append(cq.Terms, Term{Text: text, Prefix: true})
			}
		}
	}
	return cq, nil
}

// compileBoolean interprets user-supplied AND/OR/NOT operators and quoting.
// The default operator between adjacent terms is AND; OR applies to the term
// that follows it (and retroactively relaxes the preceding term), NOT excludes
// the term that follows it.
func compileBoolean(normalized string) []Clause {
	tokens := tokenizeQuoted(normalized)
	var clauses []Clause
	negateNext := false
	orNext := false
	for _, tok := range tokens {
		switch strings.ToUpper(tok.text) {
		case "AND":
			continue
		case "OR":
			// Relax the previous clause so "a OR b" means either side.
			if n := len(clauses); n > 0 && clauses[n-1].Occur == OccurMust {
				clauses[n-1].Occur = OccurShould
			}
			orNext = true
			continue
		case "NOT":
			negateNext = true
			continue
		}
		text := trimWildcards(tok.text)
		if text == "" {
			continue
		}
		occur := OccurMust
		if orNext {
			occur = OccurShould
		}
		if negateNext {
			occur = OccurMustNot
		}
		clauses = append(clauses, Clause{Occur: occur, Term: Term{Text: text, Phrase: tok.quoted}})
		negateNext = false
		orNext = false
	}
	return clauses
}

type quotedToken struct {
	text   string
	quoted bool
}

// tokenizeQuoted splits on whitespace, keeping double-quoted runs together.
func tokenizeQuoted(s string) []quotedToken {
	var tokens []quotedToken
	rest := s
	for rest != "" {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			break
		}
		if rest[0] == '"' {
			end := strings.IndexByte(rest[1:], '"')
			if end >= 0 {
				tokens = append(tokens, quotedToken{text: rest[1 : end+1], quoted: true})
				rest = rest[end+2:]
				continue
			}
			// Unterminated quote: treat the quote char as noise.
			rest = rest[1:]
			continue
		}
		end := strings.IndexByte(rest, ' ')
		if end < 0 {
			tokens = append(tokens, quotedToken{text: rest})
			break
		}
		tokens = append(tokens, quotedToken{text: rest[:end]})
		rest = rest[end:]
	}
	return tokens
}

// SnippetTerms returns the plain lower-cased terms of the query for snippet
// extraction and highlighting. Phrases contribute whole; operators, quotes,
// and wildcard markers are dropped.
func (cq *CompiledQuery) SnippetTerms() []string {
	var out []string
	add := func(t Term) {
		text := strings.ToLower(strings.TrimSpace(t.Text))
		if text != "" {
			out = append(out, text)
		}
	}
	for _, t := range cq.Terms {
		add(t)
	}
	for _, c := range cq.Clauses {
		if c.Occur == OccurMustNot {
			continue
		}
		add(c.Term)
	}
	return out
}

func stripQuotes(s string) string {
	return strings.Trim(s, `"`)
}

func trimWildcards(s string) string {
	return strings.Trim(s, "*")
}
