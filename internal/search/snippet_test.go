package search

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestBuildSnippet(t *testing.T) {
	long := strings.Repeat("lorem ipsum dolor sit amet ", 20) + "invoice details here " + strings.Repeat("trailing text ", 20)

	tests := []struct {
		name       string
		content    string
		terms      []string
		maxLen     int
		wantEmpty  bool
		mustHold   string
		wantSuffix string
	}{
		{
			name:      "empty content",
			content:   "",
			terms:     []string{"invoice"},
			maxLen:    200,
			wantEmpty: true,
		},
		{
			name:     "short content returned whole",
			content:  "March invoice from the vendor",
			terms:    []string{"invoice"},
			maxLen:   200,
			mustHold: "March invoice from the vendor",
		},
		{
			name:       "window centers on first match",
			content:    long,
			terms:      []string{"invoice"},
			maxLen:     80,
			mustHold:   "invoice",
			wantSuffix: ellipsis,
		},
		{
			name:       "no match starts at beginning",
			content:    long,
			terms:      []string{"zzz"},
			maxLen:     80,
			mustHold:   "lorem ipsum",
			wantSuffix: ellipsis,
		},
		{
			name:     "match is case-insensitive",
			content:  "Quarterly INVOICE summary",
			terms:    []string{"invoice"},
			maxLen:   200,
			mustHold: "INVOICE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, spans := buildSnippet(tt.content, tt.terms, tt.maxLen)
			if tt.wantEmpty {
				if got != "" || spans != nil {
					t.Fatalf("expected empty snippet, got %q", got)
				}
				return
			}
			if len(got) > tt.maxLen+len(ellipsis) {
				t.Errorf("snippet too long: %d > %d", len(got), tt.maxLen+len(ellipsis))
			}
			if !strings.Contains(got, tt.mustHold) {
				t.Errorf("snippet %q missing %q", got, tt.mustHold)
			}
			if tt.wantSuffix != "" && !strings.HasSuffix(got, tt.wantSuffix) {
				t.Errorf("snippet %q missing suffix %q", got, tt.wantSuffix)
			}
			for _, sp := range spans {
				if sp.Start < 0 || sp.End > len(got) || sp.Start >= sp.End {
					t.Errorf("span out of bounds: %+v in snippet of length %d", sp, len(got))
				}
			}
		})
	}
}

func TestHighlightSpansNonOverlapping(t *testing.T) {
	snippet, spans := buildSnippet("invoice invoices invoiced", []string{"invoice", "invoices"}, 200)
	if len(spans) == 0 {
		t.Fatal("expected spans")
	}
	for i := 1; i < len(spans); i++ {
		if spans[i].Start < spans[i-1].End {
			t.Errorf("overlapping spans: %+v and %+v", spans[i-1], spans[i])
		}
	}
	for _, sp := range spans {
		text := strings.ToLower(snippet[sp.Start:sp.End])
		if !strings.HasPrefix(text, "invoice") {
			t.Errorf("span %+v covers %q, not a term match", sp, text)
		}
	}
}

func TestBuildSnippetUnicodeFolding(t *testing.T) {
	// The Kelvin sign folds to "k" but is three bytes wide, so matching and
	// windowing must stay in the original byte space.
	kelvin := strings.Repeat("K", 100)

	tests := []struct {
		name    string
		content string
		terms   []string
		maxLen  int
	}{
		{name: "kelvin sign content", content: kelvin, terms: []string{"k"}, maxLen: 50},
		{name: "kelvin sign term", content: strings.Repeat("k", 100), terms: []string{"K"}, maxLen: 50},
		{name: "dotted capital I", content: "İnvoice report İnvoice", terms: []string{"invoice"}, maxLen: 200},
		{name: "multibyte padding around match", content: strings.Repeat("é", 200) + " invoice " + strings.Repeat("é", 200), terms: []string{"invoice"}, maxLen: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, spans := buildSnippet(tt.content, tt.terms, tt.maxLen)
			if len(got) > tt.maxLen+len(ellipsis) {
				t.Errorf("snippet too long: %d > %d", len(got), tt.maxLen+len(ellipsis))
			}
			if !utf8.ValidString(got) {
				t.Errorf("snippet is not valid UTF-8: %q", got)
			}
			if len(spans) == 0 {
				t.Fatal("expected at least one span")
			}
			for _, sp := range spans {
				if sp.Start < 0 || sp.End > len(got) || sp.Start >= sp.End {
					t.Errorf("span out of range: %+v in snippet of length %d", sp, len(got))
				}
			}
		})
	}
}

func TestBuildSnippetSpansMatchTerm(t *testing.T) {
	snippet, spans := buildSnippet("The Invoice for March and another invoice", []string{"invoice"}, 200)
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	for _, sp := range spans {
		if got := strings.ToLower(snippet[sp.Start:sp.End]); got != "invoice" {
			t.Errorf("span covers %q, want invoice", got)
		}
	}
}
