package models

import (
	"testing"
)

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   *SearchQuery
		wantErr bool
	}{
		{"valid query", &SearchQuery{Query: "invoice", OwnerID: 1}, false},
		{"missing owner", &SearchQuery{Query: "invoice"}, true},
		{"invalid mode", &SearchQuery{Query: "invoice", OwnerID: 1, Mode: "regex"}, true},
		{"negative offset", &SearchQuery{Query: "invoice", OwnerID: 1, Offset: -1}, true},
		{"limit above cap", &SearchQuery{Query: "invoice", OwnerID: 1, Limit: 201}, true},
		{"negative limit", &SearchQuery{Query: "invoice", OwnerID: 1, Limit: -5}, true},
		{"limit at cap", &SearchQuery{Query: "invoice", OwnerID: 1, Limit: 200}, false},
		{"explicit mode", &SearchQuery{Query: "invoice", OwnerID: 1, Mode: MatchBoolean}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate(0, 0)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	t.Run("defaults applied", func(t *testing.T) {
		q := &SearchQuery{Query: "  invoice  ", OwnerID: 1}
		if err := q.Validate(0, 0); err != nil {
			t.Fatalf("Validate() error: %v", err)
		}
		if q.Query != "invoice" {
			t.Errorf("query not trimmed: %q", q.Query)
		}
		if q.Mode != MatchFuzzy {
			t.Errorf("default mode = %q, want fuzzy", q.Mode)
		}
		if q.Limit != DefaultLimit {
			t.Errorf("default limit = %d, want %d", q.Limit, DefaultLimit)
		}
	})

	t.Run("configured limits override constants", func(t *testing.T) {
		q := &SearchQuery{Query: "invoice", OwnerID: 1}
		if err := q.Validate(10, 50); err != nil {
			t.Fatalf("Validate() error: %v", err)
		}
		if q.Limit != 10 {
			t.Errorf("default limit = %d, want 10", q.Limit)
		}

		q = &SearchQuery{Query: "invoice", OwnerID: 1, Limit: 51}
		if err := q.Validate(10, 50); err == nil {
			t.Error("expected error for limit above configured cap")
		}
	})
}
