package models

import (
	"fmt"
	"strings"
)

// MatchMode selects the matching semantics for a search.
type MatchMode string

const (
	MatchExact    MatchMode = "exact"
	MatchFuzzy    MatchMode = "fuzzy"
	MatchPhrase   MatchMode = "phrase"
	MatchBoolean  MatchMode = "boolean"
	MatchWildcard MatchMode = "wildcard"
)

// ValidMatchMode reports whether m is a recognized mode.
func ValidMatchMode(m MatchMode) bool {
	switch m {
	case MatchExact, MatchFuzzy, MatchPhrase, MatchBoolean, MatchWildcard:
		return true
	}
	return false
}

// SearchQuery represents a search request.
type SearchQuery struct {
	Query           string    `json:"query"`
	OwnerID         int64     `json:"owner_id"`
	WorkspaceID     int64     `json:"workspace_id,omitempty"` // 0 = all workspaces
	Mode            MatchMode `json:"mode,omitempty"`
	Limit           int       `json:"limit,omitempty"`
	Offset          int       `json:"offset,omitempty"`
	IncludeArchived bool      `json:"include_archived,omitempty"`
}

// MaxLimit is the fallback cap on result page size when the caller does not
// supply a configured one.
const MaxLimit = 200

// DefaultLimit is the fallback page size when the caller does not supply a
// configured one.
const DefaultLimit = 20

// Validate checks the query fields and sets defaults. It rejects requests
// before any index access: empty-after-trim queries, unknown modes, negative
// offsets, and out-of-range limits. defaultLimit and maxLimit come from the
// search configuration; values below 1 fall back to the package constants.
func (q *SearchQuery) Validate(defaultLimit, maxLimit int) error {
	if defaultLimit < 1 {
		defaultLimit = DefaultLimit
	}
	if maxLimit < 1 {
		maxLimit = MaxLimit
	}
	q.Query = strings.TrimSpace(q.Query)
	if q.OwnerID <= 0 {
		return fmt.Errorf("owner_id is required")
	}
	if q.Mode == "" {
		q.Mode = MatchFuzzy
	}
	if !ValidMatchMode(q.Mode) {
		return fmt.Errorf("invalid match mode %q", q.Mode)
	}
	if q.Limit == 0 {
		q.Limit = defaultLimit
	}
	if q.Limit < 1 || q.Limit > maxLimit {
		return fmt.Errorf("limit must be between 1 and %d", maxLimit)
	}
	if q.Offset < 0 {
		return fmt.Errorf("offset must not be negative")
	}
	return nil
}
