package models

// EngineUsed identifies which search path served a request.
type EngineUsed string

const (
	// EngineIndex means the inverted index served the query.
	EngineIndex EngineUsed = "index"
	// EngineFallback means the index was unavailable and an unranked
	// substring scan over the record store served the query.
	EngineFallback EngineUsed = "fallback"
)

// HighlightSpan is a half-open [Start, End) offset range into a snippet.
type HighlightSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SearchResult is a single ranked hit.
type SearchResult struct {
	RecordID        int64           `json:"record_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Tags            []string        `json:"tags,omitempty"`
	Path            string          `json:"path,omitempty"`
	WorkspaceID     int64           `json:"workspace_id,omitempty"`
	IsFavorite      bool            `json:"is_favorite"`
	ImportanceScore float64         `json:"importance_score"`
	Rank            float64         `json:"rank"`
	Snippet         string          `json:"snippet"`
	HighlightSpans  []HighlightSpan `json:"highlight_spans,omitempty"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results    []*SearchResult `json:"results"`
	Total      int             `json:"total"`
	QueryTime  int64           `json:"query_time_ms"`
	Query      string          `json:"query"`
	EngineUsed EngineUsed      `json:"engine_used"`
}

// Stats reports index coverage for one owner.
type Stats struct {
	TotalFiles           int     `json:"total_files"`
	WorkspacesCovered    int     `json:"workspaces_covered"`
	AvgNameLength        float64 `json:"avg_name_length"`
	FilesWithDescription int     `json:"files_with_description"`
	FilesWithTags        int     `json:"files_with_tags"`
	CoveragePercentage   float64 `json:"coverage_percentage"`
}
