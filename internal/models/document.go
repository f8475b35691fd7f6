package models

// Document is the denormalized searchable projection of a FileRecord.
// Exactly one Document exists per non-deleted record once the synchronizer
// has processed its backlog.
type Document struct {
	RecordID        int64    `json:"record_id"`
	OwnerID         int64    `json:"owner_id"`
	WorkspaceID     int64    `json:"workspace_id,omitempty"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Path            string   `json:"path,omitempty"`
	IsArchived      bool     `json:"is_archived"`
	IsFavorite      bool     `json:"is_favorite"`
	ImportanceScore float64  `json:"importance_score"`
	Version         int64    `json:"version"`
}

// RichestText returns the text field used for snippet extraction:
// description when present, otherwise the name.
func (d *Document) RichestText() string {
	if d.Description != "" {
		return d.Description
	}
	return d.Name
}

// Candidate is a raw index hit before ranking. Lexical is the index's
// term-frequency relevance score; Rank is filled in by the ranker.
type Candidate struct {
	Document *Document
	Lexical  float64
	Rank     float64
}
