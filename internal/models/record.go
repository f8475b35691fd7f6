// Package models defines core data structures for file records, queries, and search results.
package models

import (
	"strings"
	"time"

	"github.com/NotDonCitron/birdsearch/pkg/utils"
)

// FileRecord is a row in the source-of-truth record store. The search index is
// a projection of these records; the record store, not the index, is authoritative.
type FileRecord struct {
	ID              int64     `json:"id" db:"id"`
	OwnerID         int64     `json:"owner_id" db:"owner_id"`
	WorkspaceID     int64     `json:"workspace_id,omitempty" db:"workspace_id"` // 0 = no workspace
	Name            string    `json:"name" db:"name"`
	UserDescription string    `json:"user_description,omitempty" db:"user_description"`
	AIDescription   string    `json:"ai_description,omitempty" db:"ai_description"`
	UserTags        string    `json:"user_tags,omitempty" db:"user_tags"` // comma-joined
	AITags          string    `json:"ai_tags,omitempty" db:"ai_tags"`     // comma-joined
	Path            string    `json:"path,omitempty" db:"path"`
	IsArchived      bool      `json:"is_archived" db:"is_archived"`
	IsFavorite      bool      `json:"is_favorite" db:"is_favorite"`
	ImportanceScore float64   `json:"importance_score" db:"importance_score"` // 0-100
	Version         int64     `json:"version" db:"version"`                   // monotonically increasing per record
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Description returns the richer of the user-entered and AI-generated descriptions.
func (r *FileRecord) Description() string {
	user := strings.TrimSpace(r.UserDescription)
	ai := strings.TrimSpace(r.AIDescription)
	if len(ai) > len(user) {
		return ai
	}
	return user
}

// Tags merges the two comma-joined tag fields, de-duplicating case-insensitively
// while preserving the first-seen casing for display.
func (r *FileRecord) Tags() []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, raw := range [2]string{r.UserTags, r.AITags} {
		for _, tag := range utils.SplitCSV(raw) {
			key := strings.ToLower(tag)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			tags = append(tags, tag)
		}
	}
	return tags
}

// Document builds the searchable projection of the record.
func (r *FileRecord) Document() *Document {
	return &Document{
		RecordID:        r.ID,
		OwnerID:         r.OwnerID,
		WorkspaceID:     r.WorkspaceID,
		Name:            r.Name,
		Description:     r.Description(),
		Tags:            r.Tags(),
		Path:            r.Path,
		IsArchived:      r.IsArchived,
		IsFavorite:      r.IsFavorite,
		ImportanceScore: r.ImportanceScore,
		Version:         r.Version,
	}
}
