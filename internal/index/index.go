// Package index provides the searchable index over file records.
package index

import (
	"context"

	"github.com/NotDonCitron/birdsearch/internal/models"
	"github.com/NotDonCitron/birdsearch/internal/query"
)

// Scope restricts a lookup to one tenant and optionally one workspace.
// Archived documents stay indexed but are filtered out unless requested.
type Scope struct {
	OwnerID         int64
	WorkspaceID     int64 // 0 = all workspaces
	IncludeArchived bool
}

// DocumentSource streams documents into a rebuild. The source calls emit once
// per document and stops on the first error emit returns.
type DocumentSource func(emit func(*models.Document) error) error

// Index defines the index store operations. All writes for a single record id
// are serialized by the caller; reads may run concurrently with writes.
type Index interface {
	// Upsert is idempotent; it replaces any existing document with the same record id.
	Upsert(ctx context.Context, doc *models.Document) error
	// Remove is idempotent; removing an absent record id is a no-op.
	Remove(ctx context.Context, recordID int64) error
	// Lookup executes a compiled query and returns raw scored candidates,
	// not yet ranked. Errors mean the index is unavailable and the caller
	// should fall back.
	Lookup(ctx context.Context, cq *query.CompiledQuery, scope Scope, topK int) ([]*models.Candidate, error)
	// RebuildFrom clears and repopulates the index from source. Readers never
	// observe a partially rebuilt index; a failed or cancelled rebuild leaves
	// the previous index intact.
	RebuildFrom(ctx context.Context, source DocumentSource) error
	// Optimize compacts the physical index by rewriting it, without changing
	// query semantics. Reads continue to be served from the old index until
	// the swap.
	Optimize(ctx context.Context) error
	// Suggest returns distinct indexed terms starting with prefix, restricted
	// to the owner's documents, ordered by descending document frequency.
	Suggest(ctx context.Context, prefix string, ownerID int64, limit int) ([]string, error)
	// Stats reports index coverage for one owner.
	Stats(ctx context.Context, ownerID int64) (*models.Stats, error)
	// DocCount returns the total number of indexed documents.
	DocCount() (uint64, error)
	Close() error
}
