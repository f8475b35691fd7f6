// Package search is the query-side entry point. It validates and compiles
// incoming queries, consults the inverted index, falls back to a record-store
// scan when the index is unhealthy, and ranks and decorates the results.
package search

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/NotDonCitron/birdsearch/internal/config"
	"github.com/NotDonCitron/birdsearch/internal/index"
	"github.com/NotDonCitron/birdsearch/internal/models"
	"github.com/NotDonCitron/birdsearch/internal/query"
	"github.com/NotDonCitron/birdsearch/internal/ranking"
	"github.com/NotDonCitron/birdsearch/internal/storage"
)

// Engine executes searches against the index with a storage fallback.
type Engine struct {
	idx    index.Index
	store  storage.RecordStore
	ranker atomic.Pointer[ranking.Ranker]
	cfg    config.SearchConfig
	logger *zap.Logger
}

// NewEngine creates an Engine. A nil ranker gets default ranking weights.
func NewEngine(idx index.Index, store storage.RecordStore, ranker *ranking.Ranker, cfg config.SearchConfig, logger *zap.Logger) *Engine {
	if ranker == nil {
		ranker = ranking.NewRanker(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{idx: idx, store: store, cfg: cfg, logger: logger}
	e.ranker.Store(ranker)
	return e
}

// SetRanker swaps the ranker, used when ranking weights are reloaded at
// runtime. Safe to call concurrently with searches; each search captures
// the ranker once at the start.
func (e *Engine) SetRanker(r *ranking.Ranker) {
	if r != nil {
		e.ranker.Store(r)
	}
}

// Search runs a full search request: validate, compile, look up, rank,
// paginate, and build snippets. An empty query returns an empty result set
// rather than an error.
func (e *Engine) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()

	if err := q.Validate(e.cfg.DefaultLimit, e.cfg.MaxLimit); err != nil {
		return nil, err
	}
	if q.Query == "" {
		return &models.SearchResponse{
			Results:    []*models.SearchResult{},
			Query:      "",
			EngineUsed: models.EngineIndex,
			QueryTime:  time.Since(start).Milliseconds(),
		}, nil
	}

	cq, err := query.Compile(q.Query, q.Mode, e.cfg.MinQueryLength)
	if err != nil {
		return nil, err
	}

	scope := index.Scope{
		OwnerID:         q.OwnerID,
		WorkspaceID:     q.WorkspaceID,
		IncludeArchived: q.IncludeArchived,
	}

	candidates, err := e.idx.Lookup(ctx, cq, scope, e.cfg.TopKCandidates)
	if err != nil {
		e.logger.Warn("index lookup failed, using storage fallback",
			zap.String("query", q.Query),
			zap.Error(err))
		return e.fallbackSearch(ctx, q, cq, start)
	}

	ranked := e.ranker.Load().Rank(q.Query, candidates)
	total := len(ranked)
	page := ranking.Paginate(ranked, q.Offset, q.Limit)

	terms := cq.SnippetTerms()
	results := make([]*models.SearchResult, 0, len(page))
	for _, c := range page {
		results = append(results, e.buildResult(c, terms))
	}

	return &models.SearchResponse{
		Results:    results,
		Total:      total,
		QueryTime:  time.Since(start).Milliseconds(),
		Query:      q.Query,
		EngineUsed: models.EngineIndex,
	}, nil
}

// fallbackSearch serves a degraded, unranked substring scan from the record
// store in source order. If the store also fails the search is reported as
// unavailable.
func (e *Engine) fallbackSearch(ctx context.Context, q *models.SearchQuery, cq *query.CompiledQuery, start time.Time) (*models.SearchResponse, error) {
	terms := cq.SnippetTerms()
	records, err := e.store.ScanSubstring(ctx, q.OwnerID, q.WorkspaceID, q.IncludeArchived, terms, e.cfg.FallbackScanLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: fallback scan failed: %v", ErrIndexUnavailable, err)
	}

	total := len(records)
	from := q.Offset
	if from > total {
		from = total
	}
	to := from + q.Limit
	if to > total {
		to = total
	}

	results := make([]*models.SearchResult, 0, to-from)
	for _, rec := range records[from:to] {
		c := &models.Candidate{Document: rec.Document()}
		results = append(results, e.buildResult(c, terms))
	}

	return &models.SearchResponse{
		Results:    results,
		Total:      total,
		QueryTime:  time.Since(start).Milliseconds(),
		Query:      q.Query,
		EngineUsed: models.EngineFallback,
	}, nil
}

func (e *Engine) buildResult(c *models.Candidate, terms []string) *models.SearchResult {
	doc := c.Document
	snippet, spans := buildSnippet(doc.RichestText(), terms, e.cfg.SnippetLength)
	return &models.SearchResult{
		RecordID:        doc.RecordID,
		Name:            doc.Name,
		Description:     doc.Description,
		Tags:            doc.Tags,
		Path:            doc.Path,
		WorkspaceID:     doc.WorkspaceID,
		IsFavorite:      doc.IsFavorite,
		ImportanceScore: doc.ImportanceScore,
		Rank:            c.Rank,
		Snippet:         snippet,
		HighlightSpans:  spans,
	}
}

// Suggest returns completion candidates for a prefix, scoped to one owner.
// Index failures degrade to an empty list instead of an error.
func (e *Engine) Suggest(ctx context.Context, ownerID int64, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = e.cfg.SuggestDefaultLimit
	}
	if limit > e.cfg.SuggestMaxLimit {
		limit = e.cfg.SuggestMaxLimit
	}
	prefix = query.Normalize(prefix)
	if prefix == "" {
		return []string{}, nil
	}
	suggestions, err := e.idx.Suggest(ctx, prefix, ownerID, limit)
	if err != nil {
		e.logger.Warn("suggestion lookup failed",
			zap.String("prefix", prefix),
			zap.Error(err))
		return []string{}, nil
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	return suggestions, nil
}

// Stats reports index coverage for one owner. Index failures degrade to
// zero-value statistics.
func (e *Engine) Stats(ctx context.Context, ownerID int64) (*models.Stats, error) {
	stats, err := e.idx.Stats(ctx, ownerID)
	if err != nil {
		e.logger.Warn("stats lookup failed",
			zap.Int64("owner_id", ownerID),
			zap.Error(err))
		return &models.Stats{}, nil
	}
	return stats, nil
}
