package index

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/NotDonCitron/birdsearch/internal/models"
	"github.com/NotDonCitron/birdsearch/internal/query"
)

// textFields are the fields a query term is matched against. The name field
// carries extra relevance weight; path participates in matching only.
var textFields = []string{"name", "description", "tags", "path"}

// suggestFields are the fields whose vocabulary feeds query suggestions.
var suggestFields = []string{"name", "description", "tags"}

const defaultSuggestCacheSize = 1024

// BleveIndex implements Index using a Bleve inverted index on disk.
type BleveIndex struct {
	mu             sync.RWMutex
	index          bleve.Index
	path           string
	nameBoost      float64
	dictScanLimit  int
	statsScanLimit int
	rebuildBatch   int
	suggestCache   *lru.Cache[string, []string]
	logger         *zap.Logger
}

// Option configures a BleveIndex.
type Option func(*BleveIndex)

// WithNameBoost sets the relevance weight of the name field (default 2.0).
func WithNameBoost(w float64) Option {
	return func(b *BleveIndex) {
		if w > 0 {
			b.nameBoost = w
		}
	}
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(b *BleveIndex) { b.logger = l }
}

// WithScanLimits bounds the dictionary scan for suggestions, the per-owner
// stats scan, and the rebuild batch size.
func WithScanLimits(dictScan, statsScan, rebuildBatch int) Option {
	return func(b *BleveIndex) {
		if dictScan > 0 {
			b.dictScanLimit = dictScan
		}
		if statsScan > 0 {
			b.statsScanLimit = statsScan
		}
		if rebuildBatch > 0 {
			b.rebuildBatch = rebuildBatch
		}
	}
}

// WithSuggestCacheSize sets the size of the suggestion LRU cache.
func WithSuggestCacheSize(n int) Option {
	return func(b *BleveIndex) {
		if n > 0 {
			cache, _ := lru.New[string, []string](n)
			b.suggestCache = cache
		}
	}
}

// buildMapping returns the index mapping for searchable documents.
// The standard analyzer (lowercase + tokenize, no stemming) keeps matching
// predictable; stored values retain their original casing for display.
func buildMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	for _, f := range textFields {
		docMapping.AddFieldMappingsAt(f, textFieldMapping)
	}
	numericFieldMapping := bleve.NewNumericFieldMapping()
	for _, f := range []string{"record_id", "owner_id", "workspace_id", "importance_score", "version"} {
		docMapping.AddFieldMappingsAt(f, numericFieldMapping)
	}
	boolFieldMapping := bleve.NewBooleanFieldMapping()
	docMapping.AddFieldMappingsAt("is_archived", boolFieldMapping)
	docMapping.AddFieldMappingsAt("is_favorite", boolFieldMapping)

	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// reused; remove the directory to force a mapping change to take effect.
func NewBleveIndex(path string, opts ...Option) (*BleveIndex, error) {
	idx, err := openOrCreate(path)
	if err != nil {
		return nil, err
	}
	b := &BleveIndex{
		index:          idx,
		path:           path,
		nameBoost:      2.0,
		dictScanLimit:  500,
		statsScanLimit: 10000,
		rebuildBatch:   500,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.suggestCache == nil {
		b.suggestCache, _ = lru.New[string, []string](defaultSuggestCacheSize)
	}
	return b, nil
}

func openOrCreate(path string) (bleve.Index, error) {
	if _, err := os.Stat(path); err == nil {
		idx, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return idx, nil
	}
	idx, err := bleve.New(path, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return idx, nil
}

func docID(recordID int64) string {
	return strconv.FormatInt(recordID, 10)
}

// Upsert indexes a document, replacing any previous version with the same record id.
func (b *BleveIndex) Upsert(ctx context.Context, doc *models.Document) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.suggestCache.Purge()
	return b.index.Index(docID(doc.RecordID), doc)
}

// Remove deletes a document. Removing an absent record id is a no-op.
func (b *BleveIndex) Remove(ctx context.Context, recordID int64) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.suggestCache.Purge()
	return b.index.Delete(docID(recordID))
}

// Lookup executes a compiled query restricted to scope and returns up to topK
// raw candidates with their lexical scores.
func (b *BleveIndex) Lookup(ctx context.Context, cq *query.CompiledQuery, scope Scope, topK int) ([]*models.Candidate, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	content := b.buildContentQuery(cq)
	if content == nil {
		return nil, nil
	}
	full := b.applyScope(content, scope)

	req := bleve.NewSearchRequest(full)
	req.Size = topK
	req.Fields = []string{"*"}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("index lookup failed: %w", err)
	}

	candidates := make([]*models.Candidate, 0, len(results.Hits))
	for _, hit := range results.Hits {
		doc, err := docFromFields(hit.ID, hit.Fields)
		if err != nil {
			if b.logger != nil {
				b.logger.Warn("skipping malformed hit", zap.String("id", hit.ID), zap.Error(err))
			}
			continue
		}
		candidates = append(candidates, &models.Candidate{Document: doc, Lexical: hit.Score})
	}
	return candidates, nil
}

// buildContentQuery translates the compiled expression into a Bleve query.
func (b *BleveIndex) buildContentQuery(cq *query.CompiledQuery) blevequery.Query {
	switch cq.Mode {
	case models.MatchBoolean:
		return b.buildBooleanQuery(cq.Clauses)
	default:
		if len(cq.Terms) == 0 {
			return nil
		}
		if len(cq.Terms) == 1 {
			return b.fieldDisjunction(cq.Terms[0])
		}
		queries := make([]blevequery.Query, 0, len(cq.Terms))
		for _, t := range cq.Terms {
			queries = append(queries, b.fieldDisjunction(t))
		}
		// Fuzzy and wildcard OR-combine their terms; recall over precision,
		// the ranker surfaces the best matches.
		return bleve.NewDisjunctionQuery(queries...)
	}
}

func (b *BleveIndex) buildBooleanQuery(clauses []query.Clause) blevequery.Query {
	if len(clauses) == 0 {
		return nil
	}
	bq := bleve.NewBooleanQuery()
	positive := false
	for _, c := range clauses {
		fq := b.fieldDisjunction(c.Term)
		switch c.Occur {
		case query.OccurMustNot:
			bq.AddMustNot(fq)
		case query.OccurShould:
			bq.AddShould(fq)
			positive = true
		default:
			bq.AddMust(fq)
			positive = true
		}
	}
	// A pure exclusion has no positive clause; match everything else.
	if !positive {
		bq.AddMust(bleve.NewMatchAllQuery())
	}
	return bq
}

// fieldDisjunction matches one term against all text fields, weighting the
// name field by the configured boost.
func (b *BleveIndex) fieldDisjunction(t query.Term) blevequery.Query {
	queries := make([]blevequery.Query, 0, len(textFields))
	for _, field := range textFields {
		boost := 1.0
		if field == "name" {
			boost = b.nameBoost
		}
		queries = append(queries, b.fieldQuery(t, field, boost))
	}
	return bleve.NewDisjunctionQuery(queries...)
}

func (b *BleveIndex) fieldQuery(t query.Term, field string, boost float64) blevequery.Query {
	switch {
	case t.Phrase:
		q := bleve.NewMatchPhraseQuery(t.Text)
		q.SetField(field)
		q.SetBoost(boost)
		return q
	case t.Prefix:
		// Prefix queries bypass analysis; lower-case to match indexed terms.
		q := bleve.NewPrefixQuery(strings.ToLower(t.Text))
		q.SetField(field)
		q.SetBoost(boost)
		return q
	default:
		q := bleve.NewMatchQuery(t.Text)
		q.SetField(field)
		q.SetBoost(boost)
		return q
	}
}

// applyScope wraps a content query with owner, workspace, and archival filters.
func (b *BleveIndex) applyScope(content blevequery.Query, scope Scope) blevequery.Query {
	bq := bleve.NewBooleanQuery()
	bq.AddMust(content)
	bq.AddMust(numericEq("owner_id", float64(scope.OwnerID)))
	if scope.WorkspaceID > 0 {
		bq.AddMust(numericEq("workspace_id", float64(scope.WorkspaceID)))
	}
	if !scope.IncludeArchived {
		archived := bleve.NewBoolFieldQuery(true)
		archived.SetField("is_archived")
		bq.AddMustNot(archived)
	}
	return bq
}

func numericEq(field string, value float64) blevequery.Query {
	t := true
	q := bleve.NewNumericRangeInclusiveQuery(&value, &value, &t, &t)
	q.SetField(field)
	return q
}

// RebuildFrom builds a staging index from source and atomically swaps it in.
// Readers keep using the previous index until the swap; a failed or cancelled
// rebuild leaves the previous index untouched.
func (b *BleveIndex) RebuildFrom(ctx context.Context, source DocumentSource) error {
	stagingPath := b.path + "-staging-" + uuid.New().String()
	staging, err := bleve.New(stagingPath, buildMapping())
	if err != nil {
		return fmt.Errorf("failed to create staging index: %w", err)
	}

	cleanup := func() {
		_ = staging.Close()
		_ = os.RemoveAll(stagingPath)
	}

	batch := staging.NewBatch()
	count := 0
	err = source(func(doc *models.Document) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err := batch.Index(docID(doc.RecordID), doc); err != nil {
			return err
		}
		count++
		if batch.Size() >= b.rebuildBatch {
			if err := staging.Batch(batch); err != nil {
				return err
			}
			batch = staging.NewBatch()
		}
		return nil
	})
	if err != nil {
		cleanup()
		return fmt.Errorf("rebuild aborted: %w", err)
	}
	if batch.Size() > 0 {
		if err := staging.Batch(batch); err != nil {
			cleanup()
			return fmt.Errorf("rebuild flush failed: %w", err)
		}
	}
	if err := staging.Close(); err != nil {
		_ = os.RemoveAll(stagingPath)
		return fmt.Errorf("failed to close staging index: %w", err)
	}

	if err := b.swapIn(stagingPath); err != nil {
		_ = os.RemoveAll(stagingPath)
		return err
	}
	if b.logger != nil {
		b.logger.Info("index rebuilt", zap.Int("documents", count), zap.String("path", b.path))
	}
	return nil
}

// swapIn replaces the live index directory with the staging directory under a
// short write lock.
func (b *BleveIndex) swapIn(stagingPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	oldPath := b.path + "-old-" + uuid.New().String()
	if err := b.index.Close(); err != nil {
		return fmt.Errorf("failed to close live index: %w", err)
	}
	if err := os.Rename(b.path, oldPath); err != nil {
		// Try to keep serving from the previous index.
		if idx, reopenErr := bleve.Open(b.path); reopenErr == nil {
			b.index = idx
		}
		return fmt.Errorf("failed to move live index aside: %w", err)
	}
	if err := os.Rename(stagingPath, b.path); err != nil {
		_ = os.Rename(oldPath, b.path)
		if idx, reopenErr := bleve.Open(b.path); reopenErr == nil {
			b.index = idx
		}
		return fmt.Errorf("failed to move staging index in place: %w", err)
	}
	idx, err := bleve.Open(b.path)
	if err != nil {
		return fmt.Errorf("failed to open swapped index: %w", err)
	}
	b.index = idx
	b.suggestCache.Purge()
	_ = os.RemoveAll(oldPath)
	return nil
}

// Optimize compacts the index by rewriting its current contents into a fresh
// index and swapping it in. Query semantics are unchanged.
func (b *BleveIndex) Optimize(ctx context.Context) error {
	return b.RebuildFrom(ctx, func(emit func(*models.Document) error) error {
		return b.forEachDocument(ctx, emit)
	})
}

// forEachDocument pages through every stored document in id order.
func (b *BleveIndex) forEachDocument(ctx context.Context, emit func(*models.Document) error) error {
	b.mu.RLock()
	idx := b.index
	b.mu.RUnlock()

	var after []string
	for {
		q := bleve.NewMatchAllQuery()
		req := bleve.NewSearchRequest(q)
		req.Size = b.rebuildBatch
		req.Fields = []string{"*"}
		req.SortBy([]string{"_id"})
		if after != nil {
			req.SearchAfter = after
		}
		results, err := idx.SearchInContext(ctx, req)
		if err != nil {
			return err
		}
		if len(results.Hits) == 0 {
			return nil
		}
		for _, hit := range results.Hits {
			doc, err := docFromFields(hit.ID, hit.Fields)
			if err != nil {
				continue
			}
			if err := emit(doc); err != nil {
				return err
			}
		}
		last := results.Hits[len(results.Hits)-1]
		after = []string{last.ID}
	}
}

// Suggest scans the indexed vocabulary for terms starting with prefix,
// restricted to the owner's documents, ordered by descending frequency with
// alphabetical tie-break.
func (b *BleveIndex) Suggest(ctx context.Context, prefix string, ownerID int64, limit int) ([]string, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" || limit < 1 {
		return nil, nil
	}
	cacheKey := fmt.Sprintf("%d|%s|%d", ownerID, prefix, limit)
	if cached, ok := b.suggestCache.Get(cacheKey); ok {
		return cached, nil
	}

	b.mu.RLock()
	idx := b.index
	terms, err := b.termsWithPrefix(idx, prefix)
	if err != nil {
		b.mu.RUnlock()
		return nil, err
	}

	type scored struct {
		term string
		freq int
	}
	suggestions := make([]scored, 0, len(terms))
	for _, term := range terms {
		freq, err := b.ownerTermFrequency(ctx, idx, term, ownerID)
		if err != nil {
			b.mu.RUnlock()
			return nil, err
		}
		if freq > 0 {
			suggestions = append(suggestions, scored{term: term, freq: freq})
		}
	}
	b.mu.RUnlock()

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].freq != suggestions[j].freq {
			return suggestions[i].freq > suggestions[j].freq
		}
		return suggestions[i].term < suggestions[j].term
	})
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	out := make([]string, len(suggestions))
	for i, s := range suggestions {
		out[i] = s.term
	}
	b.suggestCache.Add(cacheKey, out)
	return out, nil
}

// termsWithPrefix collects distinct dictionary terms with the given prefix
// across the suggestion fields, bounded by the dictionary scan limit.
func (b *BleveIndex) termsWithPrefix(idx bleve.Index, prefix string) ([]string, error) {
	seen := make(map[string]struct{})
	var terms []string
	for _, field := range suggestFields {
		dict, err := idx.FieldDictPrefix(field, []byte(prefix))
		if err != nil {
			return nil, fmt.Errorf("field dict for %q failed: %w", field, err)
		}
		for len(terms) < b.dictScanLimit {
			entry, err := dict.Next()
			if err != nil || entry == nil {
				break
			}
			if _, ok := seen[entry.Term]; ok {
				continue
			}
			seen[entry.Term] = struct{}{}
			terms = append(terms, entry.Term)
		}
		_ = dict.Close()
	}
	return terms, nil
}

// ownerTermFrequency counts the owner's documents containing term in any
// suggestion field.
func (b *BleveIndex) ownerTermFrequency(ctx context.Context, idx bleve.Index, term string, ownerID int64) (int, error) {
	fieldQueries := make([]blevequery.Query, 0, len(suggestFields))
	for _, field := range suggestFields {
		tq := bleve.NewTermQuery(term)
		tq.SetField(field)
		fieldQueries = append(fieldQueries, tq)
	}
	bq := bleve.NewBooleanQuery()
	bq.AddMust(bleve.NewDisjunctionQuery(fieldQueries...))
	bq.AddMust(numericEq("owner_id", float64(ownerID)))

	req := bleve.NewSearchRequest(bq)
	req.Size = 0
	results, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return 0, err
	}
	return int(results.Total), nil
}

// Stats aggregates index coverage for one owner. TotalFiles is the exact
// match count; the per-field aggregates are computed over the first
// statsScanLimit documents and treated as a sample for large owners.
func (b *BleveIndex) Stats(ctx context.Context, ownerID int64) (*models.Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bq := bleve.NewBooleanQuery()
	bq.AddMust(bleve.NewMatchAllQuery())
	bq.AddMust(numericEq("owner_id", float64(ownerID)))
	req := bleve.NewSearchRequest(bq)
	req.Size = b.statsScanLimit
	req.Fields = []string{"name", "description", "tags", "workspace_id"}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("stats scan failed: %w", err)
	}

	stats := &models.Stats{TotalFiles: int(results.Total)}
	workspaces := make(map[int64]struct{})
	totalNameLen := 0
	scanned := 0
	for _, hit := range results.Hits {
		scanned++
		name := fieldString(hit.Fields, "name")
		totalNameLen += len(name)
		if fieldString(hit.Fields, "description") != "" {
			stats.FilesWithDescription++
		}
		if len(fieldStrings(hit.Fields, "tags")) > 0 {
			stats.FilesWithTags++
		}
		if ws := int64(fieldFloat(hit.Fields, "workspace_id")); ws > 0 {
			workspaces[ws] = struct{}{}
		}
	}
	stats.WorkspacesCovered = len(workspaces)
	if scanned > 0 {
		stats.AvgNameLength = float64(totalNameLen) / float64(scanned)
	}
	denom := scanned
	if denom < 1 {
		denom = 1
	}
	stats.CoveragePercentage = float64(stats.FilesWithDescription+stats.FilesWithTags) / float64(denom) * 100
	return stats, nil
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index.DocCount()
}

// Close closes the underlying Bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}

// docFromFields reconstructs a document from a hit's stored fields.
func docFromFields(id string, fields map[string]interface{}) (*models.Document, error) {
	recordID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed document id %q: %w", id, err)
	}
	return &models.Document{
		RecordID:        recordID,
		OwnerID:         int64(fieldFloat(fields, "owner_id")),
		WorkspaceID:     int64(fieldFloat(fields, "workspace_id")),
		Name:            fieldString(fields, "name"),
		Description:     fieldString(fields, "description"),
		Tags:            fieldStrings(fields, "tags"),
		Path:            fieldString(fields, "path"),
		IsArchived:      fieldBool(fields, "is_archived"),
		IsFavorite:      fieldBool(fields, "is_favorite"),
		ImportanceScore: fieldFloat(fields, "importance_score"),
		Version:         int64(fieldFloat(fields, "version")),
	}, nil
}

func fieldString(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func fieldFloat(fields map[string]interface{}, key string) float64 {
	if v, ok := fields[key].(float64); ok {
		return v
	}
	return 0
}

func fieldBool(fields map[string]interface{}, key string) bool {
	if v, ok := fields[key].(bool); ok {
		return v
	}
	return false
}

// fieldStrings handles the single-value and multi-value shapes Bleve returns
// for stored array fields.
func fieldStrings(fields map[string]interface{}, key string) []string {
	switch v := fields[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
