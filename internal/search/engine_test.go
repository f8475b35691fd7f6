package search

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/NotDonCitron/birdsearch/internal/config"
	"github.com/NotDonCitron/birdsearch/internal/index"
	"github.com/NotDonCitron/birdsearch/internal/models"
	"github.com/NotDonCitron/birdsearch/internal/query"
	"github.com/NotDonCitron/birdsearch/internal/ranking"
	"github.com/NotDonCitron/birdsearch/internal/storage"
)

// stubIndex serves canned candidates or fails on demand.
type stubIndex struct {
	candidates  []*models.Candidate
	failLookup  bool
	suggestions []string
	failSuggest bool
	stats       *models.Stats
}

func (s *stubIndex) Upsert(context.Context, *models.Document) error { return nil }
func (s *stubIndex) Remove(context.Context, int64) error            { return nil }

func (s *stubIndex) Lookup(context.Context, *query.CompiledQuery, index.Scope, int) ([]*models.Candidate, error) {
	if s.failLookup {
		return nil, errors.New("index corrupted")
	}
	return s.candidates, nil
}

func (s *stubIndex) RebuildFrom(context.Context, index.DocumentSource) error { return nil }
func (s *stubIndex) Optimize(context.Context) error                          { return nil }

func (s *stubIndex) Suggest(context.Context, string, int64, int) ([]string, error) {
	if s.failSuggest {
		return nil, errors.New("index corrupted")
	}
	return s.suggestions, nil
}

func (s *stubIndex) Stats(context.Context, int64) (*models.Stats, error) {
	if s.stats == nil {
		return nil, errors.New("index corrupted")
	}
	return s.stats, nil
}

func (s *stubIndex) DocCount() (uint64, error) { return uint64(len(s.candidates)), nil }
func (s *stubIndex) Close() error              { return nil }

// failingStore fails every operation, simulating a storage outage.
type failingStore struct{}

func (failingStore) CreateRecord(context.Context, *models.FileRecord) error { return errors.New("down") }
func (failingStore) UpdateRecord(context.Context, *models.FileRecord) error { return errors.New("down") }
func (failingStore) GetRecord(context.Context, int64) (*models.FileRecord, error) {
	return nil, errors.New("down")
}
func (failingStore) DeleteRecord(context.Context, int64) error { return errors.New("down") }
func (failingStore) ListRecords(context.Context, int64) ([]*models.FileRecord, error) {
	return nil, errors.New("down")
}
func (failingStore) ForEachRecord(context.Context, bool, func(*models.FileRecord) error) error {
	return errors.New("down")
}
func (failingStore) ScanSubstring(context.Context, int64, int64, bool, []string, int) ([]*models.FileRecord, error) {
	return nil, errors.New("down")
}
func (failingStore) CountRecords(context.Context) (int64, error) { return 0, errors.New("down") }
func (failingStore) Close() error                                { return nil }

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		DefaultLimit:        20,
		MaxLimit:            200,
		TopKCandidates:      100,
		SnippetLength:       200,
		SuggestDefaultLimit: 5,
		SuggestMaxLimit:     20,
		MinQueryLength:      2,
		FallbackScanLimit:   1000,
	}
}

func candidate(id int64, name, description string, lexical float64) *models.Candidate {
	return &models.Candidate{
		Document: &models.Document{
			RecordID:    id,
			OwnerID:     1,
			Name:        name,
			Description: description,
		},
		Lexical: lexical,
	}
}

func TestEngine_Search(t *testing.T) {
	idx := &stubIndex{candidates: []*models.Candidate{
		candidate(1, "invoice_2024.pdf", "Q1 invoice for the vendor", 2.0),
		candidate(2, "notes.txt", "meeting notes mentioning invoice", 1.0),
	}}
	e := NewEngine(idx, failingStore{}, nil, testSearchConfig(), nil)

	resp, err := e.Search(context.Background(), &models.SearchQuery{Query: "invoice", OwnerID: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.EngineUsed != models.EngineIndex {
		t.Errorf("engine = %s, want index", resp.EngineUsed)
	}
	if resp.Total != 2 || len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got total=%d len=%d", resp.Total, len(resp.Results))
	}
	if resp.Results[0].RecordID != 1 {
		t.Errorf("expected higher lexical score first, got %d", resp.Results[0].RecordID)
	}
	if resp.Results[0].Rank <= resp.Results[1].Rank {
		t.Errorf("ranks not descending: %f <= %f", resp.Results[0].Rank, resp.Results[1].Rank)
	}
	if resp.Results[0].Snippet == "" {
		t.Error("expected a snippet")
	}
	if len(resp.Results[0].HighlightSpans) == 0 {
		t.Error("expected highlight spans")
	}
}

func TestEngine_ConcurrentRankerSwap(t *testing.T) {
	idx := &stubIndex{candidates: []*models.Candidate{
		candidate(1, "invoice_2024.pdf", "Q1 invoice", 2.0),
		candidate(2, "notes.txt", "notes mentioning invoice", 1.0),
	}}
	e := NewEngine(idx, failingStore{}, nil, testSearchConfig(), nil)
	ctx := context.Background()

	done := make(chan struct{})
	swapped := make(chan struct{})
	go func() {
		defer close(swapped)
		for {
			select {
			case <-done:
				return
			default:
				e.SetRanker(ranking.NewRanker(nil))
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if _, err := e.Search(ctx, &models.SearchQuery{Query: "invoice", OwnerID: 1}); err != nil {
					t.Errorf("Search: %v", err)
					return
				}
			}
		}()
	}

	wg.Wait()
	close(done)
	<-swapped
}

func TestEngine_SearchEmptyQuery(t *testing.T) {
	e := NewEngine(&stubIndex{}, failingStore{}, nil, testSearchConfig(), nil)
	resp, err := e.Search(context.Background(), &models.SearchQuery{Query: "   ", OwnerID: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 0 || len(resp.Results) != 0 {
		t.Errorf("expected empty result, got %+v", resp)
	}
}

func TestEngine_SearchValidationErrors(t *testing.T) {
	e := NewEngine(&stubIndex{}, failingStore{}, nil, testSearchConfig(), nil)
	ctx := context.Background()

	if _, err := e.Search(ctx, &models.SearchQuery{Query: "invoice"}); err == nil {
		t.Error("expected error for missing owner")
	}
	if _, err := e.Search(ctx, &models.SearchQuery{Query: "a", OwnerID: 1}); !errors.Is(err, query.ErrTooShort) {
		t.Errorf("expected ErrTooShort, got %v", err)
	}
	if _, err := e.Search(ctx, &models.SearchQuery{Query: "invoice", OwnerID: 1, Mode: "semantic"}); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestEngine_SearchHonorsConfiguredLimits(t *testing.T) {
	cfg := testSearchConfig()
	cfg.DefaultLimit = 1
	cfg.MaxLimit = 2
	idx := &stubIndex{candidates: []*models.Candidate{
		candidate(1, "invoice a", "", 3.0),
		candidate(2, "invoice b", "", 2.0),
		candidate(3, "invoice c", "", 1.0),
	}}
	e := NewEngine(idx, failingStore{}, nil, cfg, nil)
	ctx := context.Background()

	resp, err := e.Search(ctx, &models.SearchQuery{Query: "invoice", OwnerID: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Errorf("default page = %d results, want 1", len(resp.Results))
	}

	if _, err := e.Search(ctx, &models.SearchQuery{Query: "invoice", OwnerID: 1, Limit: 3}); err == nil {
		t.Error("expected error for limit above configured cap")
	}
}

func TestEngine_SearchPagination(t *testing.T) {
	var cands []*models.Candidate
	for i := int64(1); i <= 5; i++ {
		cands = append(cands, candidate(i, "invoice", "", float64(10-i)))
	}
	e := NewEngine(&stubIndex{candidates: cands}, failingStore{}, nil, testSearchConfig(), nil)

	resp, err := e.Search(context.Background(), &models.SearchQuery{Query: "invoice", OwnerID: 1, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 5 {
		t.Errorf("total = %d, want 5", resp.Total)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected page of 2, got %d", len(resp.Results))
	}
	if resp.Results[0].RecordID != 3 || resp.Results[1].RecordID != 4 {
		t.Errorf("unexpected page: %d, %d", resp.Results[0].RecordID, resp.Results[1].RecordID)
	}
}

func TestEngine_FallbackOnIndexFailure(t *testing.T) {
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	for _, r := range []*models.FileRecord{
		{OwnerID: 1, Name: "zebra invoice"},
		{OwnerID: 1, Name: "alpha invoice"},
		{OwnerID: 1, Name: "unrelated.txt"},
	} {
		if err := store.CreateRecord(ctx, r); err != nil {
			t.Fatalf("CreateRecord: %v", err)
		}
	}

	e := NewEngine(&stubIndex{failLookup: true}, store, nil, testSearchConfig(), nil)
	resp, err := e.Search(ctx, &models.SearchQuery{Query: "invoice", OwnerID: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.EngineUsed != models.EngineFallback {
		t.Errorf("engine = %s, want fallback", resp.EngineUsed)
	}
	if resp.Total != 2 {
		t.Fatalf("expected 2 matches, got %d", resp.Total)
	}
	// Fallback preserves source order, not relevance order.
	if resp.Results[0].Name != "zebra invoice" || resp.Results[1].Name != "alpha invoice" {
		t.Errorf("unexpected order: %s, %s", resp.Results[0].Name, resp.Results[1].Name)
	}
}

func TestEngine_IndexUnavailable(t *testing.T) {
	e := NewEngine(&stubIndex{failLookup: true}, failingStore{}, nil, testSearchConfig(), nil)
	_, err := e.Search(context.Background(), &models.SearchQuery{Query: "invoice", OwnerID: 1})
	if !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestEngine_Suggest(t *testing.T) {
	idx := &stubIndex{suggestions: []string{"invoice", "invoice_draft"}}
	e := NewEngine(idx, failingStore{}, nil, testSearchConfig(), nil)
	ctx := context.Background()

	got, err := e.Suggest(ctx, 1, "inv", 0)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(got) != 2 || got[0] != "invoice" {
		t.Errorf("unexpected suggestions: %v", got)
	}

	// Empty prefix yields nothing.
	got, err = e.Suggest(ctx, 1, "  ", 5)
	if err != nil {
		t.Fatalf("Suggest(empty): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no suggestions, got %v", got)
	}

	// Index failure degrades to an empty list.
	e = NewEngine(&stubIndex{failSuggest: true}, failingStore{}, nil, testSearchConfig(), nil)
	got, err = e.Suggest(ctx, 1, "inv", 5)
	if err != nil {
		t.Fatalf("Suggest(failure): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty on failure, got %v", got)
	}
}

func TestEngine_Stats(t *testing.T) {
	idx := &stubIndex{stats: &models.Stats{TotalFiles: 7, CoveragePercentage: 50}}
	e := NewEngine(idx, failingStore{}, nil, testSearchConfig(), nil)

	got, err := e.Stats(context.Background(), 1)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if got.TotalFiles != 7 {
		t.Errorf("total = %d, want 7", got.TotalFiles)
	}

	// Failure degrades to zero values.
	e = NewEngine(&stubIndex{}, failingStore{}, nil, testSearchConfig(), nil)
	got, err = e.Stats(context.Background(), 1)
	if err != nil {
		t.Fatalf("Stats(failure): %v", err)
	}
	if got.TotalFiles != 0 {
		t.Errorf("expected zero stats, got %+v", got)
	}
}
