package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/NotDonCitron/birdsearch/internal/config"
	"github.com/NotDonCitron/birdsearch/internal/index"
	"github.com/NotDonCitron/birdsearch/internal/models"
	"github.com/NotDonCitron/birdsearch/internal/search"
	"github.com/NotDonCitron/birdsearch/internal/storage"
	"github.com/NotDonCitron/birdsearch/internal/syncer"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "records.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	idx, err := index.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "records.db")
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "bleve")

	sync := syncer.New(idx, store, 2, zap.NewNop())
	engine := search.NewEngine(idx, store, nil, cfg.Search, zap.NewNop())
	return NewServer(engine, sync, idx, store, cfg, zap.NewNop())
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func createRecord(t *testing.T, srv *Server, rec *models.FileRecord) *models.FileRecord {
	t.Helper()
	resp := doJSON(t, srv, http.MethodPost, "/api/v1/records", rec)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create record: status %d: %s", resp.Code, resp.Body.String())
	}
	var created models.FileRecord
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created record: %v", err)
	}
	return &created
}

func TestRecordLifecycleAndSearch(t *testing.T) {
	srv := newTestServer(t)

	created := createRecord(t, srv, &models.FileRecord{
		OwnerID:         1,
		Name:            "invoice_2024.pdf",
		UserDescription: "Q1 invoice from the vendor",
		UserTags:        "finance,invoice",
	})
	if created.ID == 0 || created.Version == 0 {
		t.Fatalf("created record missing id or version: %+v", created)
	}

	// The new record is searchable.
	resp := doJSON(t, srv, http.MethodPost, "/api/v1/search",
		&models.SearchQuery{Query: "invoice", OwnerID: 1})
	if resp.Code != http.StatusOK {
		t.Fatalf("search: status %d: %s", resp.Code, resp.Body.String())
	}
	var result models.SearchResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode search response: %v", err)
	}
	if result.Total != 1 || result.EngineUsed != models.EngineIndex {
		t.Fatalf("unexpected search response: %+v", result)
	}
	if result.Results[0].RecordID != created.ID {
		t.Errorf("got record %d, want %d", result.Results[0].RecordID, created.ID)
	}
	if result.Results[0].Snippet == "" {
		t.Error("expected a snippet")
	}

	// Update renames the record and the index follows.
	created.Name = "receipt_2024.pdf"
	resp = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/v1/records/%d", created.ID), created)
	if resp.Code != http.StatusOK {
		t.Fatalf("update: status %d: %s", resp.Code, resp.Body.String())
	}
	resp = doJSON(t, srv, http.MethodPost, "/api/v1/search",
		&models.SearchQuery{Query: "receipt", OwnerID: 1})
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode search response: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("renamed record not found: %+v", result)
	}

	// Delete removes it from both store and index.
	resp = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/v1/records/%d", created.ID), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("delete: status %d", resp.Code)
	}
	resp = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/records/%d", created.ID), nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("get after delete: status %d, want 404", resp.Code)
	}
	resp = doJSON(t, srv, http.MethodPost, "/api/v1/search",
		&models.SearchQuery{Query: "receipt", OwnerID: 1})
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode search response: %v", err)
	}
	if result.Total != 0 {
		t.Errorf("deleted record still searchable: %+v", result)
	}
}

func TestHandleSearchValidation(t *testing.T) {
	srv := newTestServer(t)

	// Missing owner.
	resp := doJSON(t, srv, http.MethodPost, "/api/v1/search", &models.SearchQuery{Query: "invoice"})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("missing owner: status %d, want 400", resp.Code)
	}

	// Query too short.
	resp = doJSON(t, srv, http.MethodPost, "/api/v1/search", &models.SearchQuery{Query: "a", OwnerID: 1})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("short query: status %d, want 400", resp.Code)
	}

	// Malformed body.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status %d, want 400", rec.Code)
	}
}

func TestHandleSuggest(t *testing.T) {
	srv := newTestServer(t)
	createRecord(t, srv, &models.FileRecord{OwnerID: 1, Name: "invoice_march.pdf"})
	createRecord(t, srv, &models.FileRecord{OwnerID: 1, Name: "invoice_april.pdf"})

	resp := doJSON(t, srv, http.MethodGet, "/api/v1/suggest?owner_id=1&q=inv", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("suggest: status %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode suggestions: %v", err)
	}
	if len(body.Suggestions) == 0 {
		t.Error("expected suggestions")
	}

	resp = doJSON(t, srv, http.MethodGet, "/api/v1/suggest?q=inv", nil)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("missing owner_id: status %d, want 400", resp.Code)
	}
}

func TestHandleStats(t *testing.T) {
	srv := newTestServer(t)
	createRecord(t, srv, &models.FileRecord{OwnerID: 1, Name: "a.txt", UserDescription: "described"})
	createRecord(t, srv, &models.FileRecord{OwnerID: 1, Name: "b.txt"})

	resp := doJSON(t, srv, http.MethodGet, "/api/v1/stats?owner_id=1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("stats: status %d: %s", resp.Code, resp.Body.String())
	}
	var stats models.Stats
	if err := json.Unmarshal(resp.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalFiles != 2 {
		t.Errorf("total_files = %d, want 2", stats.TotalFiles)
	}
	if stats.FilesWithDescription != 1 {
		t.Errorf("files_with_description = %d, want 1", stats.FilesWithDescription)
	}
}

func TestHandleMaintenance(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/api/v1/maintenance/rebuild", nil)
	if resp.Code != http.StatusAccepted {
		t.Errorf("rebuild: status %d, want 202", resp.Code)
	}
	resp = doJSON(t, srv, http.MethodPost, "/api/v1/maintenance/optimize", nil)
	if resp.Code != http.StatusAccepted {
		t.Errorf("optimize: status %d, want 202", resp.Code)
	}
}

func TestHandleCreateRecordValidation(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/api/v1/records", &models.FileRecord{Name: "no_owner.txt"})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("missing owner: status %d, want 400", resp.Code)
	}
	resp = doJSON(t, srv, http.MethodPost, "/api/v1/records", &models.FileRecord{OwnerID: 1})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("missing name: status %d, want 400", resp.Code)
	}
}

func TestHandleHealthAndStatus(t *testing.T) {
	srv := newTestServer(t)
	createRecord(t, srv, &models.FileRecord{OwnerID: 1, Name: "a.txt"})

	resp := doJSON(t, srv, http.MethodGet, "/health", nil)
	if resp.Code != http.StatusOK {
		t.Errorf("health: status %d", resp.Code)
	}

	resp = doJSON(t, srv, http.MethodGet, "/status", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status: status %d: %s", resp.Code, resp.Body.String())
	}
	var body map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if body["records"].(float64) != 1 {
		t.Errorf("records = %v, want 1", body["records"])
	}
	if body["indexed_documents"].(float64) != 1 {
		t.Errorf("indexed_documents = %v, want 1", body["indexed_documents"])
	}
}

func TestHandleMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, srv, http.MethodGet, "/metrics", nil)
	if resp.Code != http.StatusOK {
		t.Errorf("metrics: status %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("birdsearch_")) {
		t.Error("expected birdsearch metrics in exposition")
	}
}
