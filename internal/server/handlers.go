package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/NotDonCitron/birdsearch/internal/metrics"
	"github.com/NotDonCitron/birdsearch/internal/models"
	"github.com/NotDonCitron/birdsearch/internal/search"
	"github.com/NotDonCitron/birdsearch/internal/storage"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request",
		zap.String("query", query.Query),
		zap.Int64("owner_id", query.OwnerID),
		zap.Int("limit", query.Limit))

	start := time.Now()
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		if errors.Is(err, search.ErrIndexUnavailable) {
			s.logger.Error("search unavailable", zap.Error(err))
			s.respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	metrics.ObserveSearch(string(response.EngineUsed), time.Since(start))
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	ownerID, err := strconv.ParseInt(r.URL.Query().Get("owner_id"), 10, 64)
	if err != nil || ownerID <= 0 {
		s.respondError(w, http.StatusBadRequest, "owner_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	prefix := r.URL.Query().Get("q")

	suggestions, err := s.engine.Suggest(r.Context(), ownerID, prefix, limit)
	if err != nil {
		s.logger.Error("suggest failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ownerID, err := strconv.ParseInt(r.URL.Query().Get("owner_id"), 10, 64)
	if err != nil || ownerID <= 0 {
		s.respondError(w, http.StatusBadRequest, "owner_id is required")
		return
	}
	stats, err := s.engine.Stats(r.Context(), ownerID)
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

type rebuildRequest struct {
	IncludeArchived *bool `json:"include_archived,omitempty"`
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	var req rebuildRequest
	if r.Body != nil {
		// An empty body means a full rebuild.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	includeArchived := true
	if req.IncludeArchived != nil {
		includeArchived = *req.IncludeArchived
	}
	s.logger.Info("rebuild requested", zap.Bool("include_archived", includeArchived))

	// Rebuilds can outlive the request. Searches keep hitting the old index
	// until the new one swaps in.
	go func() {
		if err := s.sync.Rebuild(context.Background(), includeArchived); err != nil {
			s.logger.Error("rebuild failed", zap.Error(err))
			return
		}
		if n, err := s.idx.DocCount(); err == nil {
			metrics.SetIndexedDocuments(n)
		}
		s.logger.Info("rebuild complete")
	}()
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("optimize requested")
	go func() {
		if err := s.idx.Optimize(context.Background()); err != nil {
			s.logger.Error("optimize failed", zap.Error(err))
			return
		}
		s.logger.Info("optimize complete")
	}()
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var rec models.FileRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if rec.OwnerID <= 0 || rec.Name == "" {
		s.respondError(w, http.StatusBadRequest, "owner_id and name are required")
		return
	}
	if err := s.store.CreateRecord(r.Context(), &rec); err != nil {
		s.logger.Error("create record failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// The store is the source of truth. An index failure here degrades search
	// freshness but must not fail the write.
	if err := s.sync.OnCreated(r.Context(), &rec); err != nil {
		s.logger.Warn("failed to index created record",
			zap.Int64("record_id", rec.ID), zap.Error(err))
		metrics.RecordSyncFailure()
	}
	s.respondJSON(w, http.StatusCreated, &rec)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid record id")
		return
	}
	rec, err := s.store.GetRecord(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "record not found")
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid record id")
		return
	}
	var rec models.FileRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec.ID = id
	if rec.OwnerID <= 0 || rec.Name == "" {
		s.respondError(w, http.StatusBadRequest, "owner_id and name are required")
		return
	}
	if err := s.store.UpdateRecord(r.Context(), &rec); err != nil {
		s.respondError(w, http.StatusNotFound, "record not found")
		return
	}
	if err := s.sync.OnUpdated(r.Context(), &rec); err != nil {
		s.logger.Warn("failed to index updated record",
			zap.Int64("record_id", rec.ID), zap.Error(err))
		metrics.RecordSyncFailure()
	}
	s.respondJSON(w, http.StatusOK, &rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid record id")
		return
	}
	s.logger.Debug("delete record request", zap.Int64("record_id", id))
	if err := s.store.DeleteRecord(r.Context(), id); err != nil {
		s.logger.Error("delete record failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.sync.OnDeleted(r.Context(), id); err != nil {
		s.logger.Warn("failed to remove deleted record from index",
			zap.Int64("record_id", id), zap.Error(err))
		metrics.RecordSyncFailure()
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	recordCount, err := s.store.CountRecords(r.Context())
	if err != nil {
		s.logger.Error("status: count records failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	docCount, err := s.idx.DocCount()
	if err != nil {
		s.logger.Error("status: index doc count failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.SetIndexedDocuments(docCount)

	resp := map[string]interface{}{
		"records":           recordCount,
		"indexed_documents": docCount,
		"config": map[string]interface{}{
			"database_path":    s.config.Storage.DatabasePath,
			"bleve_index_path": s.config.Storage.BleveIndexPath,
			"default_limit":    s.config.Search.DefaultLimit,
			"max_limit":        s.config.Search.MaxLimit,
		},
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.BleveIndexPath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
