// Package syncer keeps the search index in step with the record store. Record
// lifecycle events flow through it, and it guards against out-of-order
// delivery with per-record version tracking.
package syncer

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NotDonCitron/birdsearch/internal/index"
	"github.com/NotDonCitron/birdsearch/internal/models"
	"github.com/NotDonCitron/birdsearch/internal/storage"
)

const recordLockStripes = 16

// Syncer applies record lifecycle events to the index.
type Syncer struct {
	idx     index.Index
	store   storage.RecordStore
	logger  *zap.Logger
	workers int

	mu       sync.Mutex
	versions map[int64]int64

	// recordLocks serializes admit-then-upsert per record so a stale event
	// cannot overwrite a newer document after losing the version check.
	recordLocks [recordLockStripes]sync.Mutex
}

// New creates a Syncer. workers bounds the concurrency of PopulateAll; values
// below 1 are treated as 1.
func New(idx index.Index, store storage.RecordStore, workers int, logger *zap.Logger) *Syncer {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		idx:      idx,
		store:    store,
		logger:   logger,
		workers:  workers,
		versions: make(map[int64]int64),
	}
}

func (s *Syncer) lockRecord(recordID int64) *sync.Mutex {
	return &s.recordLocks[uint64(recordID)%recordLockStripes]
}

// admit records the version if it is newer than the last one seen for the
// record. Stale or duplicate versions are rejected. On acceptance it returns
// the previous version and whether one existed, so a failed apply can be
// rolled back.
func (s *Syncer) admit(recordID, version int64) (prev int64, had bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had = s.versions[recordID]
	if had && version <= prev {
		return 0, false, false
	}
	s.versions[recordID] = version
	return prev, had, true
}

// revert undoes an admit whose apply failed, unless a newer version was
// admitted in the meantime.
func (s *Syncer) revert(recordID, version, prev int64, had bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions[recordID] != version {
		return
	}
	if had {
		s.versions[recordID] = prev
	} else {
		delete(s.versions, recordID)
	}
}

func (s *Syncer) forget(recordID int64) {
	s.mu.Lock()
	delete(s.versions, recordID)
	s.mu.Unlock()
}

// OnCreated indexes a newly created record.
func (s *Syncer) OnCreated(ctx context.Context, rec *models.FileRecord) error {
	_, err := s.apply(ctx, rec)
	return err
}

// OnUpdated re-indexes an updated record. Events carrying a version at or
// below the last applied one are discarded.
func (s *Syncer) OnUpdated(ctx context.Context, rec *models.FileRecord) error {
	_, err := s.apply(ctx, rec)
	return err
}

// apply admits and upserts one record under its stripe lock. It reports
// whether the record was written to the index; stale events return false, nil.
func (s *Syncer) apply(ctx context.Context, rec *models.FileRecord) (bool, error) {
	lock := s.lockRecord(rec.ID)
	lock.Lock()
	defer lock.Unlock()

	prev, had, ok := s.admit(rec.ID, rec.Version)
	if !ok {
		s.logger.Debug("discarding stale record event",
			zap.Int64("record_id", rec.ID),
			zap.Int64("version", rec.Version))
		return false, nil
	}
	if err := s.idx.Upsert(ctx, rec.Document()); err != nil {
		s.revert(rec.ID, rec.Version, prev, had)
		return false, err
	}
	return true, nil
}

// OnDeleted removes a record from the index. Unknown ids are a no-op.
func (s *Syncer) OnDeleted(ctx context.Context, recordID int64) error {
	lock := s.lockRecord(recordID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.idx.Remove(ctx, recordID); err != nil {
		return err
	}
	s.forget(recordID)
	return nil
}

// PopulateAll streams the active record set from the store into the index
// using a bounded worker pool. Individual record failures are logged and
// skipped; the first store-level error aborts the run. It returns the number
// of records indexed.
func (s *Syncer) PopulateAll(ctx context.Context) (int64, error) {
	g, gctx := errgroup.WithContext(ctx)
	records := make(chan *models.FileRecord, s.workers*2)

	var indexed int64
	var indexedMu sync.Mutex

	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			for rec := range records {
				written, err := s.apply(gctx, rec)
				if err != nil {
					s.logger.Warn("failed to index record during populate",
						zap.Int64("record_id", rec.ID),
						zap.Error(err))
					continue
				}
				if !written {
					continue
				}
				indexedMu.Lock()
				indexed++
				indexedMu.Unlock()
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(records)
		return s.store.ForEachRecord(gctx, false, func(rec *models.FileRecord) error {
			select {
			case records <- rec:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	if err := g.Wait(); err != nil {
		return indexed, err
	}
	return indexed, nil
}

// Rebuild reconstructs the index from the record store in the background and
// atomically swaps it in. Searches keep hitting the old index until the swap.
// When includeArchived is false, archived records are left out entirely.
func (s *Syncer) Rebuild(ctx context.Context, includeArchived bool) error {
	source := func(emit func(*models.Document) error) error {
		return s.store.ForEachRecord(ctx, includeArchived, func(rec *models.FileRecord) error {
			return emit(rec.Document())
		})
	}
	if err := s.idx.RebuildFrom(ctx, source); err != nil {
		return err
	}
	s.resetVersions(ctx)
	return nil
}

// resetVersions reseeds the version guard from the store after a rebuild so
// events that raced the rebuild are still ordered correctly.
func (s *Syncer) resetVersions(ctx context.Context) {
	fresh := make(map[int64]int64)
	err := s.store.ForEachRecord(ctx, true, func(rec *models.FileRecord) error {
		fresh[rec.ID] = rec.Version
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to reseed version guard after rebuild", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.versions = fresh
	s.mu.Unlock()
}
