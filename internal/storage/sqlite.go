// Package storage provides the SQLite-backed source-of-truth record store.
// The search index is a projection of this store; on index failure the search
// path falls back to a substring scan over these rows.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/NotDonCitron/birdsearch/internal/models"
)

// RecordStore defines the record-store boundary the search subsystem consumes.
type RecordStore interface {
	CreateRecord(ctx context.Context, rec *models.FileRecord) error
	UpdateRecord(ctx context.Context, rec *models.FileRecord) error
	GetRecord(ctx context.Context, id int64) (*models.FileRecord, error)
	DeleteRecord(ctx context.Context, id int64) error
	ListRecords(ctx context.Context, ownerID int64) ([]*models.FileRecord, error)
	// ForEachRecord streams every record in id order. When includeArchived is
	// false, archived records are skipped.
	ForEachRecord(ctx context.Context, includeArchived bool, fn func(*models.FileRecord) error) error
	// ScanSubstring is the unranked fallback search: case-insensitive substring
	// match of any term over name, descriptions, and tags, in source order.
	ScanSubstring(ctx context.Context, ownerID, workspaceID int64, includeArchived bool, terms []string, limit int) ([]*models.FileRecord, error)
	CountRecords(ctx context.Context) (int64, error)
	Close() error
}

// SQLiteStorage implements RecordStore using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS file_records (
		id INTEGER PRIMARY KEY,
		owner_id INTEGER NOT NULL,
		workspace_id INTEGER NOT NULL DEFAULT 0,
		name TEXT NOT NULL,
		user_description TEXT NOT NULL DEFAULT '',
		ai_description TEXT NOT NULL DEFAULT '',
		user_tags TEXT NOT NULL DEFAULT '',
		ai_tags TEXT NOT NULL DEFAULT '',
		path TEXT NOT NULL DEFAULT '',
		is_archived INTEGER NOT NULL DEFAULT 0,
		is_favorite INTEGER NOT NULL DEFAULT 0,
		importance_score REAL NOT NULL DEFAULT 0,
		version INTEGER NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_file_records_owner ON file_records(owner_id);
	CREATE INDEX IF NOT EXISTS idx_file_records_owner_workspace ON file_records(owner_id, workspace_id);
	`
	_, err := db.Exec(schema)
	return err
}

const recordColumns = `id, owner_id, workspace_id, name, user_description, ai_description,
	user_tags, ai_tags, path, is_archived, is_favorite, importance_score, version, updated_at`

// CreateRecord inserts a record, assigning its initial version.
func (s *SQLiteStorage) CreateRecord(ctx context.Context, rec *models.FileRecord) error {
	now := time.Now()
	rec.UpdatedAt = now
	rec.Version = now.UnixNano()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO file_records (owner_id, workspace_id, name, user_description, ai_description,
		 user_tags, ai_tags, path, is_archived, is_favorite, importance_score, version, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OwnerID, rec.WorkspaceID, rec.Name, rec.UserDescription, rec.AIDescription,
		rec.UserTags, rec.AITags, rec.Path, rec.IsArchived, rec.IsFavorite,
		rec.ImportanceScore, rec.Version, rec.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if rec.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		rec.ID = id
	}
	return nil
}

// UpdateRecord replaces all mutable fields of an existing record and bumps its
// version. Field replacement is whole-record, not a patch.
func (s *SQLiteStorage) UpdateRecord(ctx context.Context, rec *models.FileRecord) error {
	now := time.Now()
	rec.UpdatedAt = now
	rec.Version = now.UnixNano()

	result, err := s.db.ExecContext(ctx,
		`UPDATE file_records SET owner_id = ?, workspace_id = ?, name = ?, user_description = ?,
		 ai_description = ?, user_tags = ?, ai_tags = ?, path = ?, is_archived = ?,
		 is_favorite = ?, importance_score = ?, version = ?, updated_at = ?
		 WHERE id = ?`,
		rec.OwnerID, rec.WorkspaceID, rec.Name, rec.UserDescription, rec.AIDescription,
		rec.UserTags, rec.AITags, rec.Path, rec.IsArchived, rec.IsFavorite,
		rec.ImportanceScore, rec.Version, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("record not found: %d", rec.ID)
	}
	return nil
}

// GetRecord returns a record by id.
func (s *SQLiteStorage) GetRecord(ctx context.Context, id int64) (*models.FileRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM file_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record not found: %d", id)
	}
	return rec, err
}

// DeleteRecord removes a record by id. Deleting an absent id is a no-op.
func (s *SQLiteStorage) DeleteRecord(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM file_records WHERE id = ?`, id)
	return err
}

// ListRecords returns all of an owner's records in id order.
func (s *SQLiteStorage) ListRecords(ctx context.Context, ownerID int64) ([]*models.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM file_records WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ForEachRecord streams every record in id order through fn.
func (s *SQLiteStorage) ForEachRecord(ctx context.Context, includeArchived bool, fn func(*models.FileRecord) error) error {
	q := `SELECT ` + recordColumns + ` FROM file_records`
	if !includeArchived {
		q += ` WHERE is_archived = 0`
	}
	q += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ScanSubstring runs the fallback substring search in source (id) order.
// A record matches when any term appears, case-insensitively, in its name,
// either description, or either tag field.
func (s *SQLiteStorage) ScanSubstring(ctx context.Context, ownerID, workspaceID int64, includeArchived bool, terms []string, limit int) ([]*models.FileRecord, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	var sb strings.Builder
	sb.WriteString(`SELECT ` + recordColumns + ` FROM file_records WHERE owner_id = ?`)
	args := []interface{}{ownerID}
	if workspaceID > 0 {
		sb.WriteString(` AND workspace_id = ?`)
		args = append(args, workspaceID)
	}
	if !includeArchived {
		sb.WriteString(` AND is_archived = 0`)
	}
	sb.WriteString(` AND (`)
	for i, term := range terms {
		if i > 0 {
			sb.WriteString(` OR `)
		}
		sb.WriteString(`(instr(lower(name), ?) > 0 OR instr(lower(user_description), ?) > 0
			OR instr(lower(ai_description), ?) > 0 OR instr(lower(user_tags), ?) > 0
			OR instr(lower(ai_tags), ?) > 0)`)
		lowered := strings.ToLower(term)
		args = append(args, lowered, lowered, lowered, lowered, lowered)
	}
	sb.WriteString(`) ORDER BY id LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// CountRecords returns the total number of records.
func (s *SQLiteStorage) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_records`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.FileRecord, error) {
	var rec models.FileRecord
	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.WorkspaceID, &rec.Name,
		&rec.UserDescription, &rec.AIDescription, &rec.UserTags, &rec.AITags,
		&rec.Path, &rec.IsArchived, &rec.IsFavorite, &rec.ImportanceScore,
		&rec.Version, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]*models.FileRecord, error) {
	var records []*models.FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DiskUsageBytes returns the total size in bytes of the given paths
// (files or directories). Missing paths are skipped.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.Walk(p, func(_ string, fi os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !fi.IsDir() {
				total += fi.Size()
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
