package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iconidentify/ytgrabba/internal/domain"
)

// defaultHistoryLimit applies when Recent is called without a positive limit.
const defaultHistoryLimit = 50

// SQLiteHistoryRepository implements HistoryRepository on a SQLite file.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteHistoryRepository opens (or creates) the history database at path.
func NewSQLiteHistoryRepository(path string) (*SQLiteHistoryRepository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS acquisitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			media_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			strategy TEXT NOT NULL,
			ok INTEGER NOT NULL,
			path TEXT,
			error_kind TEXT,
			duration_ms INTEGER NOT NULL,
			created_at_ms INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_acquisitions_created_at ON acquisitions(created_at_ms);
		CREATE INDEX IF NOT EXISTS idx_acquisitions_media_id ON acquisitions(media_id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteHistoryRepository{db: db}, nil
}

// Record stores one finished acquisition.
func (r *SQLiteHistoryRepository) Record(ctx context.Context, entry HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO acquisitions (media_id, kind, strategy, ok, path, error_kind, duration_ms, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.MediaID.String(),
		string(entry.Kind),
		string(entry.Strategy),
		entry.OK,
		entry.Path,
		entry.ErrorKind,
		entry.Duration.Milliseconds(),
		entry.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert acquisition: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (r *SQLiteHistoryRepository) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, media_id, kind, strategy, ok, path, error_kind, duration_ms, created_at_ms
		FROM acquisitions
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query acquisitions: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			e          HistoryEntry
			mediaID    string
			kind       string
			strategy   string
			path       sql.NullString
			errorKind  sql.NullString
			durationMS int64
			createdMS  int64
		)
		if err := rows.Scan(&e.ID, &mediaID, &kind, &strategy, &e.OK, &path, &errorKind, &durationMS, &createdMS); err != nil {
			return nil, fmt.Errorf("scan acquisition: %w", err)
		}
		e.MediaID = domain.MediaID(mediaID)
		e.Kind = domain.MediaKind(kind)
		e.Strategy = domain.Strategy(strategy)
		e.Path = path.String
		e.ErrorKind = errorKind.String
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.CreatedAt = time.UnixMilli(createdMS)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate acquisitions: %w", err)
	}

	return entries, nil
}

// Close closes the database.
func (r *SQLiteHistoryRepository) Close() error {
	return r.db.Close()
}
