// Package store persists indexed documents and the file hash snapshot in
// SQLite.
//
// The store is the durable source of truth: chunk content, chunk
// metadata, and the path to content-hash table that drives incremental
// change detection. Index structures (lexical, vector) are derived from
// it and can always be rebuilt. An indexing pass commits chunks and the
// updated hash snapshot in a single transaction, with the hash rows
// written last, so a crash mid-pass leaves stale hashes and the next run
// redoes the work instead of missing it.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fathomdev/fathom/internal/chunk"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS files (
    path       TEXT PRIMARY KEY,
    hash       TEXT NOT NULL,
    size       INTEGER NOT NULL DEFAULT 0,
    mod_time   TIMESTAMP,
    indexed_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
    file_path    TEXT NOT NULL,
    chunk_id     TEXT NOT NULL,
    content      TEXT NOT NULL,
    language     TEXT NOT NULL DEFAULT '',
    chunk_type   TEXT NOT NULL DEFAULT '',
    chunk_index  INTEGER NOT NULL DEFAULT 0,
    total_chunks INTEGER NOT NULL DEFAULT 0,
    start_line   INTEGER NOT NULL DEFAULT 0,
    end_line     INTEGER NOT NULL DEFAULT 0,
    summary      TEXT NOT NULL DEFAULT '',
    file_hash    TEXT NOT NULL DEFAULT '',
    indexed_at   TIMESTAMP NOT NULL,
    PRIMARY KEY (file_path, chunk_id)
);

CREATE INDEX IF NOT EXISTS idx_chunks_chunk_id ON chunks(chunk_id);
`

// Store is a SQLite-backed document store. Safe for concurrent use; the
// connection pool is capped at one writer.
type Store struct {
	db   *sql.DB
	path string
}

// FileChunks is one file's contribution to an indexing pass.
type FileChunks struct {
	Path    string
	Hash    string
	Size    int64
	ModTime time.Time
	Chunks  []chunk.Chunk
}

// PassResult reports the index deltas produced by ApplyPass.
type PassResult struct {
	// AddedIDs are chunk IDs that entered the store this pass, in
	// insertion order, deduplicated.
	AddedIDs []string
	// OrphanedIDs are chunk IDs no longer referenced by any file.
	OrphanedIDs []string
}

// Stats summarizes store contents.
type Stats struct {
	Files        int
	Chunks       int
	UniqueChunks int
}

// Open opens or creates the store at path. A corrupted or unreadable
// database is discarded and recreated empty; the caller then sees no
// snapshot and reindexes everything.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := open(path)
	if err != nil {
		slog.Warn("document store unreadable, recreating empty",
			slog.String("path", path),
			slog.String("error", err.Error()))
		_ = os.Remove(path)
		_ = os.Remove(path + "-wal")
		_ = os.Remove(path + "-shm")
		db, err = open(path)
		if err != nil {
			return nil, fmt.Errorf("recreate store: %w", err)
		}
	}

	return &Store{db: db, path: path}, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	// SQLite wants a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	// A corrupted file can open fine and fail on first real read.
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM files").Scan(&n); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("verify store: %w", err)
	}

	return db, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Snapshot returns the persisted path to content-hash table.
func (s *Store) Snapshot(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path, hash FROM files")
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	defer rows.Close()

	snapshot := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snapshot[path] = hash
	}
	return snapshot, rows.Err()
}

// ApplyPass commits one indexing pass atomically: chunk rows for changed
// files are replaced, rows for deleted files removed, and the file hash
// table updated last. Either the whole pass lands or none of it does.
func (s *Store) ApplyPass(ctx context.Context, upserts []FileChunks, deleted []string) (*PassResult, error) {
	before, err := s.referencedIDs(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin pass: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, path := range deleted {
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE file_path = ?", path); err != nil {
			return nil, fmt.Errorf("delete chunks for %s: %w", path, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE path = ?", path); err != nil {
			return nil, fmt.Errorf("delete file row for %s: %w", path, err)
		}
	}

	for _, fc := range upserts {
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE file_path = ?", fc.Path); err != nil {
			return nil, fmt.Errorf("clear chunks for %s: %w", fc.Path, err)
		}
		for _, ch := range fc.Chunks {
			_, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO chunks
				(file_path, chunk_id, content, language, chunk_type, chunk_index,
				 total_chunks, start_line, end_line, summary, file_hash, indexed_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				fc.Path, ch.ID, ch.Content, ch.Metadata.Language,
				string(ch.Metadata.Type), ch.Metadata.ChunkIndex,
				ch.Metadata.TotalChunks, ch.Metadata.StartLine,
				ch.Metadata.EndLine, ch.Metadata.Summary,
				ch.Metadata.FileHash, ch.Metadata.IndexedAt)
			if err != nil {
				return nil, fmt.Errorf("insert chunk %s of %s: %w", ch.ID, fc.Path, err)
			}
		}
	}

	// Hash rows go in last: a pass is only acknowledged once its chunks
	// are durable.
	now := time.Now().UTC()
	for _, fc := range upserts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO files (path, hash, size, mod_time, indexed_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				hash = excluded.hash,
				size = excluded.size,
				mod_time = excluded.mod_time,
				indexed_at = excluded.indexed_at`,
			fc.Path, fc.Hash, fc.Size, fc.ModTime, now)
		if err != nil {
			return nil, fmt.Errorf("record hash for %s: %w", fc.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit pass: %w", err)
	}

	after, err := s.referencedIDs(ctx)
	if err != nil {
		return nil, err
	}

	result := &PassResult{}
	for _, id := range diffIDs(after, before) {
		result.AddedIDs = append(result.AddedIDs, id)
	}
	for _, id := range diffIDs(before, after) {
		result.OrphanedIDs = append(result.OrphanedIDs, id)
	}
	return result, nil
}

// referencedIDs returns distinct chunk IDs in first-insertion order.
func (s *Store) referencedIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT chunk_id FROM chunks GROUP BY chunk_id ORDER BY MIN(rowid)")
	if err != nil {
		return nil, fmt.Errorf("list chunk ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// diffIDs returns the elements of a absent from b, preserving a's order.
func diffIDs(a, b []string) []string {
	seen := make(map[string]struct{}, len(b))
	for _, id := range b {
		seen[id] = struct{}{}
	}
	var out []string
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// AllChunks returns every stored chunk, deduplicated by ID, in
// first-insertion order. This feeds index rebuilds.
func (s *Store) AllChunks(ctx context.Context) ([]chunk.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, content, file_path, language, chunk_type,
		       chunk_index, total_chunks, start_line, end_line, summary,
		       file_hash, indexed_at
		FROM chunks
		GROUP BY chunk_id
		ORDER BY MIN(rowid)`)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	defer rows.Close()

	var chunks []chunk.Chunk
	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// GetChunk returns one chunk by ID.
func (s *Store) GetChunk(ctx context.Context, id string) (chunk.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, content, file_path, language, chunk_type,
		       chunk_index, total_chunks, start_line, end_line, summary,
		       file_hash, indexed_at
		FROM chunks WHERE chunk_id = ? LIMIT 1`, id)
	if err != nil {
		return chunk.Chunk{}, fmt.Errorf("get chunk %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return chunk.Chunk{}, err
		}
		return chunk.Chunk{}, fmt.Errorf("chunk %s: %w", id, ErrNotFound)
	}
	return scanChunk(rows)
}

func scanChunk(rows *sql.Rows) (chunk.Chunk, error) {
	var ch chunk.Chunk
	var chunkType string
	err := rows.Scan(&ch.ID, &ch.Content, &ch.Metadata.Path,
		&ch.Metadata.Language, &chunkType, &ch.Metadata.ChunkIndex,
		&ch.Metadata.TotalChunks, &ch.Metadata.StartLine,
		&ch.Metadata.EndLine, &ch.Metadata.Summary,
		&ch.Metadata.FileHash, &ch.Metadata.IndexedAt)
	if err != nil {
		return chunk.Chunk{}, fmt.Errorf("scan chunk row: %w", err)
	}
	ch.Metadata.Type = chunk.ChunkType(chunkType)
	return ch, nil
}

// Stats reports store contents.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&st.Files); err != nil {
		return Stats{}, fmt.Errorf("count files: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&st.Chunks); err != nil {
		return Stats{}, fmt.Errorf("count chunks: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT chunk_id) FROM chunks").Scan(&st.UniqueChunks); err != nil {
		return Stats{}, fmt.Errorf("count unique chunks: %w", err)
	}
	return st, nil
}

// Reset removes all stored files and chunks.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM files"); err != nil {
		return fmt.Errorf("clear files: %w", err)
	}
	return tx.Commit()
}
