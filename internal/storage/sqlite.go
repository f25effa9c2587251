package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/ragindex/internal/apperr"
	"github.com/hyperjump/ragindex/internal/models"
	"github.com/hyperjump/ragindex/internal/vector"
)

// SQLiteStore implements Store on a single SQLite database. Vectors are stored as
// float32 blobs and scored in process; scalar metadata is mirrored into
// embedding_metadata so filters run as SQL.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	// Write transactions take the lock at BEGIN so concurrent writers wait on
	// busy_timeout instead of failing on a read-to-write upgrade.
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
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

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		dimensions INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS embeddings (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		vector BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id),
		FOREIGN KEY (collection) REFERENCES collections(name) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS embedding_metadata (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		key TEXT NOT NULL,
		kind TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (collection, id, key),
		FOREIGN KEY (collection, id) REFERENCES embeddings(collection, id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_embedding_metadata_kv ON embedding_metadata(collection, key, kind, value);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// EnsureCollection creates the collection if it does not exist.
func (s *SQLiteStore) EnsureCollection(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO collections (name) VALUES (?)`, name)
	return apperr.StoreUnavailable("ensure collection", err)
}

// Collections returns all collection names in order.
func (s *SQLiteStore) Collections(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, "list collections", `SELECT name FROM collections ORDER BY name`)
}

// IDs returns the IDs stored in collection in insertion order.
func (s *SQLiteStore) IDs(ctx context.Context, collection string) ([]string, error) {
	return s.queryStrings(ctx, "list ids",
		`SELECT id FROM embeddings WHERE collection = ? ORDER BY rowid`, collection)
}

func (s *SQLiteStore) queryStrings(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.StoreUnavailable(op, err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, apperr.StoreUnavailable(op, err)
		}
		out = append(out, v)
	}
	return out, apperr.StoreUnavailable(op, rows.Err())
}

// Add inserts records in a single transaction, ignoring IDs already present.
// It returns the number of rows actually inserted.
func (s *SQLiteStore) Add(ctx context.Context, collection string, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperr.StoreUnavailable("begin add", err)
	}
	defer tx.Rollback()

	if err := checkDimensions(ctx, tx, collection, len(records[0].Vector)); err != nil {
		return 0, err
	}

	embStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO embeddings (collection, id, content, metadata, vector)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, apperr.StoreUnavailable("prepare add", err)
	}
	defer embStmt.Close()

	metaStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO embedding_metadata (collection, id, key, kind, value)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, apperr.StoreUnavailable("prepare add metadata", err)
	}
	defer metaStmt.Close()

	inserted := 0
	for _, rec := range records {
		if len(rec.Vector) != len(records[0].Vector) {
			return 0, apperr.InvalidArgument("record %s has %d dimensions, batch has %d", rec.ID, len(rec.Vector), len(records[0].Vector))
		}
		metadataJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal metadata for %s: %w", rec.ID, err)
		}
		res, err := embStmt.ExecContext(ctx, collection, rec.ID, rec.Content, string(metadataJSON), vector.Encode(rec.Vector))
		if err != nil {
			return 0, apperr.StoreUnavailable("add", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		inserted++
		for key, v := range rec.Metadata {
			kind, text, ok := models.CanonicalValue(v)
			if !ok {
				continue
			}
			if _, err := metaStmt.ExecContext(ctx, collection, rec.ID, key, kind, text); err != nil {
				return 0, apperr.StoreUnavailable("add metadata", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, apperr.StoreUnavailable("commit add", err)
	}
	return inserted, nil
}

// checkDimensions pins the collection's dimension on first write and rejects mismatches after.
func checkDimensions(ctx context.Context, tx *sql.Tx, collection string, dims int) error {
	var stored int
	err := tx.QueryRowContext(ctx, `SELECT dimensions FROM collections WHERE name = ?`, collection).Scan(&stored)
	if err == sql.ErrNoRows {
		return apperr.NotFound("collection %q", collection)
	}
	if err != nil {
		return apperr.StoreUnavailable("read collection", err)
	}
	if stored == 0 {
		_, err := tx.ExecContext(ctx, `UPDATE collections SET dimensions = ? WHERE name = ?`, dims, collection)
		return apperr.StoreUnavailable("pin dimensions", err)
	}
	if stored != dims {
		return apperr.InvalidArgument("collection %q holds %d-dimensional vectors, got %d", collection, stored, dims)
	}
	return nil
}

// Query scores every entry matching terms against query and returns the best k.
func (s *SQLiteStore) Query(ctx context.Context, collection string, query []float32, k int, terms []models.FilterTerm) ([]Match, error) {
	if k <= 0 {
		return nil, apperr.InvalidArgument("k must be positive, got %d", k)
	}
	var b strings.Builder
	b.WriteString(`SELECT e.id, e.content, e.metadata, e.vector FROM embeddings e WHERE e.collection = ?`)
	args := []any{collection}
	for _, t := range terms {
		kind, text, ok := models.CanonicalValue(t.Value)
		if !ok {
			return nil, apperr.InvalidArgument("filter value for %q has unsupported type %T", t.Key, t.Value)
		}
		b.WriteString(` AND EXISTS (SELECT 1 FROM embedding_metadata m
			WHERE m.collection = e.collection AND m.id = e.id AND m.key = ? AND m.kind = ? AND m.value = ?)`)
		args = append(args, t.Key, kind, text)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, apperr.StoreUnavailable("query", err)
	}
	defer rows.Close()

	type candidate struct {
		content  string
		metadata string
	}
	candidates := make(map[string]candidate)
	var hits []vector.Hit
	for rows.Next() {
		var (
			id, content, metadataJSON string
			blob                      []byte
		)
		if err := rows.Scan(&id, &content, &metadataJSON, &blob); err != nil {
			return nil, apperr.StoreUnavailable("query scan", err)
		}
		vec, err := vector.Decode(blob)
		if err != nil {
			return nil, apperr.StoreUnavailable("query decode", err)
		}
		if len(vec) != len(query) {
			return nil, apperr.InvalidArgument("query has %d dimensions, collection %q holds %d", len(query), collection, len(vec))
		}
		candidates[id] = candidate{content: content, metadata: metadataJSON}
		hits = append(hits, vector.Hit{ID: id, Score: vector.Cosine(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StoreUnavailable("query", err)
	}

	hits = vector.TopK(hits, k)
	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		c := candidates[h.ID]
		var meta models.Metadata
		if c.metadata != "" {
			if err := json.Unmarshal([]byte(c.metadata), &meta); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", h.ID, err)
			}
		}
		matches = append(matches, Match{ID: h.ID, Content: c.content, Metadata: meta, Score: h.Score})
	}
	return matches, nil
}

// Count returns the number of entries in collection.
func (s *SQLiteStore) Count(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings WHERE collection = ?`, collection).Scan(&count)
	return count, apperr.StoreUnavailable("count", err)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
