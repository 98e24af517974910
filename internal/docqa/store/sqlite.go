package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kart-io/logger"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/imezh/RAG-agent/internal/docqa/store/migrations"
	"github.com/imezh/RAG-agent/internal/model"
)

// SQLiteStore persists chunks and embeddings in a local SQLite database.
// Similarity search loads the collection's embeddings and ranks them by
// cosine similarity in process, which is adequate for the corpus sizes a
// single-node deployment indexes.
type SQLiteStore struct {
	db         *sql.DB
	path       string
	collection string
}

// NewSQLiteStore opens (or creates) the database file at dbPath and runs
// pending schema migrations. All operations are scoped to the named
// collection.
func NewSQLiteStore(dbPath, collection string) (*SQLiteStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name must not be empty")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	// WAL keeps readers unblocked while the indexer writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath, collection: collection}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Infow("Vector store ready", "path", dbPath, "collection", collection)
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Collection returns the collection name this store writes to.
func (s *SQLiteStore) Collection() string {
	return s.collection
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate applies all pending *.up.sql migrations in name order.
func (s *SQLiteStore) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// Add upserts the chunks in a single transaction. The collection's
// dimension is fixed by the first batch ever written; any chunk whose
// embedding differs in length aborts the whole batch with
// ErrDimensionMismatch and leaves the store untouched.
func (s *SQLiteStore) Add(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	dim, err := s.collectionDimension(ctx, tx)
	if err != nil {
		return err
	}
	if dim == 0 {
		dim = len(chunks[0].Embedding)
		if dim == 0 {
			return fmt.Errorf("%w: chunk has no embedding", ErrDimensionMismatch)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO collections (name, dimension) VALUES (?, ?)", s.collection, dim); err != nil {
			return fmt.Errorf("creating collection: %w", err)
		}
	}
	for _, c := range chunks {
		if len(c.Embedding) != dim {
			return fmt.Errorf("%w: collection %q expects %d, chunk %q has %d",
				ErrDimensionMismatch, s.collection, dim, c.DocumentName, len(c.Embedding))
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, collection, document_id, document_name, page, position, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_name = excluded.document_name,
			page = excluded.page,
			position = excluded.position,
			content = excluded.content,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		id := c.ID
		if id == "" {
			id = chunkID(s.collection, c)
		}
		if _, err := stmt.ExecContext(ctx, id, s.collection, c.DocumentID, c.DocumentName,
			c.Page, c.Position, c.Content, float32SliceToBytes(c.Embedding)); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Query ranks every stored chunk by cosine similarity and returns the topK
// best matches. Ties keep insertion order, so results are deterministic.
func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return []SearchResult{}, nil
	}

	dim, err := s.collectionDimension(ctx, nil)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return []SearchResult{}, nil
	}
	if len(embedding) != dim {
		return nil, fmt.Errorf("%w: collection %q expects %d, query has %d",
			ErrDimensionMismatch, s.collection, dim, len(embedding))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, document_name, page, content, embedding
		FROM chunks WHERE collection = ?
		ORDER BY rowid
	`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	results := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		var blob []byte
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.DocumentName, &r.Page, &r.Content, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		r.Score = cosineSimilarity(embedding, bytesToFloat32Slice(blob))
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Count returns the number of chunks in the collection.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE collection = ?", s.collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Clear drops every chunk in the collection and forgets its dimension, so
// the next Add may use a different embedding model.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE collection = ?", s.collection); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", s.collection); err != nil {
		return fmt.Errorf("clearing collection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	logger.Infow("Vector store cleared", "collection", s.collection)
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// collectionDimension returns the stored dimension, or zero when the
// collection has never been written.
func (s *SQLiteStore) collectionDimension(ctx context.Context, tx querier) (int, error) {
	q := querier(s.db)
	if tx != nil {
		q = tx
	}
	var dim int
	err := q.QueryRowContext(ctx,
		"SELECT dimension FROM collections WHERE name = ?", s.collection).Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading collection dimension: %w", err)
	}
	return dim, nil
}

// chunkID derives a stable ID from the chunk's identity, so re-indexing an
// unchanged document rewrites the same rows.
func chunkID(collection string, c model.Chunk) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%d\x00%s", collection, c.DocumentID, c.Page, c.Position, c.Content)
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// cosineSimilarity computes the cosine of the angle between two vectors of
// equal length. Either vector being all zeros yields zero.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// float32SliceToBytes converts a []float32 to a little-endian byte slice.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a little-endian byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

var _ VectorStore = (*SQLiteStore)(nil)
