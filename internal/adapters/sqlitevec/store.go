package sqlitevec

import (
	"context"
	"database/sql"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/manthysbr/travelagent/internal/core/domain"
	"github.com/manthysbr/travelagent/internal/core/ports"
)

func init() {
	sqlite_vec.Auto()
}

// Store keeps chunk text in a regular table and vectors in a vec0 virtual
// table using the cosine metric.
type Store struct {
	db  *sql.DB
	dim int
}

var (
	_ ports.VectorIndex = (*Store)(nil)
	_ ports.ChunkWriter = (*Store)(nil)
)

// Open creates or opens the database at path. "" or ":memory:" opens a
// private in-memory database on a single connection.
func Open(ctx context.Context, path string, dim int) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: vector dimension must be positive, got %d", domain.ErrConfig, dim)
	}

	dsn := path + "?_journal_mode=WAL"
	inMemory := path == "" || path == ":memory:"
	if inMemory {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, dim: dim}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			file        TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			text        TEXT NOT NULL,
			UNIQUE (file, chunk_index)
		)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
			chunk_id INTEGER PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		)`, s.dim),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertChunks inserts or replaces chunks keyed by (file, chunk_index).
func (s *Store) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, c := range chunks {
		file, idx, err := domain.ParseChunkID(c.ID)
		if err != nil {
			return err
		}
		if len(c.Embedding) != s.dim {
			return fmt.Errorf("chunk %s: embedding has %d dims, want %d", c.ID, len(c.Embedding), s.dim)
		}

		var rowID int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO chunks (file, chunk_index, text) VALUES (?, ?, ?)
			ON CONFLICT (file, chunk_index) DO UPDATE SET text = excluded.text
			RETURNING id`, file, idx, c.Text).Scan(&rowID)
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}

		blob, err := sqlite_vec.SerializeFloat32(c.Embedding)
		if err != nil {
			return fmt.Errorf("serialize embedding %s: %w", c.ID, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks WHERE chunk_id = ?", rowID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)", rowID, blob); err != nil {
			return fmt.Errorf("insert embedding %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Retrieve implements ports.VectorIndex. Scores are 1 - cosine distance;
// equal distances keep insertion order. Embeddings are not returned.
func (s *Store) Retrieve(ctx context.Context, query []float32, k int) ([]domain.Candidate, error) {
	if k <= 0 {
		return []domain.Candidate{}, nil
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d", domain.ErrRetrieval, len(query), s.dim)
	}
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("%w: serialize query embedding: %v", domain.ErrRetrieval, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		WITH knn AS (
			SELECT chunk_id, distance
			FROM vec_chunks
			WHERE embedding MATCH ? AND k = ?
		)
		SELECT c.file, c.chunk_index, c.text, knn.distance
		FROM knn
		JOIN chunks c ON c.id = knn.chunk_id
		ORDER BY knn.distance, c.id`, blob, k)
	if err != nil {
		return nil, fmt.Errorf("%w: sqlite-vec knn: %v", domain.ErrRetrieval, err)
	}
	defer rows.Close()

	out := make([]domain.Candidate, 0, k)
	for rows.Next() {
		var (
			file     string
			idx      int
			text     string
			distance float64
		)
		if err := rows.Scan(&file, &idx, &text, &distance); err != nil {
			return nil, fmt.Errorf("%w: scan chunk: %v", domain.ErrRetrieval, err)
		}
		out = append(out, domain.Candidate{
			Chunk: domain.Chunk{ID: domain.ChunkID(file, idx), File: file, Text: text},
			Score: 1 - distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRetrieval, err)
	}
	return domain.AssignRanks(out), nil
}
