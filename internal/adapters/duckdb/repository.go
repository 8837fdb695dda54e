package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/manthysbr/travelagent/internal/core/domain"
	"github.com/manthysbr/travelagent/internal/core/ports"
)

// Repository is a DuckDB-backed chunk store queried with
// array_cosine_distance. An empty path opens an in-memory database.
type Repository struct {
	db  *sql.DB
	dim int
}

var (
	_ ports.VectorIndex = (*Repository)(nil)
	_ ports.ChunkWriter = (*Repository)(nil)
)

func NewRepository(ctx context.Context, path string, dim int) (*Repository, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: vector dimension must be positive, got %d", domain.ErrConfig, dim)
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %q: %w", path, err)
	}
	repo := &Repository{db: db, dim: dim}
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// EnsureSchema creates the chunks table keyed by (file, chunk_index).
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE SEQUENCE IF NOT EXISTS chunks_id_seq START 1`,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS chunks (
			id          BIGINT PRIMARY KEY DEFAULT nextval('chunks_id_seq'),
			file        VARCHAR NOT NULL,
			chunk_index INTEGER NOT NULL,
			text        VARCHAR NOT NULL,
			embedding   FLOAT[%d] NOT NULL,
			UNIQUE (file, chunk_index)
		)`, r.dim),
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// UpsertChunks inserts or replaces chunks. IDs must have the "file#index" form.
func (r *Repository) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt := fmt.Sprintf(`
		INSERT INTO chunks (file, chunk_index, text, embedding)
		VALUES (?, ?, ?, ?::FLOAT[%d])
		ON CONFLICT (file, chunk_index) DO UPDATE SET
			text      = excluded.text,
			embedding = excluded.embedding`, r.dim)

	for _, c := range chunks {
		file, idx, err := domain.ParseChunkID(c.ID)
		if err != nil {
			return err
		}
		if len(c.Embedding) != r.dim {
			return fmt.Errorf("chunk %s: embedding has %d dims, want %d", c.ID, len(c.Embedding), r.dim)
		}
		if _, err := tx.ExecContext(ctx, stmt, file, idx, c.Text, VectorLiteral(c.Embedding)); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Retrieve implements ports.VectorIndex. Scores are 1 - cosine distance;
// equal distances keep insertion order. Embeddings are not returned.
func (r *Repository) Retrieve(ctx context.Context, query []float32, k int) ([]domain.Candidate, error) {
	if k <= 0 {
		return []domain.Candidate{}, nil
	}
	if len(query) != r.dim {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d", domain.ErrRetrieval, len(query), r.dim)
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT file, chunk_index, text,
		       array_cosine_distance(embedding, ?::FLOAT[%d]) AS distance
		FROM chunks
		ORDER BY distance ASC, id ASC
		LIMIT ?`, r.dim), VectorLiteral(query), k)
	if err != nil {
		return nil, fmt.Errorf("%w: duckdb knn: %v", domain.ErrRetrieval, err)
	}
	defer rows.Close()

	out := make([]domain.Candidate, 0, k)
	for rows.Next() {
		var (
			file     string
			idx      int
			text     string
			distance sql.NullFloat64
		)
		if err := rows.Scan(&file, &idx, &text, &distance); err != nil {
			return nil, fmt.Errorf("%w: scan chunk: %v", domain.ErrRetrieval, err)
		}
		score := 0.0
		if distance.Valid {
			score = 1 - distance.Float64
		}
		out = append(out, domain.Candidate{
			Chunk: domain.Chunk{ID: domain.ChunkID(file, idx), File: file, Text: text},
			Score: score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRetrieval, err)
	}
	return domain.AssignRanks(out), nil
}

// VectorLiteral renders v as "[a,b,...]" for casting to a fixed-size array.
func VectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.Grow(len(v) * 10)
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
