package vectorstore

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/manthysbr/travelagent/internal/core/domain"
	"github.com/manthysbr/travelagent/internal/core/ports"
)

const cosineEpsilon = 1e-8

// MemoryIndex ranks every chunk of a snapshot by cosine similarity.
// The snapshot is loaded on first use and kept for the process lifetime.
// A failed load is not cached.
type MemoryIndex struct {
	logger   *slog.Logger
	source   ports.ChunkSource
	group    singleflight.Group
	snapshot atomic.Pointer[[]domain.Chunk]
}

var _ ports.VectorIndex = (*MemoryIndex)(nil)

func NewMemoryIndex(logger *slog.Logger, source ports.ChunkSource) *MemoryIndex {
	return &MemoryIndex{logger: logger, source: source}
}

func (m *MemoryIndex) chunks(ctx context.Context) ([]domain.Chunk, error) {
	if p := m.snapshot.Load(); p != nil {
		return *p, nil
	}

	// The shared load outlives any single caller; each caller still stops
	// waiting when its own ctx is done.
	loadCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan("snapshot", func() (any, error) {
		if p := m.snapshot.Load(); p != nil {
			return *p, nil
		}
		chunks, err := m.source.LoadChunks(loadCtx)
		if err != nil {
			return nil, err
		}
		m.snapshot.Store(&chunks)
		m.logger.Info("chunk snapshot loaded", "chunks", len(chunks))
		return chunks, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.Chunk), nil
	}
}

// Retrieve implements ports.VectorIndex. Equal scores keep snapshot order.
func (m *MemoryIndex) Retrieve(ctx context.Context, query []float32, k int) ([]domain.Candidate, error) {
	if k <= 0 {
		return []domain.Candidate{}, nil
	}
	chunks, err := m.chunks(ctx)
	if err != nil {
		return nil, err
	}

	scored := make([]domain.Candidate, len(chunks))
	for i, c := range chunks {
		scored[i] = domain.Candidate{Chunk: c, Score: Cosine(c.Embedding, query)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return domain.AssignRanks(scored), nil
}

// Cosine returns dot(a,b) / (|a||b| + eps). Vectors of different length score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + cosineEpsilon)
}
