package vectorstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthysbr/travelagent/internal/core/domain"
)

type countingSource struct {
	calls  atomic.Int32
	chunks []domain.Chunk
	err    error
}

func (s *countingSource) LoadChunks(ctx context.Context) ([]domain.Chunk, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.chunks, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleChunks() []domain.Chunk {
	return []domain.Chunk{
		{ID: "a.md#0", File: "a.md", Text: "east", Embedding: []float32{1, 0}},
		{ID: "b.md#0", File: "b.md", Text: "north", Embedding: []float32{0, 1}},
		{ID: "c.md#0", File: "c.md", Text: "east again", Embedding: []float32{1, 0}},
		{ID: "d.md#0", File: "d.md", Text: "west", Embedding: []float32{-1, 0}},
		{ID: "e.md#0", File: "e.md", Text: "north-east", Embedding: []float32{1, 1}},
	}
}

func TestMemoryIndex_Retrieve(t *testing.T) {
	idx := NewMemoryIndex(testLogger(), &countingSource{chunks: sampleChunks()})

	got, err := idx.Retrieve(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// a and c tie at ~1.0, snapshot order breaks the tie.
	assert.Equal(t, "a.md#0", got[0].ID)
	assert.Equal(t, "c.md#0", got[1].ID)
	assert.Equal(t, "e.md#0", got[2].ID)
	for i, c := range got {
		assert.Equal(t, i+1, c.Rank)
		if i > 0 {
			assert.LessOrEqual(t, c.Score, got[i-1].Score)
		}
	}
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)
}

func TestMemoryIndex_RetrieveBounds(t *testing.T) {
	idx := NewMemoryIndex(testLogger(), &countingSource{chunks: sampleChunks()})

	got, err := idx.Retrieve(context.Background(), []float32{0, 1}, 50)
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Equal(t, "d.md#0", got[4].ID)

	got, err = idx.Retrieve(context.Background(), []float32{0, 1}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryIndex_LoadsOnce(t *testing.T) {
	src := &countingSource{chunks: sampleChunks()}
	idx := NewMemoryIndex(testLogger(), src)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := idx.Retrieve(context.Background(), []float32{1, 0}, 2)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := idx.Retrieve(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, src.calls.Load(), int32(8))
	before := src.calls.Load()

	_, err = idx.Retrieve(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, before, src.calls.Load())
}

func TestMemoryIndex_FailedLoadIsRetried(t *testing.T) {
	src := &countingSource{err: errors.New("disk")}
	idx := NewMemoryIndex(testLogger(), src)

	_, err := idx.Retrieve(context.Background(), []float32{1, 0}, 2)
	require.Error(t, err)

	src.err = nil
	src.chunks = sampleChunks()
	got, err := idx.Retrieve(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(2), src.calls.Load())
}

// gatedSource blocks LoadChunks until release is closed.
type gatedSource struct {
	started chan struct{}
	release chan struct{}
	ctxErr  atomic.Value
}

func (s *gatedSource) LoadChunks(ctx context.Context) ([]domain.Chunk, error) {
	close(s.started)
	<-s.release
	if err := ctx.Err(); err != nil {
		s.ctxErr.Store(err)
		return nil, err
	}
	return sampleChunks(), nil
}

func TestMemoryIndex_CanceledCallerDoesNotFailJoiners(t *testing.T) {
	src := &gatedSource{started: make(chan struct{}), release: make(chan struct{})}
	idx := NewMemoryIndex(testLogger(), src)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := idx.Retrieve(firstCtx, []float32{1, 0}, 2)
		firstErr <- err
	}()
	<-src.started

	joined := make(chan error, 1)
	var got []domain.Candidate
	go func() {
		var err error
		got, err = idx.Retrieve(context.Background(), []float32{1, 0}, 2)
		joined <- err
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(src.release)
	require.NoError(t, <-joined)
	assert.Len(t, got, 2)
	assert.Nil(t, src.ctxErr.Load())
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{3, 4}, []float32{6, 8}), 1e-6)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, Cosine([]float32{1, 0}, []float32{1, 0, 0}))
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := NewFileSource(filepath.Join(dir, "nope.json")).LoadChunks(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrRetrieval)
		assert.Contains(t, err.Error(), "no snapshot found")
	})

	t.Run("not an array", func(t *testing.T) {
		path := filepath.Join(dir, "obj.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"id":"x"}`), 0o644))
		_, err := NewFileSource(path).LoadChunks(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a chunk array")
	})

	t.Run("valid snapshot", func(t *testing.T) {
		path := filepath.Join(dir, "embeddings.json")
		require.NoError(t, os.WriteFile(path, []byte(`[
			{"id":"kyoto-food.md#0","file":"kyoto-food.md","text":"Nishiki market","embedding":[0.1,0.2]},
			{"id":"kyoto-food.md#1","file":"kyoto-food.md","text":"Pontocho","embedding":[0.3,0.4]}
		]`), 0o644))
		chunks, err := NewFileSource(path).LoadChunks(context.Background())
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "kyoto-food.md#1", chunks[1].ID)
		assert.Equal(t, []float32{0.3, 0.4}, chunks[1].Embedding)
	})
}
