package ports

import (
	"context"

	"github.com/manthysbr/travelagent/internal/core/domain"
)

// CompletionRequest is a single system+user chat turn.
type CompletionRequest struct {
	Model       string
	System      string
	User        string
	Temperature float64
}

// Completion is the collected output of a chat call.
type Completion struct {
	Text  string
	Usage domain.TokenUsage
}

// Completer abstracts the chat completion upstream (OpenAI-compatible).
type Completer interface {
	// Complete issues one blocking call and returns the whole response.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// Stream delivers content deltas to onToken as they arrive and returns
	// the concatenated text once the stream ends. An error returned by
	// onToken stops the stream and is returned as is.
	Stream(ctx context.Context, req CompletionRequest, onToken func(token string) error) (*Completion, error)
}

// Embedder turns text into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, domain.TokenUsage, error)
}

// VectorIndex is the nearest-neighbor lookup over stored chunks.
type VectorIndex interface {
	// Retrieve returns at most k candidates ordered by descending similarity,
	// ranked from 1.
	Retrieve(ctx context.Context, query []float32, k int) ([]domain.Candidate, error)
}

// ChunkSource loads the full chunk snapshot for in-memory indexes.
type ChunkSource interface {
	LoadChunks(ctx context.Context) ([]domain.Chunk, error)
}

// ChunkWriter is implemented by relational indexes that can be seeded.
type ChunkWriter interface {
	UpsertChunks(ctx context.Context, chunks []domain.Chunk) error
}

// Rate is one conversion quote from a RateSource.
type Rate struct {
	Amount   float64
	From     string
	To       string
	Value    float64
	Date     string // provider as-of date, "" when unknown
	Provider string
}

// RateSource is the external exchange-rate service used by the currency tool.
type RateSource interface {
	Convert(ctx context.Context, amount float64, from, to string) (Rate, error)
}

// EventSink receives orchestrator events in order. Send fails once the
// consumer is gone, which stops the run. An error wrapping domain.ErrEncode
// means only that event was dropped and the sink still accepts events.
type EventSink interface {
	Send(ctx context.Context, evt domain.StreamEvent) error
}
