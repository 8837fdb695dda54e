package providers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/manthysbr/travelagent/internal/adapters/currency"
	"github.com/manthysbr/travelagent/internal/adapters/duckdb"
	"github.com/manthysbr/travelagent/internal/adapters/llm"
	"github.com/manthysbr/travelagent/internal/adapters/sqlitevec"
	"github.com/manthysbr/travelagent/internal/adapters/vectorstore"
	"github.com/manthysbr/travelagent/internal/core/domain"
	"github.com/manthysbr/travelagent/internal/core/ports"
)

// VectorBackend is the selected index. Writer is nil for read-only backends.
type VectorBackend struct {
	Name   domain.VectorBackend
	Index  ports.VectorIndex
	Writer ports.ChunkWriter
	close  func() error
}

// Close releases the backend's database handle, if any.
func (b *VectorBackend) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

// BuildVectorIndex creates the VectorIndex named by retrieval.backend.
// It hides backend selection from callers; the choice is made once at startup.
func BuildVectorIndex(ctx context.Context, logger *slog.Logger, config *domain.AppConfig) (*VectorBackend, error) {
	if config == nil {
		config = domain.DefaultConfig()
	}
	rc := config.Retrieval

	backend := domain.VectorBackend(strings.ToLower(strings.TrimSpace(string(rc.Backend))))
	switch backend {
	case "", domain.BackendMemory:
		source := vectorstore.NewFileSource(rc.SnapshotPath)
		return &VectorBackend{
			Name:  domain.BackendMemory,
			Index: vectorstore.NewMemoryIndex(logger, source),
		}, nil
	case domain.BackendDuckDB:
		repo, err := duckdb.NewRepository(ctx, rc.DuckDBPath, rc.Dimension)
		if err != nil {
			return nil, fmt.Errorf("duckdb backend: %w", err)
		}
		return &VectorBackend{Name: backend, Index: repo, Writer: repo, close: repo.Close}, nil
	case domain.BackendSQLite:
		store, err := sqlitevec.Open(ctx, rc.SQLitePath, rc.Dimension)
		if err != nil {
			return nil, fmt.Errorf("sqlite backend: %w", err)
		}
		return &VectorBackend{Name: backend, Index: store, Writer: store, close: store.Close}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported vector backend: %s", domain.ErrConfig, rc.Backend)
	}
}

// BuildLLM creates the OpenAI-compatible completion and embedding client.
func BuildLLM(config *domain.AppConfig) *llm.OpenAIProvider {
	return llm.NewOpenAIProvider(
		strings.TrimSpace(config.LLM.BaseURL),
		strings.TrimSpace(config.LLM.APIKey),
		strings.TrimSpace(config.LLM.EmbeddingModel),
		config.LLM.RequestsPerSecond,
	)
}

// BuildRateSource creates the exchange rate client used by the currency tool.
func BuildRateSource(config *domain.AppConfig) *currency.FrankfurterClient {
	timeout := time.Duration(config.Currency.TimeoutSeconds) * time.Second
	return currency.NewFrankfurterClient(strings.TrimSpace(config.Currency.BaseURL), timeout)
}
