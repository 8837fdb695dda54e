package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/manthysbr/travelagent/internal/core/domain"
)

// Load builds the configuration: defaults, then the optional YAML file at
// path, then environment overrides. An empty path skips the file.
func Load(path string) (*domain.AppConfig, error) {
	cfg := domain.DefaultConfig()

	if path != "" {
		if err := parseFile(path, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrConfig, path, err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseFile(path string, cfg *domain.AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = []byte(os.ExpandEnv(string(data)))

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *domain.AppConfig, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", domain.ErrConfig, key, v)
		}
		*dst = n
		return nil
	}
	float := func(key string, dst *float64) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", domain.ErrConfig, key, v)
		}
		*dst = f
		return nil
	}

	str("OPENAI_API_KEY", &cfg.LLM.APIKey)
	str("OPENAI_BASE_URL", &cfg.LLM.BaseURL)
	str("TRAVEL_AGENT_ADDR", &cfg.Server.Addr)
	str("EMBEDDINGS_PATH", &cfg.Retrieval.SnapshotPath)
	str("DUCKDB_PATH", &cfg.Retrieval.DuckDBPath)
	str("SQLITE_PATH", &cfg.Retrieval.SQLitePath)

	var backend string
	str("VECTOR_BACKEND", &backend)
	if backend != "" {
		cfg.Retrieval.Backend = domain.VectorBackend(strings.ToLower(backend))
	}

	return errors.Join(
		num("CANDIDATE_K", &cfg.Retrieval.CandidateK),
		num("FINAL_K", &cfg.Retrieval.FinalK),
		float("MODEL_PROMPT_COST_PER_1K", &cfg.Pricing.PromptPer1K),
		float("MODEL_COMPLETION_COST_PER_1K", &cfg.Pricing.CompletionPer1K),
	)
}

// Validate rejects configurations the service cannot start with. A missing
// API key is allowed here; requests then fail with a config error.
func Validate(cfg *domain.AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{domain.ErrConfig}, args...)...))
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		add("server.addr is required")
	}

	switch cfg.Retrieval.Backend {
	case domain.BackendMemory:
		if cfg.Retrieval.SnapshotPath == "" {
			add("retrieval.snapshot_path is required for the memory backend")
		}
	case domain.BackendDuckDB:
		if cfg.Retrieval.DuckDBPath == "" {
			add("retrieval.duckdb_path is required for the duckdb backend")
		}
	case domain.BackendSQLite:
		if cfg.Retrieval.SQLitePath == "" {
			add("retrieval.sqlite_path is required for the sqlite backend")
		}
	default:
		add("unknown retrieval.backend %q (want memory, duckdb or sqlite)", cfg.Retrieval.Backend)
	}

	if cfg.Retrieval.FinalK < 1 {
		add("retrieval.final_k must be at least 1, got %d", cfg.Retrieval.FinalK)
	}
	if cfg.Retrieval.CandidateK < cfg.Retrieval.FinalK {
		add("retrieval.candidate_k (%d) must not be below final_k (%d)", cfg.Retrieval.CandidateK, cfg.Retrieval.FinalK)
	}
	if cfg.Retrieval.Dimension < 1 {
		add("retrieval.dimension must be positive, got %d", cfg.Retrieval.Dimension)
	}

	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		add("llm.temperature must be within [0, 2], got %v", cfg.LLM.Temperature)
	}
	if cfg.LLM.RequestsPerSecond < 0 {
		add("llm.requests_per_second must not be negative")
	}
	for _, m := range []struct{ key, val string }{
		{"llm.planner_model", cfg.LLM.PlannerModel},
		{"llm.rerank_model", cfg.LLM.RerankModel},
		{"llm.generation_model", cfg.LLM.GenerationModel},
		{"llm.embedding_model", cfg.LLM.EmbeddingModel},
	} {
		if strings.TrimSpace(m.val) == "" {
			add("%s is required", m.key)
		}
	}

	if cfg.Pricing.PromptPer1K < 0 || cfg.Pricing.CompletionPer1K < 0 {
		add("pricing rates must not be negative")
	}
	if cfg.Currency.TimeoutSeconds < 0 {
		add("currency.timeout_seconds must not be negative")
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ParseLevel maps log.level to a slog level. Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: unknown log.level %q", domain.ErrConfig, level)
}
