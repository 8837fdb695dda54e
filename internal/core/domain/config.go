package domain

// VectorBackend selects the VectorIndex implementation.
type VectorBackend string

const (
	BackendMemory VectorBackend = "memory" // cosine scan over data/embeddings.json
	BackendDuckDB VectorBackend = "duckdb"
	BackendSQLite VectorBackend = "sqlite" // sqlite-vec vec0 table
)

// ServerConfig configures the HTTP kernel.
type ServerConfig struct {
	Addr        string   `yaml:"addr" json:"addr"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
}

// LLMConfig configures the OpenAI-compatible upstream.
type LLMConfig struct {
	APIKey            string  `yaml:"api_key" json:"api_key"`
	BaseURL           string  `yaml:"base_url" json:"base_url"`
	PlannerModel      string  `yaml:"planner_model" json:"planner_model"`
	RerankModel       string  `yaml:"rerank_model" json:"rerank_model"`
	GenerationModel   string  `yaml:"generation_model" json:"generation_model"`
	EmbeddingModel    string  `yaml:"embedding_model" json:"embedding_model"`
	Temperature       float64 `yaml:"temperature" json:"temperature"`
	RequestsPerSecond int     `yaml:"requests_per_second" json:"requests_per_second"` // 0 disables limiting
}

// RetrievalConfig configures the vector index and the oversample window.
type RetrievalConfig struct {
	Backend      VectorBackend `yaml:"backend" json:"backend"`
	CandidateK   int           `yaml:"candidate_k" json:"candidate_k"`
	FinalK       int           `yaml:"final_k" json:"final_k"`
	SnapshotPath string        `yaml:"snapshot_path" json:"snapshot_path"`
	DuckDBPath   string        `yaml:"duckdb_path" json:"duckdb_path"`
	SQLitePath   string        `yaml:"sqlite_path" json:"sqlite_path"`
	Dimension    int           `yaml:"dimension" json:"dimension"`
}

// PricingConfig holds per-1000-token USD rates used for cost accounting only.
type PricingConfig struct {
	PromptPer1K     float64 `yaml:"prompt_per_1k" json:"prompt_per_1k"`
	CompletionPer1K float64 `yaml:"completion_per_1k" json:"completion_per_1k"`
}

// Cost returns the USD cost of the given usage.
func (p PricingConfig) Cost(u TokenUsage) float64 {
	return float64(u.Prompt)/1000*p.PromptPer1K + float64(u.Completion)/1000*p.CompletionPer1K
}

// CurrencyConfig configures the exchange rate source.
type CurrencyConfig struct {
	BaseURL        string `yaml:"base_url" json:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// DebugConfig holds development-only switches.
type DebugConfig struct {
	AllowPlanOverride bool `yaml:"allow_plan_override" json:"allow_plan_override"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// AppConfig is the main application configuration
type AppConfig struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	LLM       LLMConfig       `yaml:"llm" json:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval" json:"retrieval"`
	Pricing   PricingConfig   `yaml:"pricing" json:"pricing"`
	Currency  CurrencyConfig  `yaml:"currency" json:"currency"`
	Debug     DebugConfig     `yaml:"debug" json:"debug"`
	Log       LogConfig       `yaml:"log" json:"log"`
}

// DefaultConfig returns safe defaults
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"*"},
		},
		LLM: LLMConfig{
			BaseURL:         "https://api.openai.com/v1",
			PlannerModel:    "gpt-4o-mini",
			RerankModel:     "gpt-4o-mini",
			GenerationModel: "gpt-4o",
			EmbeddingModel:  "text-embedding-3-small",
			Temperature:     0.7,
		},
		Retrieval: RetrievalConfig{
			Backend:      BackendMemory,
			CandidateK:   12,
			FinalK:       4,
			SnapshotPath: "data/embeddings.json",
			DuckDBPath:   "data/chunks.duckdb",
			SQLitePath:   "data/chunks.db",
			Dimension:    1536,
		},
		Pricing: PricingConfig{
			PromptPer1K:     0.0025,
			CompletionPer1K: 0.01,
		},
		Currency: CurrencyConfig{
			BaseURL:        "https://api.frankfurter.app",
			TimeoutSeconds: 10,
		},
		Log: LogConfig{Level: "info"},
	}
}
