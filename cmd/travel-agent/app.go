package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/manthysbr/travelagent/internal/adapters/providers"
	"github.com/manthysbr/travelagent/internal/core/domain"
	"github.com/manthysbr/travelagent/internal/core/services"
)

// app is the wired pipeline shared by every subcommand.
type app struct {
	cfg     *domain.AppConfig
	tools   *domain.ToolRegistry
	orch    *services.Orchestrator
	backend *providers.VectorBackend
}

func newApp(ctx context.Context, logger *slog.Logger, cfg *domain.AppConfig) (*app, error) {
	backend, err := providers.BuildVectorIndex(ctx, logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init vector index: %w", err)
	}

	llmClient := providers.BuildLLM(cfg)

	tools := domain.NewToolRegistry()
	if err := tools.Register(services.NewCurrencyTool(providers.BuildRateSource(cfg))); err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to register currency tool: %w", err)
	}

	planner := services.NewPlanner(logger, llmClient, tools, cfg.LLM.PlannerModel)
	reranker := services.NewReranker(logger, llmClient, cfg.LLM.RerankModel)

	orch := services.NewOrchestrator(logger,
		services.OrchestratorConfig{
			HasCredential:   strings.TrimSpace(cfg.LLM.APIKey) != "",
			GenerationModel: cfg.LLM.GenerationModel,
			Temperature:     cfg.LLM.Temperature,
			CandidateK:      cfg.Retrieval.CandidateK,
			FinalK:          cfg.Retrieval.FinalK,
			Pricing:         cfg.Pricing,
		},
		planner, tools, llmClient, backend.Index, reranker, llmClient,
	)

	logger.Info("pipeline ready",
		"backend", backend.Name,
		"generation_model", cfg.LLM.GenerationModel,
		"candidate_k", cfg.Retrieval.CandidateK,
		"final_k", cfg.Retrieval.FinalK,
		"tools", len(tools.ListTools()),
	)
	return &app{cfg: cfg, tools: tools, orch: orch, backend: backend}, nil
}

func (a *app) Close() error {
	return a.backend.Close()
}
