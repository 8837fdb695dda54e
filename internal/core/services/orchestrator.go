package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/manthysbr/travelagent/internal/core/domain"
	"github.com/manthysbr/travelagent/internal/core/ports"
)

const generationSystemPrompt = `You are TravelAgent: concise, practical, cost-aware.
Answer the travel request using the tool results and numbered sources provided when they are relevant.
ALWAYS return exactly one valid JSON object with keys:
- summary: 1-sentence summary of the trip
- plan: day-by-day itinerary (as a string or array of strings)
- assumptions: array of assumptions you make
- nextSteps: how the user can confirm or book the trip
- citations: array of the source numbers you relied on, e.g. [1,3]
Do not include markdown or extra commentary. JSON only.`

// OrchestratorConfig holds the per-deployment knobs of the pipeline.
type OrchestratorConfig struct {
	// HasCredential reports whether an upstream API key is configured.
	HasCredential   bool
	GenerationModel string
	Temperature     float64
	CandidateK      int
	FinalK          int
	Pricing         domain.PricingConfig
}

// Orchestrator sequences plan, tool, retrieval, rerank, generation and
// normalization, and reports progress to an EventSink. One-shot and
// streaming requests share this implementation; only the sink differs.
type Orchestrator struct {
	logger   *slog.Logger
	cfg      OrchestratorConfig
	planner  *Planner
	tools    *domain.ToolRegistry
	embedder ports.Embedder
	index    ports.VectorIndex
	reranker *Reranker
	llm      ports.Completer
}

func NewOrchestrator(
	logger *slog.Logger,
	cfg OrchestratorConfig,
	planner *Planner,
	tools *domain.ToolRegistry,
	embedder ports.Embedder,
	index ports.VectorIndex,
	reranker *Reranker,
	llm ports.Completer,
) *Orchestrator {
	if cfg.FinalK <= 0 {
		cfg.FinalK = 4
	}
	if cfg.CandidateK < cfg.FinalK {
		cfg.CandidateK = cfg.FinalK * 3
	}
	return &Orchestrator{
		logger:   logger,
		cfg:      cfg,
		planner:  planner,
		tools:    tools,
		embedder: embedder,
		index:    index,
		reranker: reranker,
		llm:      llm,
	}
}

// run is the state of a single request.
type run struct {
	req      domain.AgentRequest
	sink     ports.EventSink
	logger   *slog.Logger
	meter    *UsageMeter
	start    time.Time
	terminal bool // a result, clarify or error event was delivered
}

func (r *run) send(ctx context.Context, kind domain.EventKind, payload any) error {
	if err := r.sink.Send(ctx, domain.StreamEvent{Kind: kind, Payload: payload}); err != nil {
		return err
	}
	switch kind {
	case domain.EventResult, domain.EventClarify, domain.EventError:
		r.terminal = true
	}
	return nil
}

// Run executes one request. Every path that does not lose the sink ends with
// exactly one terminal group: result+done, clarify+done or error+done.
// The returned error is the fatal pipeline error (ErrInvalidInput, ErrConfig,
// ErrGeneration, ErrEncode) or the sink error that stopped the run; tolerated
// failures return nil. A sink that fails with ErrEncode still receives
// error+done.
func (o *Orchestrator) Run(ctx context.Context, req domain.AgentRequest, sink ports.EventSink) error {
	r := &run{
		req:    req,
		sink:   sink,
		logger: o.logger.With("request_id", req.RequestID),
		meter:  &UsageMeter{},
		start:  time.Now(),
	}
	ctx = ContextWithUsage(ctx, r.meter)

	err := o.execute(ctx, r)
	if errors.Is(err, domain.ErrEncode) && !r.terminal {
		// The sink rejected one payload but can still deliver the error group.
		return o.fail(ctx, r, domain.StageEncode, err)
	}
	return err
}

func (o *Orchestrator) execute(ctx context.Context, r *run) error {
	req := r.req
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return o.fail(ctx, r, domain.StageInput, fmt.Errorf("%w: message is required", domain.ErrInvalidInput))
	}
	if !o.cfg.HasCredential {
		return o.fail(ctx, r, domain.StageConfig, fmt.Errorf("%w: upstream API key is not configured", domain.ErrConfig))
	}

	mode := domain.ModeOneShot
	if req.Stream {
		mode = domain.ModeStream
	}
	if err := r.send(ctx, domain.EventHandshake, domain.HandshakePayload{RequestID: req.RequestID, Mode: mode}); err != nil {
		return err
	}

	decision, err := o.plan(ctx, r, message)
	if err != nil {
		return err
	}

	var toolNote, toolUsed string
	switch decision.Action {
	case domain.PlanClarify:
		meta := o.meta(r)
		if err := r.send(ctx, domain.EventClarify, domain.ClarifyPayload{Question: decision.Question}); err != nil {
			return err
		}
		return r.send(ctx, domain.EventDone, domain.DonePayload{OK: true, Meta: &meta})
	case domain.PlanUseTool:
		toolNote, toolUsed, err = o.runTool(ctx, r, decision)
		if err != nil {
			return err
		}
	case domain.PlanAnswer:
	}

	sources := o.retrieve(ctx, r, message)

	raw, err := o.generate(ctx, r, buildGenerationPrompt(message, toolNote, sources))
	if err != nil {
		var sinkErr *sinkError
		if errors.As(err, &sinkErr) {
			return sinkErr.err
		}
		return o.fail(ctx, r, domain.StageGeneration, err)
	}

	result := NormalizeResult(raw, sources)
	result.ToolUsed = toolUsed
	if result.Fallback {
		r.logger.Warn("generation output not parseable, using fallback result", "error", domain.ErrParse, "raw_len", len(raw))
	}

	meta := o.meta(r)
	r.logger.Info("agent request completed",
		"ms", meta.Ms, "tokens", meta.Tokens.Total, "cost_usd", meta.CostUSD, "sources", len(sources))
	if err := r.send(ctx, domain.EventResult, domain.ResultPayload{Result: result, Meta: meta}); err != nil {
		return err
	}
	return r.send(ctx, domain.EventDone, domain.DonePayload{OK: true, Meta: &meta})
}

func (o *Orchestrator) fail(ctx context.Context, r *run, stage string, cause error) error {
	r.logger.Error("agent request failed", "stage", stage, "error", cause)
	if err := r.send(ctx, domain.EventError, domain.ErrorPayload{Error: cause.Error(), Stage: stage}); err != nil {
		return err
	}
	if err := r.send(ctx, domain.EventDone, domain.DonePayload{OK: false}); err != nil {
		return err
	}
	return cause
}

func (o *Orchestrator) meta(r *run) domain.Meta {
	usage := r.meter.Total()
	return domain.Meta{
		Ms:      time.Since(r.start).Milliseconds(),
		Tokens:  usage,
		CostUSD: o.cfg.Pricing.Cost(usage),
	}
}

// plan returns the decision to follow. Planner failures become answer.
func (o *Orchestrator) plan(ctx context.Context, r *run, message string) (domain.PlanDecision, error) {
	var (
		decision domain.PlanDecision
		payload  domain.PlannerPayload
	)
	if r.req.ForcePlan != nil {
		decision = *r.req.ForcePlan
		payload.Forced = true
	} else {
		d, err := o.planner.Decide(ctx, message)
		if err != nil {
			r.logger.Warn("planner failed, defaulting to answer", "error", err)
			d = domain.AnswerDecision()
			payload.Fallback = true
			payload.Error = err.Error()
		}
		decision = d
	}

	payload.Action = decision.Action
	payload.Question = decision.Question
	payload.Tool = decision.Tool
	payload.Args = decision.Args
	return decision, r.send(ctx, domain.EventPlanner, payload)
}

// runTool executes the selected tool and returns its grounding note and, on
// success, the tool name. Only sink errors are returned.
func (o *Orchestrator) runTool(ctx context.Context, r *run, d domain.PlanDecision) (string, string, error) {
	if err := r.send(ctx, domain.EventTool, domain.ToolPayload{Tool: d.Tool, Phase: domain.ToolPhaseStart, Args: d.Args}); err != nil {
		return "", "", err
	}

	res, err := o.tools.Execute(ctx, d.Tool, d.Args)
	if err != nil {
		note := ToolFailureNote(d.Tool, err)
		err = fmt.Errorf("%w: %w", domain.ErrTool, err)
		r.logger.Warn("tool failed, continuing with failure note", "tool", d.Tool, "error", err)
		sendErr := r.send(ctx, domain.EventTool, domain.ToolPayload{
			Tool: d.Tool, Phase: domain.ToolPhaseError, Error: err.Error(), Note: note,
		})
		return note, "", sendErr
	}

	sendErr := r.send(ctx, domain.EventTool, domain.ToolPayload{
		Tool: res.Tool, Phase: domain.ToolPhaseDone, Result: res.Payload, Note: res.Note,
	})
	return res.Note, res.Tool, sendErr
}

// retrieve embeds the query once, over-fetches CandidateK and reranks to
// FinalK. A failed retrieval is retried once as a plain FinalK fetch
// without rerank; if that fails too the request proceeds without sources.
func (o *Orchestrator) retrieve(ctx context.Context, r *run, message string) []domain.Candidate {
	vec, err := o.embed(ctx, message)
	if err == nil {
		cands, err := o.index.Retrieve(ctx, vec, o.cfg.CandidateK)
		if err == nil {
			ranked, err := o.reranker.Rerank(ctx, message, cands, o.cfg.FinalK)
			if err != nil {
				r.logger.Warn("rerank failed, keeping retrieval order", "error", err)
				ranked = truncateCandidates(cands, o.cfg.FinalK)
			}
			return ranked
		}
		r.logger.Warn("retrieval failed, falling back to plain fetch", "error", err)
	} else {
		r.logger.Warn("query embedding failed, falling back to plain fetch", "error", err)
		if vec, err = o.embed(ctx, message); err != nil {
			r.logger.Warn("fallback embedding failed, continuing without sources", "error", err)
			return []domain.Candidate{}
		}
	}

	cands, err := o.index.Retrieve(ctx, vec, o.cfg.FinalK)
	if err != nil {
		r.logger.Warn("fallback retrieval failed, continuing without sources", "error", err)
		return []domain.Candidate{}
	}
	return truncateCandidates(cands, o.cfg.FinalK)
}

func (o *Orchestrator) embed(ctx context.Context, message string) ([]float32, error) {
	vec, usage, err := o.embedder.Embed(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrRetrieval, err)
	}
	recordUsage(ctx, usage)
	return vec, nil
}

func truncateCandidates(cands []domain.Candidate, k int) []domain.Candidate {
	out := append([]domain.Candidate(nil), cands...)
	if len(out) > k {
		out = out[:k]
	}
	return domain.AssignRanks(out)
}

// sinkError marks a failure of the sink during token streaming.
type sinkError struct{ err error }

func (e *sinkError) Error() string { return e.err.Error() }
func (e *sinkError) Unwrap() error { return e.err }

func (o *Orchestrator) generate(ctx context.Context, r *run, user string) (string, error) {
	req := ports.CompletionRequest{
		Model:       o.cfg.GenerationModel,
		System:      generationSystemPrompt,
		User:        user,
		Temperature: o.cfg.Temperature,
	}

	var (
		resp *ports.Completion
		err  error
	)
	if r.req.Stream {
		resp, err = o.llm.Stream(ctx, req, func(token string) error {
			if sendErr := r.send(ctx, domain.EventToken, domain.TokenPayload{Token: token}); sendErr != nil {
				return &sinkError{err: sendErr}
			}
			return nil
		})
	} else {
		resp, err = o.llm.Complete(ctx, req)
	}
	if err != nil {
		var sinkErr *sinkError
		if errors.As(err, &sinkErr) {
			return "", sinkErr
		}
		return "", fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	recordUsage(ctx, resp.Usage)
	return resp.Text, nil
}

// buildGenerationPrompt lays out the grounding context: tool note first,
// then numbered sources, then the question.
func buildGenerationPrompt(message, toolNote string, sources []domain.Candidate) string {
	var sb strings.Builder
	if toolNote != "" {
		sb.WriteString("Tool results:\n")
		sb.WriteString(toolNote)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Sources:\n")
	if len(sources) == 0 {
		sb.WriteString("(none)\n")
	}
	for i, s := range sources {
		fmt.Fprintf(&sb, "[%d] (%s) %s\n\n", i+1, s.File, s.Text)
	}
	sb.WriteString("\nQuestion:\n")
	sb.WriteString(message)
	return sb.String()
}
