package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/manthysbr/travelagent/internal/core/domain"
	"github.com/manthysbr/travelagent/internal/core/ports"
)

const plannerSystemPrompt = `You are the planning step of a travel assistant. Decide how the user's message should be handled.
Reply with exactly one JSON object and nothing else, in one of these shapes:
{"action":"clarify","question":"<one short question>"}  when an essential detail is missing (for example the destination).
{"action":"use_<tool>","args":{...}}  when one of the tools below is needed to answer.
{"action":"answer"}  in every other case.`

// Planner classifies a request into clarify, use_tool or answer with one
// temperature-0 call.
type Planner struct {
	logger *slog.Logger
	llm    ports.Completer
	tools  *domain.ToolRegistry
	model  string
}

func NewPlanner(logger *slog.Logger, llm ports.Completer, tools *domain.ToolRegistry, model string) *Planner {
	return &Planner{logger: logger, llm: llm, tools: tools, model: model}
}

func (p *Planner) systemPrompt() string {
	listing := p.tools.FormatToolsForPrompt()
	if listing == "" {
		return plannerSystemPrompt + "\nNo tools are available; never choose use_<tool>."
	}
	return plannerSystemPrompt + "\nTools:\n" + listing
}

// Decide returns the plan for message. Any failure wraps domain.ErrPlanner;
// the caller is expected to fall back to answer.
func (p *Planner) Decide(ctx context.Context, message string) (domain.PlanDecision, error) {
	resp, err := p.llm.Complete(ctx, ports.CompletionRequest{
		Model:       p.model,
		System:      p.systemPrompt(),
		User:        message,
		Temperature: 0,
	})
	if err != nil {
		return domain.PlanDecision{}, fmt.Errorf("%w: %w", domain.ErrPlanner, err)
	}
	recordUsage(ctx, resp.Usage)

	obj, ok := ExtractObject(resp.Text)
	if !ok {
		return domain.PlanDecision{}, fmt.Errorf("%w: no JSON object in planner output", domain.ErrPlanner)
	}
	decision, err := domain.DecodePlanDecision(obj)
	if err != nil {
		return domain.PlanDecision{}, fmt.Errorf("%w: %v", domain.ErrPlanner, err)
	}

	if decision.Action == domain.PlanUseTool {
		name, ok := p.tools.Resolve(decision.Tool)
		if !ok {
			return domain.PlanDecision{}, fmt.Errorf("%w: planner chose unknown tool %q", domain.ErrPlanner, decision.Tool)
		}
		decision.Tool = name
	}

	p.logger.Debug("plan decided", "action", decision.Action, "tool", decision.Tool)
	return decision, nil
}

// ParsePlanOverride reads a forced decision from a debug parameter. It
// accepts a JSON decision or a bare action word such as "answer",
// "clarify" or "use_currency". A clarify without question gets a default one.
func ParsePlanOverride(raw string) (domain.PlanDecision, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.PlanDecision{}, fmt.Errorf("%w: empty plan override", domain.ErrInvalidInput)
	}

	obj := map[string]any{"action": raw}
	if strings.HasPrefix(raw, "{") {
		obj = nil
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return domain.PlanDecision{}, fmt.Errorf("%w: plan override is not valid JSON: %v", domain.ErrInvalidInput, err)
		}
	}

	if action, _ := obj["action"].(string); strings.EqualFold(strings.TrimSpace(action), string(domain.PlanClarify)) {
		if q, _ := obj["question"].(string); strings.TrimSpace(q) == "" {
			obj["question"] = domain.DefaultClarifyQuestion
		}
	}

	decision, err := domain.DecodePlanDecision(obj)
	if err != nil {
		return domain.PlanDecision{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return decision, nil
}
