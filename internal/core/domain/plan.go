package domain

import (
	"fmt"
	"strings"
)

// PlanAction is the closed set of planner outcomes.
type PlanAction string

const (
	PlanClarify PlanAction = "clarify"
	PlanUseTool PlanAction = "use_tool"
	PlanAnswer  PlanAction = "answer"
)

// DefaultClarifyQuestion is used when a forced clarify decision carries no question.
const DefaultClarifyQuestion = "Could you share a bit more detail about your trip (destination, dates, budget)?"

// PlanDecision drives orchestrator branching. Question is set only for
// clarify; Tool and Args only for use_tool.
type PlanDecision struct {
	Action   PlanAction     `json:"action"`
	Question string         `json:"question,omitempty"`
	Tool     string         `json:"tool,omitempty"`
	Args     map[string]any `json:"args,omitempty"`
}

// AnswerDecision is the default when planning fails.
func AnswerDecision() PlanDecision {
	return PlanDecision{Action: PlanAnswer}
}

// DecodePlanDecision converts a loosely-typed planner object into a decision.
// Both {"action":"use_currency"} and {"action":"use_tool","tool":"currency"}
// decode to the use_tool variant.
func DecodePlanDecision(obj map[string]any) (PlanDecision, error) {
	action, _ := obj["action"].(string)
	action = strings.ToLower(strings.TrimSpace(action))

	switch {
	case action == string(PlanAnswer):
		return AnswerDecision(), nil

	case action == string(PlanClarify):
		q, _ := obj["question"].(string)
		q = strings.TrimSpace(q)
		if q == "" {
			return PlanDecision{}, fmt.Errorf("clarify decision without question")
		}
		return PlanDecision{Action: PlanClarify, Question: q}, nil

	case action == string(PlanUseTool) || strings.HasPrefix(action, "use_"):
		tool := strings.TrimPrefix(action, "use_")
		if action == string(PlanUseTool) {
			tool, _ = obj["tool"].(string)
		}
		tool = strings.ToLower(strings.TrimSpace(tool))
		if tool == "" {
			return PlanDecision{}, fmt.Errorf("use_tool decision without tool name")
		}
		args, _ := obj["args"].(map[string]any)
		if args == nil {
			args = map[string]any{}
		}
		return PlanDecision{Action: PlanUseTool, Tool: tool, Args: args}, nil

	default:
		return PlanDecision{}, fmt.Errorf("unknown planner action %q", action)
	}
}
