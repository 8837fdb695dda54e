package domain

import "encoding/json"

// ParseFailureSummary is the summary of the fallback result used when the
// generated text contains no parseable JSON object.
const ParseFailureSummary = "Could not parse response"

// SourceRef maps a citation number to the candidate it refers to.
type SourceRef struct {
	N    int    `json:"n"`
	ID   string `json:"id"`
	File string `json:"file"`
}

// AgentResult is the terminal structured answer of a request.
//
// Plan holds either a string, a []string or whatever JSON value the model
// produced under that key. When Fallback is set the result serializes to the
// degraded {summary, raw, citations, sourceMap} shape.
type AgentResult struct {
	Summary     string
	Plan        any
	Assumptions []string
	NextSteps   string
	Citations   []int
	SourceMap   []SourceRef
	ToolUsed    string

	Fallback bool
	Raw      string
}

type agentResultJSON struct {
	Summary     string      `json:"summary"`
	Plan        any         `json:"plan"`
	Assumptions []string    `json:"assumptions"`
	NextSteps   string      `json:"nextSteps"`
	Citations   []int       `json:"citations"`
	SourceMap   []SourceRef `json:"sourceMap"`
	ToolUsed    string      `json:"tool_used,omitempty"`
}

type fallbackResultJSON struct {
	Summary   string      `json:"summary"`
	Raw       string      `json:"raw"`
	Citations []int       `json:"citations"`
	SourceMap []SourceRef `json:"sourceMap"`
	ToolUsed  string      `json:"tool_used,omitempty"`
}

// MarshalJSON emits either the normal or the parse-failure shape.
// Nil slices are written as empty arrays.
func (r AgentResult) MarshalJSON() ([]byte, error) {
	citations := r.Citations
	if citations == nil {
		citations = []int{}
	}
	sourceMap := r.SourceMap
	if sourceMap == nil {
		sourceMap = []SourceRef{}
	}

	if r.Fallback {
		return json.Marshal(fallbackResultJSON{
			Summary:   r.Summary,
			Raw:       r.Raw,
			Citations: citations,
			SourceMap: sourceMap,
			ToolUsed:  r.ToolUsed,
		})
	}

	assumptions := r.Assumptions
	if assumptions == nil {
		assumptions = []string{}
	}
	plan := r.Plan
	if plan == nil {
		plan = ""
	}
	return json.Marshal(agentResultJSON{
		Summary:     r.Summary,
		Plan:        plan,
		Assumptions: assumptions,
		NextSteps:   r.NextSteps,
		Citations:   citations,
		SourceMap:   sourceMap,
		ToolUsed:    r.ToolUsed,
	})
}

// TokenUsage counts tokens across one or more LLM calls.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Add accumulates another usage record.
func (u *TokenUsage) Add(o TokenUsage) {
	u.Prompt += o.Prompt
	u.Completion += o.Completion
	u.Total += o.Total
}

// Meta is attached to terminal results.
type Meta struct {
	Ms      int64      `json:"ms"`
	Tokens  TokenUsage `json:"tokens"`
	CostUSD float64    `json:"costUSD"`
}
