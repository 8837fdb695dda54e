package domain

// EventKind names a stream event. The value doubles as the SSE event name.
type EventKind string

const (
	EventHandshake EventKind = "handshake"
	EventPlanner   EventKind = "planner"
	EventTool      EventKind = "tool"
	EventToken     EventKind = "token"
	EventClarify   EventKind = "clarify"
	EventResult    EventKind = "result"
	EventError     EventKind = "error"
	EventDone      EventKind = "done"
)

// StreamEvent is one unit of orchestrator progress.
type StreamEvent struct {
	Kind    EventKind
	Payload any
}

// Execution modes reported in the handshake.
const (
	ModeOneShot = "oneshot"
	ModeStream  = "stream"
)

// Tool event phases.
const (
	ToolPhaseStart = "start"
	ToolPhaseDone  = "done"
	ToolPhaseError = "error"
)

// Pipeline stages reported in error events.
const (
	StageInput      = "input"
	StageConfig     = "config"
	StageGeneration = "generation"
	StageEncode     = "encode"
)

type HandshakePayload struct {
	RequestID string `json:"requestId"`
	Mode      string `json:"mode"`
}

type PlannerPayload struct {
	Action   PlanAction     `json:"action"`
	Question string         `json:"question,omitempty"`
	Tool     string         `json:"tool,omitempty"`
	Args     map[string]any `json:"args,omitempty"`
	Forced   bool           `json:"forced,omitempty"`
	Fallback bool           `json:"fallback,omitempty"`
	Error    string         `json:"error,omitempty"`
}

type ToolPayload struct {
	Tool   string         `json:"tool"`
	Phase  string         `json:"phase"`
	Args   map[string]any `json:"args,omitempty"`
	Result any            `json:"result,omitempty"`
	Note   string         `json:"note,omitempty"`
	Error  string         `json:"error,omitempty"`
}

type TokenPayload struct {
	Token string `json:"token"`
}

type ClarifyPayload struct {
	Question string `json:"question"`
}

type ResultPayload struct {
	Result AgentResult `json:"result"`
	Meta   Meta        `json:"meta"`
}

type ErrorPayload struct {
	Error string `json:"error"`
	Stage string `json:"stage"`
}

type DonePayload struct {
	OK   bool  `json:"ok"`
	Meta *Meta `json:"meta,omitempty"`
}

// AgentRequest is the input of one orchestrator run.
type AgentRequest struct {
	RequestID string
	Message   string
	Stream    bool
	// ForcePlan bypasses the planner. Only set when overrides are enabled.
	ForcePlan *PlanDecision
}
