package domain

import "errors"

// Error taxonomy for the agent pipeline. Stages wrap these with
// fmt.Errorf("...: %w") and callers inspect them with errors.Is.
var (
	// Fatal before any stage runs.
	ErrConfig       = errors.New("configuration error")
	ErrInvalidInput = errors.New("invalid input")

	// Tolerated by the orchestrator.
	ErrPlanner   = errors.New("planner error")
	ErrTool      = errors.New("tool error")
	ErrRetrieval = errors.New("retrieval error")
	ErrRerank    = errors.New("rerank error")
	ErrParse     = errors.New("parse error")

	// Fatal to the request.
	ErrGeneration = errors.New("generation error")
	// A sink could not encode an event; the sink itself is still usable.
	ErrEncode = errors.New("event encoding error")

	// Tool level failures, both reported as ErrTool to the orchestrator.
	ErrToolNotFound    = errors.New("tool not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUpstream        = errors.New("upstream error")
)
