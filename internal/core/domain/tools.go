package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Tool is a deterministic capability the planner may select by name.
type Tool struct {
	Name        string
	Description string
	Parameters  ToolParameters
	Execute     ToolExecutor
}

// ToolParameters describes the expected args as a JSON schema object.
type ToolParameters struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required"`
}

// ToolResult is the success payload of a tool call plus the one-line note
// that grounds generation.
type ToolResult struct {
	Tool    string `json:"tool"`
	Payload any    `json:"payload"`
	Note    string `json:"note"`
}

// ToolExecutor runs a tool with already-decoded args.
type ToolExecutor func(ctx context.Context, args map[string]any) (*ToolResult, error)

// ToolRegistry is the dispatch table for use_tool decisions.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool, replacing any tool with the same name.
func (r *ToolRegistry) Register(tool *Tool) error {
	if tool == nil || tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if tool.Execute == nil {
		return fmt.Errorf("tool %s has no executor", tool.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[strings.ToLower(tool.Name)] = tool
	return nil
}

// Resolve returns the canonical tool name for a planner-supplied name.
// Near misses like "currency_convert" resolve to "currency" by word overlap.
func (r *ToolRegistry) Resolve(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := r.tools[name]; ok {
		return name, true
	}
	if match := r.fuzzyMatch(name); match != "" {
		return match, true
	}
	return "", false
}

// Execute runs the named tool. Unknown names fail with ErrToolNotFound.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	resolved, ok := r.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	r.mu.RLock()
	tool := r.tools[resolved]
	r.mu.RUnlock()

	if args == nil {
		args = map[string]any{}
	}
	res, err := tool.Execute(ctx, args)
	if err != nil {
		return nil, err
	}
	if res.Tool == "" {
		res.Tool = resolved
	}
	return res, nil
}

// fuzzyMatch scores names by shared underscore-separated words and breaks
// ties with edit distance. Returns "" when nothing overlaps.
func (r *ToolRegistry) fuzzyMatch(input string) string {
	inputWords := splitToolWords(input)

	bestName := ""
	bestScore := 0
	for _, name := range r.sortedNames() {
		score := wordOverlapScore(inputWords, splitToolWords(name))
		if score > bestScore {
			bestScore = score
			bestName = name
		} else if score == bestScore && score > 0 {
			if levenshtein(input, name) < levenshtein(input, bestName) {
				bestName = name
			}
		}
	}
	if bestScore >= 1 {
		return bestName
	}
	return ""
}

func (r *ToolRegistry) sortedNames() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func splitToolWords(name string) []string {
	parts := []string{}
	for _, p := range strings.FieldsFunc(strings.ToLower(name), func(c rune) bool {
		return c == '_' || c == '-' || c == ' '
	}) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func wordOverlapScore(a, b []string) int {
	set := make(map[string]bool, len(b))
	for _, w := range b {
		set[w] = true
	}
	score := 0
	for _, w := range a {
		if set[w] {
			score++
		}
	}
	return score
}

func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

// GetTool returns a tool by exact name.
func (r *ToolRegistry) GetTool(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[strings.ToLower(name)]
	return tool, ok
}

// ListTools returns all registered tools sorted by name.
func (r *ToolRegistry) ListTools() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]*Tool, 0, len(r.tools))
	for _, name := range r.sortedNames() {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// FormatToolsForPrompt renders one line per tool for the planner prompt:
// "- use_<name>: description | params: {a:number, b:string} | required: a, b".
func (r *ToolRegistry) FormatToolsForPrompt() string {
	var sb strings.Builder
	for _, tool := range r.ListTools() {
		paramsList := ""
		if len(tool.Parameters.Properties) > 0 {
			names := make([]string, 0, len(tool.Parameters.Properties))
			for pName := range tool.Parameters.Properties {
				names = append(names, pName)
			}
			sort.Strings(names)
			parts := make([]string, 0, len(names))
			for _, pName := range names {
				pType := "any"
				if pm, ok := tool.Parameters.Properties[pName].(map[string]any); ok {
					if t, ok := pm["type"].(string); ok {
						pType = t
					}
				}
				parts = append(parts, pName+":"+pType)
			}
			paramsList = " | params: {" + strings.Join(parts, ", ") + "}"
		}
		reqParams := ""
		if len(tool.Parameters.Required) > 0 {
			reqParams = " | required: " + strings.Join(tool.Parameters.Required, ", ")
		}
		fmt.Fprintf(&sb, "- use_%s: %s%s%s\n", tool.Name, tool.Description, paramsList, reqParams)
	}
	return sb.String()
}
