package services

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/manthysbr/travelagent/internal/core/domain"
)

// NormalizeResult turns raw generated text into an AgentResult grounded in
// sources. It never fails: unparseable text yields the fallback shape. The
// function is pure, so equal inputs give byte-identical results.
//
// When the model cites nothing valid, every source is cited.
func NormalizeResult(raw string, sources []domain.Candidate) domain.AgentResult {
	sourceMap := buildSourceMap(sources)

	obj, ok := ExtractObject(raw)
	if !ok {
		return domain.AgentResult{
			Summary:   domain.ParseFailureSummary,
			Fallback:  true,
			Raw:       raw,
			Citations: []int{},
			SourceMap: sourceMap,
		}
	}

	return domain.AgentResult{
		Summary:     stringify(obj["summary"]),
		Plan:        coercePlan(obj["plan"]),
		Assumptions: coerceAssumptions(obj["assumptions"]),
		NextSteps:   coerceNextSteps(obj["nextSteps"]),
		Citations:   reconcileCitations(obj["citations"], len(sources)),
		SourceMap:   sourceMap,
	}
}

func buildSourceMap(sources []domain.Candidate) []domain.SourceRef {
	out := make([]domain.SourceRef, len(sources))
	for i, s := range sources {
		out[i] = domain.SourceRef{N: i + 1, ID: s.ID, File: s.File}
	}
	return out
}

// stringify renders scalars as text and anything else as compact JSON.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func stringList(items []any) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		out = append(out, stringify(it))
	}
	return out
}

// coercePlan keeps strings and turns lists into string lists, rendering
// non-string elements as compact JSON. Objects and other scalars pass through.
func coercePlan(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []any:
		return stringList(x)
	default:
		return x
	}
}

func coerceAssumptions(v any) []string {
	switch x := v.(type) {
	case []any:
		return stringList(x)
	case string:
		if strings.TrimSpace(x) == "" {
			return []string{}
		}
		return []string{x}
	default:
		return []string{}
	}
}

func coerceNextSteps(v any) string {
	switch x := v.(type) {
	case []any:
		return strings.Join(stringList(x), "\n")
	case nil, map[string]any:
		return ""
	default:
		return stringify(x)
	}
}

// reconcileCitations keeps whole numbers within 1..n in first-seen order and
// drops duplicates. An empty outcome cites all n sources.
func reconcileCitations(v any, n int) []int {
	var items []any
	switch x := v.(type) {
	case []any:
		items = x
	case nil:
	default:
		items = []any{x}
	}

	seen := make(map[int]bool, len(items))
	out := make([]int, 0, len(items))
	for _, it := range items {
		f, ok := toFloat(it)
		if !ok || f != math.Trunc(f) || f < 1 || f > float64(n) {
			continue
		}
		c := int(f)
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}

	if len(out) == 0 {
		for i := 1; i <= n; i++ {
			out = append(out, i)
		}
	}
	return out
}
