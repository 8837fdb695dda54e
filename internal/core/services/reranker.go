package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/manthysbr/travelagent/internal/core/domain"
	"github.com/manthysbr/travelagent/internal/core/ports"
)

const (
	rerankPreviewRunes = 600
	rerankSystemPrompt = "You are a precise retrieval reranker. Score each candidate for how well it answers the query. " +
		`Return JSON ONLY as an array: [{"n":1,"score":9.2}, ...]. 0=irrelevant, 10=perfect.`
)

// Reranker reorders retrieval candidates with one LLM judgment call.
type Reranker struct {
	logger *slog.Logger
	llm    ports.Completer
	model  string
}

func NewReranker(logger *slog.Logger, llm ports.Completer, model string) *Reranker {
	return &Reranker{logger: logger, llm: llm, model: model}
}

// Rerank returns at most finalK candidates ordered by descending judgment
// score. Lists no longer than finalK are returned unchanged without a call.
// Candidates the model did not score get 0 and keep their relative order.
// Failures wrap domain.ErrRerank.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []domain.Candidate, finalK int) ([]domain.Candidate, error) {
	if finalK < 0 {
		finalK = 0
	}
	if len(candidates) <= finalK {
		return append([]domain.Candidate(nil), candidates...), nil
	}

	resp, err := r.llm.Complete(ctx, ports.CompletionRequest{
		Model:       r.model,
		System:      rerankSystemPrompt,
		User:        rerankUserPrompt(query, candidates),
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRerank, err)
	}
	recordUsage(ctx, resp.Usage)

	arr, ok := ExtractArray(resp.Text)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON array in reranker output", domain.ErrRerank)
	}
	scores := parseScores(arr)
	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: reranker returned no usable scores", domain.ErrRerank)
	}

	ranked := make([]domain.Candidate, len(candidates))
	for i, c := range candidates {
		c.Score = scores[i+1]
		ranked[i] = c
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	r.logger.Debug("reranked candidates", "in", len(candidates), "scored", len(scores), "out", finalK)
	return domain.AssignRanks(ranked[:finalK]), nil
}

func rerankUserPrompt(query string, candidates []domain.Candidate) string {
	entries := make([]string, len(candidates))
	for i, c := range candidates {
		entries[i] = fmt.Sprintf("[%d] (%s) %s", i+1, c.File, preview(c.Text, rerankPreviewRunes))
	}
	return "Query:\n" + query + "\n\nCandidates:\n" + strings.Join(entries, "\n---\n")
}

func preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}

// parseScores keeps entries whose n is a whole number and whose score is finite.
func parseScores(arr []any) map[int]float64 {
	scores := make(map[int]float64, len(arr))
	for _, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		n, okN := toFloat(obj["n"])
		s, okS := toFloat(obj["score"])
		if !okN || !okS || n != math.Trunc(n) {
			continue
		}
		scores[int(n)] = s
	}
	return scores
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
