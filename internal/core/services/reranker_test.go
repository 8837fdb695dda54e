package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthysbr/travelagent/internal/core/domain"
)

func idsOf(cands []domain.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.ID
	}
	return out
}

func TestReranker_ShortListSkipsCall(t *testing.T) {
	llm := newFakeLLM(nil)
	r := NewReranker(testLogger(), llm, rerankModel)

	in := candidates(3)
	out, err := r.Rerank(context.Background(), "tokyo", in, 4)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Empty(t, llm.callsFor(rerankModel))
}

func TestReranker_OrdersByScore(t *testing.T) {
	llm := newFakeLLM(map[string]scriptedReply{
		rerankModel: {text: `[{"n":1,"score":2},{"n":2,"score":9.5},{"n":3,"score":"7"},{"n":4,"score":1}]`},
	})
	r := NewReranker(testLogger(), llm, rerankModel)

	meter := &UsageMeter{}
	out, err := r.Rerank(ContextWithUsage(context.Background(), meter), "tokyo food", candidates(5), 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"doc2.md#0", "doc3.md#0", "doc1.md#0"}, idsOf(out))
	assert.Equal(t, []int{1, 2, 3}, []int{out[0].Rank, out[1].Rank, out[2].Rank})
	assert.Equal(t, 9.5, out[0].Score)
	assert.Equal(t, 15, meter.Total().Total)

	call := llm.callsFor(rerankModel)[0]
	assert.True(t, strings.HasPrefix(call.User, "Query:\ntokyo food\n\nCandidates:\n[1] (doc1.md) text 1"))
	assert.Contains(t, call.User, "\n---\n[2] (doc2.md) text 2")
}

func TestReranker_UnscoredKeepRelativeOrder(t *testing.T) {
	llm := newFakeLLM(map[string]scriptedReply{
		rerankModel: {text: "```json\n[{\"n\":4,\"score\":5},{\"n\":1.5,\"score\":10}]\n```"},
	})
	r := NewReranker(testLogger(), llm, rerankModel)

	out, err := r.Rerank(context.Background(), "q", candidates(4), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc4.md#0", "doc1.md#0", "doc2.md#0"}, idsOf(out))
	assert.Zero(t, out[1].Score)
}

func TestReranker_PreviewIsCapped(t *testing.T) {
	llm := newFakeLLM(map[string]scriptedReply{rerankModel: {text: `[{"n":1,"score":1}]`}})
	r := NewReranker(testLogger(), llm, rerankModel)

	in := candidates(2)
	in[0].Text = strings.Repeat("é", 700)
	_, err := r.Rerank(context.Background(), "q", in, 1)
	require.NoError(t, err)

	user := llm.callsFor(rerankModel)[0].User
	assert.Contains(t, user, strings.Repeat("é", 600)+"…")
	assert.NotContains(t, user, strings.Repeat("é", 601))
}

func TestReranker_Failures(t *testing.T) {
	tests := []struct {
		name  string
		reply scriptedReply
	}{
		{"transport", scriptedReply{err: errors.New("timeout")}},
		{"prose", scriptedReply{text: "candidate 2 is best"}},
		{"no usable scores", scriptedReply{text: `[{"n":"x","score":1},{"id":2}]`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := newFakeLLM(map[string]scriptedReply{rerankModel: tt.reply})
			r := NewReranker(testLogger(), llm, rerankModel)

			_, err := r.Rerank(context.Background(), "q", candidates(5), 2)
			assert.ErrorIs(t, err, domain.ErrRerank)
		})
	}
}
