package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentResult_MarshalJSON(t *testing.T) {
	t.Run("normal shape fills empty collections", func(t *testing.T) {
		b, err := json.Marshal(AgentResult{Summary: "s"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"summary":"s","plan":"","assumptions":[],"nextSteps":"","citations":[],"sourceMap":[]}`, string(b))
	})

	t.Run("tool_used present when set", func(t *testing.T) {
		b, err := json.Marshal(AgentResult{
			Summary:   "s",
			Plan:      []string{"day 1"},
			Citations: []int{1},
			SourceMap: []SourceRef{{N: 1, ID: "kyoto.md#0", File: "kyoto.md"}},
			ToolUsed:  "currency",
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"summary":"s","plan":["day 1"],"assumptions":[],"nextSteps":"","citations":[1],
			"sourceMap":[{"n":1,"id":"kyoto.md#0","file":"kyoto.md"}],"tool_used":"currency"}`, string(b))
	})

	t.Run("fallback shape", func(t *testing.T) {
		b, err := json.Marshal(AgentResult{Summary: ParseFailureSummary, Fallback: true, Raw: "oops"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"summary":"Could not parse response","raw":"oops","citations":[],"sourceMap":[]}`, string(b))
	})
}

func TestPricingConfig_Cost(t *testing.T) {
	p := PricingConfig{PromptPer1K: 0.002, CompletionPer1K: 0.01}
	assert.InDelta(t, 0.002*1.5+0.01*0.5, p.Cost(TokenUsage{Prompt: 1500, Completion: 500, Total: 2000}), 1e-12)
}

func TestChunkID(t *testing.T) {
	id := ChunkID("kyoto-food.md", 3)
	assert.Equal(t, "kyoto-food.md#3", id)

	file, idx, err := ParseChunkID(id)
	require.NoError(t, err)
	assert.Equal(t, "kyoto-food.md", file)
	assert.Equal(t, 3, idx)

	for _, bad := range []string{"nohash", "#1", "file#", "file#x", "file#-1"} {
		_, _, err := ParseChunkID(bad)
		assert.Error(t, err, bad)
	}
}
