package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthysbr/travelagent/internal/core/domain"
)

func newCurrencyRegistry(t *testing.T, rates *MockRates) *domain.ToolRegistry {
	t.Helper()
	reg := domain.NewToolRegistry()
	require.NoError(t, reg.Register(NewCurrencyTool(rates)))
	return reg
}

func TestPlanner_Decide(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		expect domain.PlanDecision
	}{
		{
			name:   "answer",
			reply:  `{"action":"answer"}`,
			expect: domain.PlanDecision{Action: domain.PlanAnswer},
		},
		{
			name:   "clarify",
			reply:  `{"action":"clarify","question":"Where to?"}`,
			expect: domain.PlanDecision{Action: domain.PlanClarify, Question: "Where to?"},
		},
		{
			name:  "use currency in a fence",
			reply: "```json\n{\"action\":\"use_currency\",\"args\":{\"amount\":100,\"from\":\"usd\",\"to\":\"jpy\"}}\n```",
			expect: domain.PlanDecision{
				Action: domain.PlanUseTool,
				Tool:   CurrencyToolName,
				Args:   map[string]any{"amount": float64(100), "from": "usd", "to": "jpy"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := newFakeLLM(map[string]scriptedReply{plannerModel: {text: tt.reply}})
			p := NewPlanner(testLogger(), llm, newCurrencyRegistry(t, &MockRates{}), plannerModel)

			meter := &UsageMeter{}
			got, err := p.Decide(ContextWithUsage(context.Background(), meter), "Plan 3 days in Tokyo")
			require.NoError(t, err)
			assert.Equal(t, tt.expect.Action, got.Action)
			assert.Equal(t, tt.expect.Question, got.Question)
			assert.Equal(t, tt.expect.Tool, got.Tool)
			if tt.expect.Args != nil {
				assert.Equal(t, tt.expect.Args, got.Args)
			}
			assert.Equal(t, 15, meter.Total().Total)

			calls := llm.callsFor(plannerModel)
			require.Len(t, calls, 1)
			assert.Zero(t, calls[0].Temperature)
			assert.Contains(t, calls[0].System, "use_currency")
		})
	}
}

func TestPlanner_DecideFailures(t *testing.T) {
	tests := []struct {
		name  string
		reply scriptedReply
	}{
		{"transport error", scriptedReply{err: errors.New("connection refused")}},
		{"no json", scriptedReply{text: "I would just answer."}},
		{"unknown action", scriptedReply{text: `{"action":"dance"}`}},
		{"clarify without question", scriptedReply{text: `{"action":"clarify"}`}},
		{"unknown tool", scriptedReply{text: `{"action":"use_weather","args":{}}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := newFakeLLM(map[string]scriptedReply{plannerModel: tt.reply})
			p := NewPlanner(testLogger(), llm, newCurrencyRegistry(t, &MockRates{}), plannerModel)

			_, err := p.Decide(context.Background(), "hello")
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrPlanner)
		})
	}
}

func TestPlanner_NoToolsPrompt(t *testing.T) {
	llm := newFakeLLM(map[string]scriptedReply{plannerModel: {text: `{"action":"answer"}`}})
	p := NewPlanner(testLogger(), llm, domain.NewToolRegistry(), plannerModel)

	_, err := p.Decide(context.Background(), "hello")
	require.NoError(t, err)
	assert.Contains(t, llm.callsFor(plannerModel)[0].System, "No tools are available")
}

func TestParsePlanOverride(t *testing.T) {
	d, err := ParsePlanOverride("answer")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanAnswer, d.Action)

	d, err = ParsePlanOverride("clarify")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanClarify, d.Action)
	assert.Equal(t, domain.DefaultClarifyQuestion, d.Question)

	d, err = ParsePlanOverride(`{"action":"use_currency","args":{"amount":5,"from":"EUR","to":"GBP"}}`)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanUseTool, d.Action)
	assert.Equal(t, "currency", d.Tool)
	assert.Equal(t, float64(5), d.Args["amount"])

	for _, bad := range []string{"", "   ", "{not json", "explode"} {
		_, err := ParsePlanOverride(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, bad)
	}
}
