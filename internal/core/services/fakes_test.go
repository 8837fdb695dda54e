package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/manthysbr/travelagent/internal/core/domain"
	"github.com/manthysbr/travelagent/internal/core/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	plannerModel = "planner-model"
	rerankModel  = "rerank-model"
	genModel     = "gen-model"
)

type scriptedReply struct {
	text   string
	err    error
	tokens []string // streamed deltas; defaults to text as one token
}

// fakeLLM answers by model name and records every request.
type fakeLLM struct {
	mu      sync.Mutex
	replies map[string]scriptedReply
	calls   []ports.CompletionRequest
}

func newFakeLLM(replies map[string]scriptedReply) *fakeLLM {
	return &fakeLLM{replies: replies}
}

func (f *fakeLLM) reply(req ports.CompletionRequest) (scriptedReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	r, ok := f.replies[req.Model]
	if !ok {
		return scriptedReply{}, fmt.Errorf("no scripted reply for model %q", req.Model)
	}
	return r, r.err
}

func (f *fakeLLM) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.Completion, error) {
	r, err := f.reply(req)
	if err != nil {
		return nil, err
	}
	return &ports.Completion{Text: r.text, Usage: domain.TokenUsage{Prompt: 10, Completion: 5, Total: 15}}, nil
}

func (f *fakeLLM) Stream(ctx context.Context, req ports.CompletionRequest, onToken func(string) error) (*ports.Completion, error) {
	r, err := f.reply(req)
	if err != nil {
		return nil, err
	}
	tokens := r.tokens
	if tokens == nil {
		tokens = []string{r.text}
	}
	for _, tok := range tokens {
		if err := onToken(tok); err != nil {
			return nil, err
		}
	}
	return &ports.Completion{Text: r.text, Usage: domain.TokenUsage{Prompt: 10, Completion: 5, Total: 15}}, nil
}

func (f *fakeLLM) callsFor(model string) []ports.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ports.CompletionRequest
	for _, c := range f.calls {
		if c.Model == model {
			out = append(out, c)
		}
	}
	return out
}

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, domain.TokenUsage, error) {
	args := m.Called(ctx, text)
	var vec []float32
	if v := args.Get(0); v != nil {
		vec = v.([]float32)
	}
	return vec, args.Get(1).(domain.TokenUsage), args.Error(2)
}

type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) Retrieve(ctx context.Context, query []float32, k int) ([]domain.Candidate, error) {
	args := m.Called(ctx, query, k)
	var out []domain.Candidate
	if v := args.Get(0); v != nil {
		out = v.([]domain.Candidate)
	}
	return out, args.Error(1)
}

type MockRates struct {
	mock.Mock
}

func (m *MockRates) Convert(ctx context.Context, amount float64, from, to string) (ports.Rate, error) {
	args := m.Called(ctx, amount, from, to)
	return args.Get(0).(ports.Rate), args.Error(1)
}

func candidates(n int) []domain.Candidate {
	out := make([]domain.Candidate, n)
	for i := range out {
		file := fmt.Sprintf("doc%d.md", i+1)
		out[i] = domain.Candidate{
			Chunk: domain.Chunk{ID: domain.ChunkID(file, 0), File: file, Text: fmt.Sprintf("text %d", i+1)},
			Rank:  i + 1,
			Score: 1 - float64(i)/10,
		}
	}
	return out
}

// recordingSink collects events and can fail after a number of sends.
type recordingSink struct {
	mu        sync.Mutex
	events    []domain.StreamEvent
	failAfter int // 0 means never fail
	err       error
}

func (s *recordingSink) Send(ctx context.Context, evt domain.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter > 0 && len(s.events) >= s.failAfter {
		return s.err
	}
	s.events = append(s.events, evt)
	return nil
}

func (s *recordingSink) kinds() []domain.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EventKind, len(s.events))
	for i, e := range s.events {
		out[i] = e.Kind
	}
	return out
}

func (s *recordingSink) payloadOf(kind domain.EventKind) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.Kind == kind {
			return e.Payload
		}
	}
	return nil
}
