package services

import (
	"context"
	"sync"

	"github.com/manthysbr/travelagent/internal/core/domain"
)

// Use a private type for context keys to avoid collisions
type serviceContextKey string

const (
	ctxKeyUsage serviceContextKey = "usage_meter"
)

// UsageMeter sums token usage over every LLM call of one request.
type UsageMeter struct {
	mu    sync.Mutex
	usage domain.TokenUsage
}

func (m *UsageMeter) Add(u domain.TokenUsage) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.usage.Add(u)
	m.mu.Unlock()
}

func (m *UsageMeter) Total() domain.TokenUsage {
	if m == nil {
		return domain.TokenUsage{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

// ContextWithUsage injects a meter that services record their usage into.
func ContextWithUsage(ctx context.Context, m *UsageMeter) context.Context {
	return context.WithValue(ctx, ctxKeyUsage, m)
}

// UsageFromContext returns the request meter, or nil when none is set.
func UsageFromContext(ctx context.Context) *UsageMeter {
	m, _ := ctx.Value(ctxKeyUsage).(*UsageMeter)
	return m
}

func recordUsage(ctx context.Context, u domain.TokenUsage) {
	UsageFromContext(ctx).Add(u)
}
