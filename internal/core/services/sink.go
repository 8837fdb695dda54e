package services

import (
	"context"
	"sync"

	"github.com/manthysbr/travelagent/internal/core/domain"
	"github.com/manthysbr/travelagent/internal/core/ports"
)

// SinkFunc adapts a function to ports.EventSink.
type SinkFunc func(ctx context.Context, evt domain.StreamEvent) error

func (f SinkFunc) Send(ctx context.Context, evt domain.StreamEvent) error {
	return f(ctx, evt)
}

// BufferSink collects every event of a run for the one-shot mode.
type BufferSink struct {
	mu     sync.Mutex
	events []domain.StreamEvent
}

var _ ports.EventSink = (*BufferSink)(nil)

func NewBufferSink() *BufferSink {
	return &BufferSink{}
}

func (b *BufferSink) Send(ctx context.Context, evt domain.StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	b.events = append(b.events, evt)
	b.mu.Unlock()
	return nil
}

// Events returns a copy of the collected events in order.
func (b *BufferSink) Events() []domain.StreamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.StreamEvent(nil), b.events...)
}

// Outcome is the terminal state of a buffered run. Exactly one of Result,
// Clarify or Error is set once the run has finished.
type Outcome struct {
	Result  *domain.ResultPayload
	Clarify *domain.ClarifyPayload
	Error   *domain.ErrorPayload
	Done    *domain.DonePayload
}

func (b *BufferSink) Outcome() Outcome {
	var out Outcome
	for _, evt := range b.Events() {
		switch p := evt.Payload.(type) {
		case domain.ResultPayload:
			out.Result = &p
		case domain.ClarifyPayload:
			out.Clarify = &p
		case domain.ErrorPayload:
			out.Error = &p
		case domain.DonePayload:
			out.Done = &p
		}
	}
	return out
}
