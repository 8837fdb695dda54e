package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/manthysbr/travelagent/internal/core/domain"
	"github.com/manthysbr/travelagent/internal/core/ports"
)

// sseSink writes each event as one SSE frame and flushes it immediately.
// Sends fail once the request context is done.
type sseSink struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
}

var _ ports.EventSink = (*sseSink)(nil)

// startSSE writes the stream headers and the initial comment line.
func startSSE(w http.ResponseWriter, flusher http.Flusher) *sseSink {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	return &sseSink{w: w, flusher: flusher}
}

func (s *sseSink) Send(ctx context.Context, evt domain.StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("%w: marshal %s event: %w", domain.ErrEncode, evt.Kind, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", evt.Kind, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
