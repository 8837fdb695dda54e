package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthysbr/travelagent/internal/core/ports"
)

func fakeOpenAI(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		switch {
		case strings.HasSuffix(r.URL.Path, "/embeddings"):
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"object":"list","model":"text-embedding-3-small",
				"data":[{"object":"embedding","index":0,"embedding":[0.5,-0.25,1]}],
				"usage":{"prompt_tokens":4,"total_tokens":4}}`)

		case strings.HasSuffix(r.URL.Path, "/chat/completions") && body["stream"] == true:
			w.Header().Set("Content-Type", "text/event-stream")
			for _, tok := range []string{"{\"summary\"", ":\"ok\"}"} {
				chunk, _ := json.Marshal(map[string]any{
					"id": "c1", "object": "chat.completion.chunk", "created": 1, "model": body["model"],
					"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": tok}}},
				})
				fmt.Fprintf(w, "data: %s\n\n", chunk)
			}
			fmt.Fprint(w, `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`+"\n\n")
			fmt.Fprint(w, "data: [DONE]\n\n")

		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"id":"c1","object":"chat.completion","created":1,"model":%q,
				"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hello"}}],
				"usage":{"prompt_tokens":7,"completion_tokens":2,"total_tokens":9}}`, body["model"])

		default:
			http.NotFound(w, r)
		}
	}))
}

func TestOpenAIProvider_Complete(t *testing.T) {
	srv := fakeOpenAI(t)
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL+"/v1/", "test-key", "", 0)
	out, err := p.Complete(context.Background(), ports.CompletionRequest{
		Model: "gpt-4o-mini", System: "sys", User: "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Text)
	assert.Equal(t, 7, out.Usage.Prompt)
	assert.Equal(t, 2, out.Usage.Completion)
	assert.Equal(t, 9, out.Usage.Total)
}

func TestOpenAIProvider_Stream(t *testing.T) {
	srv := fakeOpenAI(t)
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL+"/v1/", "test-key", "", 5)
	var tokens []string
	out, err := p.Stream(context.Background(), ports.CompletionRequest{Model: "gpt-4o", User: "hi"}, func(tok string) error {
		tokens = append(tokens, tok)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"{\"summary\"", ":\"ok\"}"}, tokens)
	assert.Equal(t, `{"summary":"ok"}`, out.Text)
	assert.Equal(t, 15, out.Usage.Total)
}

func TestOpenAIProvider_StreamStopsOnSinkError(t *testing.T) {
	srv := fakeOpenAI(t)
	defer srv.Close()

	gone := errors.New("client gone")
	p := NewOpenAIProvider(srv.URL+"/v1/", "test-key", "", 0)
	calls := 0
	_, err := p.Stream(context.Background(), ports.CompletionRequest{Model: "gpt-4o", User: "hi"}, func(string) error {
		calls++
		return gone
	})
	assert.ErrorIs(t, err, gone)
	assert.Equal(t, 1, calls)
}

func TestOpenAIProvider_Embed(t *testing.T) {
	srv := fakeOpenAI(t)
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL+"/v1/", "test-key", "text-embedding-3-small", 0)
	vec, usage, err := p.Embed(context.Background(), "kyoto food")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25, 1}, vec)
	assert.Equal(t, 4, usage.Prompt)
}

func TestOpenAIProvider_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL+"/v1/", "bad", "", 0)
	_, err := p.Complete(context.Background(), ports.CompletionRequest{Model: "gpt-4o", User: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat completion (gpt-4o)")
}
