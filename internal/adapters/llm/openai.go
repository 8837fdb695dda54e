package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/manthysbr/travelagent/internal/core/domain"
	"github.com/manthysbr/travelagent/internal/core/ports"
)

// OpenAIProvider implements ports.Completer and ports.Embedder against any
// OpenAI-compatible API (OpenAI, Azure OpenAI, Together AI, Ollama /v1).
type OpenAIProvider struct {
	client         openai.Client
	embeddingModel string
	limiter        *rate.Limiter
}

var (
	_ ports.Completer = (*OpenAIProvider)(nil)
	_ ports.Embedder  = (*OpenAIProvider)(nil)
)

// NewOpenAIProvider builds a client with SDK retries disabled; every stage
// issues a single bounded request. requestsPerSecond <= 0 disables limiting.
func NewOpenAIProvider(baseURL, apiKey, embeddingModel string, requestsPerSecond int, opts ...option.RequestOption) *OpenAIProvider {
	if embeddingModel == "" {
		embeddingModel = "text-embedding-3-small"
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)

	return &OpenAIProvider{
		client:         openai.NewClient(reqOpts...),
		embeddingModel: embeddingModel,
		limiter:        createLimiter(requestsPerSecond),
	}
}

func createLimiter(limit int) *rate.Limiter {
	if limit <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(limit), limit)
}

func (p *OpenAIProvider) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

func (p *OpenAIProvider) params(req ports.CompletionRequest) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.User))

	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
	}
}

// Complete issues one chat completion call.
func (p *OpenAIProvider) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.Completion, error) {
	if err := p.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := p.client.Chat.Completions.New(ctx, p.params(req))
	if err != nil {
		return nil, fmt.Errorf("chat completion (%s): %w", req.Model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion (%s): no choices in response", req.Model)
	}

	return &ports.Completion{
		Text:  resp.Choices[0].Message.Content,
		Usage: usageOf(resp.Usage),
	}, nil
}

// Stream issues a streaming chat completion and forwards every non-empty
// content delta to onToken before reading the next chunk.
func (p *OpenAIProvider) Stream(ctx context.Context, req ports.CompletionRequest, onToken func(string) error) (*ports.Completion, error) {
	if err := p.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := p.params(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var sb strings.Builder
	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if err := onToken(delta); err != nil {
			return nil, err
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("chat stream (%s): %w", req.Model, err)
	}

	return &ports.Completion{
		Text:  sb.String(),
		Usage: usageOf(acc.Usage),
	}, nil
}

// Embed returns the embedding of text as float32.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, domain.TokenUsage, error) {
	if err := p.wait(ctx); err != nil {
		return nil, domain.TokenUsage{}, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(p.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return nil, domain.TokenUsage{}, fmt.Errorf("embedding (%s): %w", p.embeddingModel, err)
	}
	if len(resp.Data) == 0 {
		return nil, domain.TokenUsage{}, fmt.Errorf("embedding (%s): empty response", p.embeddingModel)
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	usage := domain.TokenUsage{
		Prompt: int(resp.Usage.PromptTokens),
		Total:  int(resp.Usage.TotalTokens),
	}
	return vec, usage, nil
}

func usageOf(u openai.CompletionUsage) domain.TokenUsage {
	return domain.TokenUsage{
		Prompt:     int(u.PromptTokens),
		Completion: int(u.CompletionTokens),
		Total:      int(u.TotalTokens),
	}
}
