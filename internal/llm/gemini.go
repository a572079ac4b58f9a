package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// DefaultGeminiModel is the model the case summaries were tuned against.
const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiClient implements LLM on top of a langchaingo model, normally the
// Google AI (Gemini) provider.
type GeminiClient struct {
	model       llms.Model
	temperature float32
}

// GeminiConfig holds what is needed to reach the Gemini API.
type GeminiConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float32
}

// NewGeminiClient dials the Google AI API through langchaingo.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	model, err := NewGoogleAI(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewGeminiClientFromModel(model, cfg.Temperature), nil
}

// NewGoogleAI builds the langchaingo Google AI client shared by generation
// and embeddings.
func NewGoogleAI(ctx context.Context, cfg GeminiConfig) (*googleai.GoogleAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	name := cfg.Model
	if name == "" {
		name = DefaultGeminiModel
	}
	opts := []googleai.Option{
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(name),
	}
	if cfg.EmbeddingModel != "" {
		opts = append(opts, googleai.WithDefaultEmbeddingModel(cfg.EmbeddingModel))
	}
	client, err := googleai.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating google ai client: %w", err)
	}
	return client, nil
}

// NewGeminiClientFromModel wraps any langchaingo model.
func NewGeminiClientFromModel(model llms.Model, temperature float32) *GeminiClient {
	return &GeminiClient{model: model, temperature: temperature}
}

// Generate issues a single-prompt completion.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, withSystem(opts.SystemPrompt, prompt), c.callOptions(opts)...)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyCompletion
	}
	return out, nil
}

// GenerateStream relays langchaingo's streaming callback onto a channel.
func (c *GeminiClient) GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamChunk, error) {
	chunks := make(chan StreamChunk)
	callOpts := append(c.callOptions(opts), llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		if !send(ctx, chunks, StreamChunk{Token: string(chunk)}) {
			return ctx.Err()
		}
		return nil
	}))

	go func() {
		defer close(chunks)
		_, err := llms.GenerateFromSinglePrompt(ctx, c.model, withSystem(opts.SystemPrompt, prompt), callOpts...)
		if err != nil {
			send(ctx, chunks, StreamChunk{Error: fmt.Errorf("gemini stream: %w", err), Done: true})
			return
		}
		send(ctx, chunks, StreamChunk{Done: true})
	}()
	return chunks, nil
}

func (c *GeminiClient) callOptions(opts GenerateOptions) []llms.CallOption {
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = c.temperature
	}
	var callOpts []llms.CallOption
	if temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(float64(temperature)))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.Model != "" {
		callOpts = append(callOpts, llms.WithModel(opts.Model))
	}
	return callOpts
}

var _ LLM = (*GeminiClient)(nil)
