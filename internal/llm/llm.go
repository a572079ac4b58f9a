// Package llm provides interfaces and implementations for Large Language Model clients.
package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyCompletion is returned when the provider answers with no text at all.
var ErrEmptyCompletion = errors.New("llm returned an empty completion")

// GenerateOptions configures a single completion request.
type GenerateOptions struct {
	// Model overrides the client's default model when non-empty.
	Model string

	// SystemPrompt sets the system-level instructions for the model.
	SystemPrompt string

	// Temperature controls randomness in generation (0.0 = deterministic).
	Temperature float32

	// MaxTokens limits the number of generated tokens; 0 means provider default.
	MaxTokens int
}

// StreamChunk represents a single chunk of streamed response from the LLM.
type StreamChunk struct {
	Token string
	Done  bool
	Error error
}

// LLM defines the interface for Large Language Model clients.
type LLM interface {
	// Generate sends a prompt and blocks until the full completion is available.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// GenerateStream returns a channel of completion fragments. The channel is
	// closed when generation finishes; a chunk with Error set is always the last.
	GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamChunk, error)
}

// Collect drains a stream into a single string.
func Collect(chunks <-chan StreamChunk) (string, error) {
	var sb strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			return sb.String(), chunk.Error
		}
		sb.WriteString(chunk.Token)
	}
	return sb.String(), nil
}

// withSystem folds the system prompt into the user prompt for providers whose
// single-prompt API has no separate system slot.
func withSystem(system, prompt string) string {
	if system == "" {
		return prompt
	}
	return system + "\n\n" + prompt
}

// ExtractJSON strips a surrounding markdown code fence, if any, from a model
// reply so the remainder can be unmarshalled.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)
	if idx := strings.Index(response, "```"); idx != -1 {
		start := idx + 3
		// skip a language tag such as ```json
		if nl := strings.IndexByte(response[start:], '\n'); nl != -1 && !strings.ContainsAny(response[start:start+nl], "{[") {
			start += nl + 1
		}
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = response[start : start+end]
		} else {
			response = response[start:]
		}
	}
	response = strings.TrimSpace(response)

	// drop chatter around the outermost object
	if first, last := strings.IndexByte(response, '{'), strings.LastIndexByte(response, '}'); first > 0 && last > first {
		response = response[first : last+1]
	}
	return response
}
