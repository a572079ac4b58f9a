// Package router picks one query engine per question with an LLM selector.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knoguchi/lexrag/internal/engine"
	"github.com/knoguchi/lexrag/internal/index"
	"github.com/knoguchi/lexrag/internal/llm"
)

var (
	// ErrNoTools is returned when a router is built without any tool.
	ErrNoTools = errors.New("no valid query engine tools found")

	// ErrInvalidSelection is returned when the selector output names no tool.
	ErrInvalidSelection = errors.New("invalid tool selection")
)

// Tool is a query engine with a description the selector reads.
type Tool struct {
	Name        string
	Description string
	Engine      engine.QueryEngine
}

// Selection is the selector's decision.
type Selection struct {
	Index  int
	Tool   *Tool
	Reason string
}

// Result is a routed answer.
type Result struct {
	*engine.Response
	Tool   string
	Reason string
}

// Router routes queries to one of its tools.
type Router struct {
	llmClient llm.LLM
	tools     []*Tool
	opts      llm.GenerateOptions
	verbose   bool
	logger    *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithVerbose logs every selection at info level.
func WithVerbose(verbose bool) Option {
	return func(r *Router) {
		r.verbose = verbose
	}
}

// WithGenerateOptions sets the options used for selector calls.
func WithGenerateOptions(opts llm.GenerateOptions) Option {
	return func(r *Router) {
		r.opts = opts
	}
}

// New creates a Router. Nil tools and tools without an engine are dropped.
func New(llmClient llm.LLM, tools []*Tool, opts ...Option) (*Router, error) {
	var valid []*Tool
	for _, t := range tools {
		if t != nil && t.Engine != nil {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: cannot create router", ErrNoTools)
	}

	r := &Router{
		llmClient: llmClient,
		tools:     valid,
		logger:    slog.Default().With("component", "router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Tools returns the router's tools in choice order.
func (r *Router) Tools() []*Tool {
	return append([]*Tool(nil), r.tools...)
}

// Select asks the LLM which tool fits the query. With a single tool no call is made.
func (r *Router) Select(ctx context.Context, query string) (*Selection, error) {
	if len(r.tools) == 1 {
		return &Selection{Index: 0, Tool: r.tools[0], Reason: "only one tool available"}, nil
	}

	response, err := r.llmClient.Generate(ctx, r.selectPrompt(query), r.opts)
	if err != nil {
		return nil, fmt.Errorf("tool selection failed: %w", err)
	}

	choice, reason, err := parseSelection(response, len(r.tools))
	if err != nil {
		return nil, err
	}
	sel := &Selection{Index: choice - 1, Tool: r.tools[choice-1], Reason: reason}
	if r.verbose {
		r.logger.Info("selecting query engine", "index", sel.Index, "tool", sel.Tool.Name, "reason", reason)
	}
	return sel, nil
}

// Query selects a tool and returns its answer.
func (r *Router) Query(ctx context.Context, query string) (*Result, error) {
	sel, err := r.Select(ctx, query)
	if err != nil {
		return nil, err
	}
	resp, err := sel.Tool.Engine.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sel.Tool.Name, err)
	}
	return &Result{Response: resp, Tool: sel.Tool.Name, Reason: sel.Reason}, nil
}

// QueryStream selects a tool and streams its answer. Tools whose engine
// cannot stream are answered in one chunk.
func (r *Router) QueryStream(ctx context.Context, query string) (*Selection, []index.NodeWithScore, <-chan llm.StreamChunk, error) {
	sel, err := r.Select(ctx, query)
	if err != nil {
		return nil, nil, nil, err
	}

	if streamer, ok := sel.Tool.Engine.(engine.StreamingQueryEngine); ok {
		sources, chunks, err := streamer.QueryStream(ctx, query)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%s: %w", sel.Tool.Name, err)
		}
		return sel, sources, chunks, nil
	}

	resp, err := sel.Tool.Engine.Query(ctx, query)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", sel.Tool.Name, err)
	}
	ch := make(chan llm.StreamChunk, 1)
	ch <- llm.StreamChunk{Token: resp.Answer, Done: true}
	close(ch)
	return sel, resp.Sources, ch, nil
}

func (r *Router) selectPrompt(query string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Some choices are given below. It is provided in a numbered list (1 to %d), "+
		"where each item in the list corresponds to a summary.\n", len(r.tools))
	sb.WriteString("---------------------\n")
	for i, t := range r.tools {
		fmt.Fprintf(&sb, "(%d) %s\n\n", i+1, strings.TrimSpace(t.Description))
	}
	sb.WriteString("---------------------\n")
	fmt.Fprintf(&sb, "Using only the choices above and not prior knowledge, return the choice "+
		"that is most relevant to the question: '%s'\n\n", query)
	sb.WriteString(`The output should be ONLY a JSON object in this exact format, with no other text:
{"choice": 1, "reason": "why this choice fits the question"}
`)
	return sb.String()
}

type selectionResponse struct {
	Choice int    `json:"choice"`
	Reason string `json:"reason"`
}

// parseSelection reads the 1-based choice from the selector reply. A JSON
// list of answers is accepted and its first element used.
func parseSelection(response string, numChoices int) (int, string, error) {
	var parsed selectionResponse
	if err := json.Unmarshal([]byte(llm.ExtractJSON(response)), &parsed); err != nil {
		var list []selectionResponse
		first, last := strings.IndexByte(response, '['), strings.LastIndexByte(response, ']')
		if first < 0 || last < first || json.Unmarshal([]byte(response[first:last+1]), &list) != nil || len(list) == 0 {
			return 0, "", fmt.Errorf("%w: %q", ErrInvalidSelection, response)
		}
		parsed = list[0]
	}

	if parsed.Choice < 1 || parsed.Choice > numChoices {
		return 0, "", fmt.Errorf("%w: choice %d out of range 1-%d", ErrInvalidSelection, parsed.Choice, numChoices)
	}
	return parsed.Choice, parsed.Reason, nil
}
