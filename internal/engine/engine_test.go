package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/knoguchi/lexrag/internal/index"
	"github.com/knoguchi/lexrag/internal/llm"
)

type fakeLLM struct {
	response string
	err      error
	prompt   string
	opts     llm.GenerateOptions
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	f.prompt, f.opts = prompt, opts
	return f.response, f.err
}

func (f *fakeLLM) GenerateStream(ctx context.Context, prompt string, opts llm.GenerateOptions) (<-chan llm.StreamChunk, error) {
	f.prompt, f.opts = prompt, opts
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan llm.StreamChunk, 3)
	for _, tok := range strings.SplitAfter(f.response, " ") {
		ch <- llm.StreamChunk{Token: tok}
	}
	close(ch)
	return ch, nil
}

func staticRetriever(texts ...string) index.Retriever {
	return index.RetrieverFunc(func(ctx context.Context, query string) ([]index.NodeWithScore, error) {
		out := make([]index.NodeWithScore, len(texts))
		for i, text := range texts {
			out[i] = index.NodeWithScore{Node: index.Node{ID: text, Text: text}}
		}
		return out, nil
	})
}

func TestPromptEngine_Query(t *testing.T) {
	fake := &fakeLLM{response: "The appeal was dismissed."}
	e := NewPromptEngine(staticRetriever("first chunk", "second chunk"), fake,
		"CTX[{context_str}] Q[{query_str}]",
		WithGenerateOptions(llm.GenerateOptions{Temperature: 0.3}))

	resp, err := e.Query(context.Background(), "what happened?")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if resp.Answer != "The appeal was dismissed." {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	if len(resp.Sources) != 2 {
		t.Errorf("expected 2 sources, got %d", len(resp.Sources))
	}
	if want := "CTX[first chunk\n\nsecond chunk] Q[what happened?]"; fake.prompt != want {
		t.Errorf("prompt = %q, want %q", fake.prompt, want)
	}
	if fake.opts.Temperature != 0.3 {
		t.Errorf("generate options not passed through: %+v", fake.opts)
	}
}

func TestPromptEngine_Templates(t *testing.T) {
	fake := &fakeLLM{response: "ok"}

	_, err := NewPromptEngine(staticRetriever("JUDGMENT TEXT"), fake, CaseSummaryTemplate).Query(context.Background(), "summarize")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(fake.prompt, "JUDGMENT TEXT") || strings.Contains(fake.prompt, ContextPlaceholder) {
		t.Errorf("summary prompt not filled: %s", fake.prompt)
	}
	if !strings.Contains(fake.prompt, "9. References") {
		t.Error("summary prompt lost its section template")
	}

	_, err = NewPromptEngine(staticRetriever("SECTION 138"), fake, LegalQATemplate).Query(context.Background(), "is a cheque bounce criminal?")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(fake.prompt, "SECTION 138") || !strings.Contains(fake.prompt, "is a cheque bounce criminal?") {
		t.Errorf("qa prompt not filled: %s", fake.prompt)
	}
	if strings.Contains(fake.prompt, QueryPlaceholder) {
		t.Error("qa prompt still has the query placeholder")
	}
}

func TestPromptEngine_EmptyContext(t *testing.T) {
	fake := &fakeLLM{response: "ok"}
	e := NewPromptEngine(staticRetriever(), fake, "[{context_str}]")

	if _, err := e.Query(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}
	if fake.prompt != "[]" {
		t.Errorf("prompt = %q", fake.prompt)
	}
}

func TestPromptEngine_Errors(t *testing.T) {
	if _, err := NewPromptEngine(staticRetriever(), &fakeLLM{}, "").Query(context.Background(), "  "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}

	boom := errors.New("boom")
	failing := index.RetrieverFunc(func(ctx context.Context, query string) ([]index.NodeWithScore, error) {
		return nil, boom
	})
	if _, err := NewPromptEngine(failing, &fakeLLM{}, "").Query(context.Background(), "q"); !errors.Is(err, boom) {
		t.Errorf("expected retrieval error, got %v", err)
	}

	if _, err := NewPromptEngine(staticRetriever("x"), &fakeLLM{err: boom}, "").Query(context.Background(), "q"); !errors.Is(err, boom) {
		t.Errorf("expected generation error, got %v", err)
	}
}

func TestPromptEngine_QueryStream(t *testing.T) {
	fake := &fakeLLM{response: "streamed answer here"}
	e := NewPromptEngine(staticRetriever("ctx"), fake, "{context_str}|{query_str}")

	sources, chunks, err := e.QueryStream(context.Background(), "q")
	if err != nil {
		t.Fatalf("QueryStream() error = %v", err)
	}
	if len(sources) != 1 {
		t.Errorf("expected 1 source, got %d", len(sources))
	}
	answer, err := llm.Collect(chunks)
	if err != nil || answer != "streamed answer here" {
		t.Errorf("Collect() = %q, %v", answer, err)
	}
	if fake.prompt != "ctx|q" {
		t.Errorf("prompt = %q", fake.prompt)
	}
}

func TestPromptEngine_Deduplication(t *testing.T) {
	fake := &fakeLLM{response: "ok"}
	e := NewPromptEngine(staticRetriever(
		"the appellant filed the appeal before the high court",
		"The appellant filed the appeal before the High Court.",
		"the respondent relied on section 138",
	), fake, "{context_str}", WithDeduplication(0.7))

	resp, err := e.Query(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Sources) != 2 || resp.Sources[1].Node.Text != "the respondent relied on section 138" {
		t.Errorf("expected near-duplicate dropped, got %+v", resp.Sources)
	}
}

func TestJaccard(t *testing.T) {
	a := wordSet("the quick brown fox")
	b := wordSet("the quick red fox")
	// {the quick brown fox} vs {the quick red fox}: 3 shared of 5
	if got := jaccard(a, b); got != 0.6 {
		t.Errorf("jaccard = %f, want 0.6", got)
	}
	if got := jaccard(wordSet(""), wordSet("")); got != 1 {
		t.Errorf("empty sets should be identical, got %f", got)
	}
}
