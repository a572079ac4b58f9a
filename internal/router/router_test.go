package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/knoguchi/lexrag/internal/engine"
	"github.com/knoguchi/lexrag/internal/llm"
)

type fakeLLM struct {
	response string
	err      error
	calls    int
	prompt   string
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.response, f.err
}

func (f *fakeLLM) GenerateStream(ctx context.Context, prompt string, opts llm.GenerateOptions) (<-chan llm.StreamChunk, error) {
	return nil, errors.New("not used")
}

type fakeEngine struct {
	answer string
	err    error
	query  string
}

func (e *fakeEngine) Query(ctx context.Context, query string) (*engine.Response, error) {
	e.query = query
	if e.err != nil {
		return nil, e.err
	}
	return &engine.Response{Answer: e.answer}, nil
}

func threeTools() []*Tool {
	return []*Tool{
		{Name: "case_summary", Description: "Useful for summarization questions.", Engine: &fakeEngine{answer: "summary"}},
		{Name: "legal_context", Description: "Useful for retrieving Acts and Sections.", Engine: &fakeEngine{answer: "context"}},
		{Name: "case_outcome", Description: "Useful for predicting outcomes.", Engine: &fakeEngine{answer: "outcome"}},
	}
}

func TestNew_NoTools(t *testing.T) {
	_, err := New(&fakeLLM{}, []*Tool{nil, {Name: "empty"}})
	if !errors.Is(err, ErrNoTools) {
		t.Fatalf("expected ErrNoTools, got %v", err)
	}
}

func TestNew_DropsNilTools(t *testing.T) {
	tools := threeTools()
	r, err := New(&fakeLLM{}, []*Tool{nil, tools[1], nil})
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Tools(); len(got) != 1 || got[0].Name != "legal_context" {
		t.Errorf("unexpected tools %+v", got)
	}
}

func TestRouter_Query(t *testing.T) {
	fake := &fakeLLM{response: "```json\n{\"choice\": 3, \"reason\": \"asks for a prediction\"}\n```"}
	tools := threeTools()
	r, err := New(fake, tools, WithVerbose(true))
	if err != nil {
		t.Fatal(err)
	}

	res, err := r.Query(context.Background(), "will the appeal succeed?")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if res.Tool != "case_outcome" || res.Answer != "outcome" || res.Reason != "asks for a prediction" {
		t.Errorf("unexpected result %+v", res)
	}
	if tools[2].Engine.(*fakeEngine).query != "will the appeal succeed?" {
		t.Error("query not delegated to the selected engine")
	}
	for _, want := range []string{"(1) Useful for summarization questions.", "(3) Useful for predicting outcomes.", "'will the appeal succeed?'", "1 to 3"} {
		if !strings.Contains(fake.prompt, want) {
			t.Errorf("selector prompt missing %q:\n%s", want, fake.prompt)
		}
	}
}

func TestRouter_SingleToolSkipsLLM(t *testing.T) {
	fake := &fakeLLM{}
	r, _ := New(fake, threeTools()[:1])

	res, err := r.Query(context.Background(), "summarize")
	if err != nil {
		t.Fatal(err)
	}
	if res.Tool != "case_summary" || fake.calls != 0 {
		t.Errorf("expected case_summary without llm call, got %s and %d calls", res.Tool, fake.calls)
	}
}

func TestRouter_SelectErrors(t *testing.T) {
	boom := errors.New("boom")
	r, _ := New(&fakeLLM{err: boom}, threeTools())
	if _, err := r.Query(context.Background(), "q"); !errors.Is(err, boom) {
		t.Errorf("expected llm error, got %v", err)
	}

	r, _ = New(&fakeLLM{response: `{"choice": 7}`}, threeTools())
	if _, err := r.Query(context.Background(), "q"); !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("expected ErrInvalidSelection, got %v", err)
	}

	tools := threeTools()
	tools[0].Engine = &fakeEngine{err: boom}
	r, _ = New(&fakeLLM{response: `{"choice": 1}`}, tools)
	if _, err := r.Query(context.Background(), "q"); !errors.Is(err, boom) || !strings.Contains(err.Error(), "case_summary") {
		t.Errorf("expected engine error naming the tool, got %v", err)
	}
}

func TestRouter_QueryStreamFallsBackToQuery(t *testing.T) {
	r, _ := New(&fakeLLM{response: `{"choice": 2}`}, threeTools())

	sel, _, chunks, err := r.QueryStream(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	answer, err := llm.Collect(chunks)
	if err != nil || answer != "context" || sel.Tool.Name != "legal_context" {
		t.Errorf("got %q, %v via %s", answer, err, sel.Tool.Name)
	}
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		wantChoice int
		wantErr    bool
	}{
		{"plain", `{"choice": 2, "reason": "r"}`, 2, false},
		{"fenced", "```json\n{\"choice\": 1}\n```", 1, false},
		{"chatter", `I pick {"choice": 3, "reason": "x"} because`, 3, false},
		{"list", `[{"choice": 2, "reason": "a"}, {"choice": 1, "reason": "b"}]`, 2, false},
		{"zero", `{"choice": 0}`, 0, true},
		{"too big", `{"choice": 4}`, 0, true},
		{"not json", "the second one", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			choice, _, err := parseSelection(tt.response, 3)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSelection) {
				t.Errorf("expected ErrInvalidSelection, got %v", err)
			}
			if choice != tt.wantChoice {
				t.Errorf("choice = %d, want %d", choice, tt.wantChoice)
			}
		})
	}
}
